package trace

import (
	"reflect"
	"testing"
)

func TestBuildFrameBounds(t *testing.T) {
	spans := []Span{
		{Name: "b", StartNs: 2_000, DurationNs: 500, Depth: 1, ThreadID: 7},
		{Name: "a", StartNs: 1_000, DurationNs: 3_000, Depth: 0, ThreadID: 7},
		{Name: "c", StartNs: 3_500, DurationNs: 100, Depth: 2, ThreadID: 9},
	}

	f := BuildFrame(spans, map[uint64]string{7: "main"}, nil)

	if f.MinTimeNs != 1_000 {
		t.Errorf("expected min time 1000, got %d", f.MinTimeNs)
	}
	if f.MaxTimeNs != 4_000 {
		t.Errorf("expected max time 4000, got %d", f.MaxTimeNs)
	}
	if f.DurationNs() != 3_000 {
		t.Errorf("expected duration 3000, got %d", f.DurationNs())
	}
	if f.MaxDepth != 2 {
		t.Errorf("expected max depth 2, got %d", f.MaxDepth)
	}
	if len(f.Threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(f.Threads))
	}
	if f.Threads[7].Name != "main" {
		t.Errorf("expected thread 7 named 'main', got %q", f.Threads[7].Name)
	}
	if f.Threads[9].Name != "" {
		t.Errorf("expected thread 9 unnamed, got %q", f.Threads[9].Name)
	}
}

func TestEmptyFrame(t *testing.T) {
	f := BuildFrame(nil, nil, nil)

	if f.DurationNs() != 0 {
		t.Errorf("empty frame should have zero duration, got %d", f.DurationNs())
	}
	if len(ComputeThreadOffsets(f)) != 0 {
		t.Error("empty frame should have no thread offsets")
	}
	if f.Framerate().Samples != 0 {
		t.Error("empty frame should have an empty framerate summary")
	}
}

func TestThreadOffsetsNamedFirst(t *testing.T) {
	spans := []Span{
		{Name: "x", StartNs: 0, DurationNs: 10, ThreadID: 3, Depth: 1},
		{Name: "x", StartNs: 0, DurationNs: 10, ThreadID: 1, Depth: 0},
		{Name: "x", StartNs: 0, DurationNs: 10, ThreadID: 9, Depth: 0},
		{Name: "x", StartNs: 0, DurationNs: 10, ThreadID: 2, Depth: 0},
	}
	// 9 and 2 named, 1 and 3 unnamed: lane order should be 2, 9, 1, 3.
	f := BuildFrame(spans, map[uint64]string{9: "render", 2: "main"}, nil)
	offsets := ComputeThreadOffsets(f)

	order := []uint64{2, 9, 1, 3}
	for i := 1; i < len(order); i++ {
		if offsets[order[i-1]] >= offsets[order[i]] {
			t.Errorf("expected thread %d above thread %d, got y=%f vs y=%f",
				order[i-1], order[i], offsets[order[i-1]], offsets[order[i]])
		}
	}

	if offsets[2] != HeaderHeight {
		t.Errorf("first lane should start at header height %f, got %f", HeaderHeight, offsets[2])
	}

	// Thread 9 is depth 0 only, so thread 1 starts one row plus padding below it.
	want := offsets[9] + RowHeight + ThreadRowPadding
	if offsets[1] != want {
		t.Errorf("expected thread 1 at y=%f, got %f", want, offsets[1])
	}

	// Thread 3 reaches depth 1, consuming two rows in its own lane; it is
	// the last lane so nothing depends on its height here, but thread 1's
	// lane (depth 0) must push 3 exactly one row plus padding down.
	want = offsets[1] + RowHeight + ThreadRowPadding
	if offsets[3] != want {
		t.Errorf("expected thread 3 at y=%f, got %f", want, offsets[3])
	}
}

func TestThreadOffsetsDeterministic(t *testing.T) {
	spans := []Span{
		{Name: "x", StartNs: 0, DurationNs: 10, ThreadID: 5},
		{Name: "x", StartNs: 0, DurationNs: 10, ThreadID: 11},
		{Name: "x", StartNs: 0, DurationNs: 10, ThreadID: 4},
	}
	f := BuildFrame(spans, map[uint64]string{11: "audio"}, nil)

	first := ComputeThreadOffsets(f)
	for i := 0; i < 20; i++ {
		if got := ComputeThreadOffsets(f); !reflect.DeepEqual(first, got) {
			t.Fatalf("offsets changed across rebuilds: %v vs %v", first, got)
		}
	}
}

func TestFramerateSummary(t *testing.T) {
	f := BuildFrame(
		[]Span{{Name: "x", StartNs: 0, DurationNs: 1, ThreadID: 1}},
		nil,
		[]float32{16.0, 18.0, 14.0},
	)

	sum := f.Framerate()
	if sum.Samples != 3 {
		t.Fatalf("expected 3 samples, got %d", sum.Samples)
	}
	if sum.MinMs != 14.0 || sum.MaxMs != 18.0 {
		t.Errorf("expected min/max 14/18, got %f/%f", sum.MinMs, sum.MaxMs)
	}
	if sum.AvgMs != 16.0 {
		t.Errorf("expected avg 16, got %f", sum.AvgMs)
	}
}

func TestRingWrap(t *testing.T) {
	r := NewRing[int](3)

	if r.Items() != nil {
		t.Error("empty ring should return nil items")
	}

	r.Push(1)
	r.Push(2)
	if got := r.Items(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("expected [1 2], got %v", got)
	}

	r.Push(3)
	r.Push(4)
	r.Push(5)
	if got := r.Items(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("expected [3 4 5], got %v", got)
	}
	if r.Len() != 3 || r.Cap() != 3 {
		t.Errorf("expected len 3 cap 3, got %d/%d", r.Len(), r.Cap())
	}
}
