package snapshot

import (
	"reflect"
	"sync"
	"testing"

	"github.com/flamedeck/flamedeck/internal/trace"
)

func sampleFrame() *trace.Frame {
	spans := []trace.Span{
		{Name: "A", StartNs: 0, DurationNs: 500_000, ThreadID: 7},
		{Name: "B", StartNs: 1_000_000, DurationNs: 500_000, ThreadID: 7},
		{Name: "C", StartNs: 2_050_000, DurationNs: 500_000, ThreadID: 8, Depth: 1},
	}
	return trace.BuildFrame(spans, map[uint64]string{7: "main"}, nil)
}

func TestEmptySlot(t *testing.T) {
	s := NewSlot()

	if s.Load() != nil {
		t.Error("empty slot should load nil")
	}
	if s.Generation() != 0 {
		t.Errorf("empty slot generation should be 0, got %d", s.Generation())
	}
	if got := s.QueryDynamic(0, 1_000, -1e9, 1e9, 100); got != nil {
		t.Errorf("query before first publish should return nil, got %v", got)
	}
}

func TestPublishReplacesWholesale(t *testing.T) {
	s := NewSlot()

	first := s.Publish(sampleFrame())
	if first.Generation != 1 {
		t.Errorf("first publish should be generation 1, got %d", first.Generation)
	}

	got := s.Load()
	if got != first {
		t.Fatal("load should return the published pair")
	}
	if got.Frame == nil || got.Cache == nil {
		t.Fatal("published pair must be complete")
	}

	second := s.Publish(sampleFrame())
	if second.Generation != 2 {
		t.Errorf("second publish should be generation 2, got %d", second.Generation)
	}
	if s.Load() != second {
		t.Error("load should observe the new pair after publish")
	}
	if s.Generation() != 2 {
		t.Errorf("slot generation should be 2, got %d", s.Generation())
	}
}

func TestBuildDeterministic(t *testing.T) {
	f := sampleFrame()

	a := Build(f)
	b := Build(f)

	if !reflect.DeepEqual(a.Offsets, b.Offsets) {
		t.Error("thread offsets differ between identical builds")
	}
	if !reflect.DeepEqual(a.Tree, b.Tree) {
		t.Error("LOD trees differ between identical builds")
	}
}

func TestSlotQueryDynamic(t *testing.T) {
	s := NewSlot()
	s.Publish(sampleFrame())

	got := s.QueryDynamic(0, 2_550_000, -1e9, 1e9, 100_000)
	if len(got) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(got))
	}
}

func TestConcurrentReadersDuringPublish(t *testing.T) {
	s := NewSlot()
	s.Publish(sampleFrame())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers hammer the slot while the writer keeps publishing. Every
	// load must observe a complete, internally consistent pair.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				p := s.Load()
				if p == nil || p.Frame == nil || p.Cache == nil || p.Cache.Tree == nil {
					t.Error("reader observed an incomplete publish")
					return
				}
				_ = p.Cache.Tree.QueryDynamic(p.Frame.MinTimeNs, p.Frame.MinTimeNs+1, -1e9, 1e9, 100)
			}
		}()
	}

	for i := 0; i < 200; i++ {
		s.Publish(sampleFrame())
	}
	close(stop)
	wg.Wait()

	if s.Generation() != 201 {
		t.Errorf("expected generation 201, got %d", s.Generation())
	}
}
