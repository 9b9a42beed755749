package trace

import "sort"

// Layout constants for the flamegraph viewport. Heights are in pixels.
// The rendering collaborator owns the actual painting; these only pin
// down where each thread lane sits so span Y positions are stable.
const (
	RowHeight        float32 = 20.0
	MinSpanWidth     float32 = 2.0
	GraphHeight      float32 = 100.0
	TimelineHeight   float32 = 90.0
	ThreadLabelWidth float32 = 120.0
	ThreadRowPadding float32 = 30.0
)

// HeaderHeight is the fixed region above the first thread lane
// (framerate graph plus timeline ruler).
const HeaderHeight = GraphHeight + TimelineHeight + ThreadRowPadding

// ThreadOffsets maps thread id to the Y pixel position of the top of
// that thread's lane.
type ThreadOffsets map[uint64]float32

// ComputeThreadOffsets assigns each thread a vertical pixel band.
// Pure and deterministic: named threads come first, then unnamed ones,
// each group ordered by ascending id, so lane order never jitters across
// rebuilds with the same thread set. Each lane is tall enough for the
// thread's deepest nesting plus padding.
func ComputeThreadOffsets(f *Frame) ThreadOffsets {
	maxDepthByThread := make(map[uint64]uint32, len(f.Threads))
	for _, s := range f.Spans {
		if s.Depth > maxDepthByThread[s.ThreadID] {
			maxDepthByThread[s.ThreadID] = s.Depth
		}
	}

	ids := make([]uint64, 0, len(f.Threads))
	for id := range f.Threads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := f.Threads[ids[i]], f.Threads[ids[j]]
		aNamed, bNamed := a.Name != "", b.Name != ""
		if aNamed != bNamed {
			return aNamed
		}
		return ids[i] < ids[j]
	})

	offsets := make(ThreadOffsets, len(ids))
	y := HeaderHeight
	for _, id := range ids {
		offsets[id] = y
		y += float32(maxDepthByThread[id]+1)*RowHeight + ThreadRowPadding
	}

	return offsets
}
