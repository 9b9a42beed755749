package lod

import "github.com/flamedeck/flamedeck/internal/trace"

// bucketSizes is the fixed resolution ladder, finest to coarsest.
// Every level is materialized at build time; build cost is
// O(len(bucketSizes) * spans) once per frame.
var bucketSizes = []uint64{
	50_000,     // 0.05ms - ultra fine (zoomed in 100x+)
	100_000,    // 0.1ms  - very fine
	500_000,    // 0.5ms  - fine
	1_000_000,  // 1ms    - medium
	5_000_000,  // 5ms    - coarse (normal view)
	10_000_000, // 10ms   - very coarse
	50_000_000, // 50ms   - ultra coarse (zoomed out 5x+)
}

// Tree is the full LOD ladder for one frame, immutable after BuildTree.
// Share it by pointer; never copy or mutate it.
type Tree struct {
	levels []*level
}

// BuildTree indexes all spans of a frame at every resolution in the
// ladder. Span Y positions are baked in from the thread offsets so
// queries can cull vertically without touching the frame.
func BuildTree(f *trace.Frame, offsets trace.ThreadOffsets) *Tree {
	timeMin := f.MinTimeNs
	dur := f.DurationNs()
	if dur == 0 {
		dur = 1
	}
	timeMax := timeMin + dur

	levels := make([]*level, 0, len(bucketSizes))
	for _, size := range bucketSizes {
		l := newLevel(timeMin, timeMax, size)
		l.addSpans(f.Spans, offsets)
		levels = append(levels, l)
	}

	return &Tree{levels: levels}
}

// selectLevel picks the resolution for a given zoom. The target is at
// least 2 pixels per merged primitive, so the ideal bucket width is
// 2.0/pixelsPerNs; the level with the largest bucket not exceeding that
// wins. At extreme zoom-in nothing qualifies and the finest level is
// used, which is still bounded by bucket count rather than span count.
func (t *Tree) selectLevel(pixelsPerNs float64) int {
	ideal := uint64(2.0 / pixelsPerNs)

	best := 0
	for i, l := range t.levels {
		if l.bucketSizeNs <= ideal {
			best = i
		}
	}
	return best
}

// QueryDynamic selects a resolution from the viewport and returns the
// merged spans overlapping the window. The caller guarantees
// timeEnd > timeStart; degenerate windows are a contract violation that
// boundary layers must reject before reaching the index.
func (t *Tree) QueryDynamic(timeStart, timeEnd uint64, yMin, yMax float32, viewportWidth float32) []MergedSpan {
	pixelsPerNs := float64(viewportWidth) / float64(timeEnd-timeStart)

	var out []MergedSpan
	t.levels[t.selectLevel(pixelsPerNs)].query(timeStart, timeEnd, yMin, yMax, &out)
	return out
}
