// Package lod implements the multi-resolution span index behind the
// flamegraph: a ladder of fixed-resolution bucketed levels, each holding
// pre-merged spans, so viewport queries cost O(visible output) rather
// than O(total spans in the frame).
package lod

import (
	"sort"

	"github.com/flamedeck/flamedeck/internal/trace"
)

// MergedSpan is the rendering primitive produced by a level query: one or
// more original spans coalesced within a bucket. MergedSpans are
// ephemeral query results and are never persisted.
type MergedSpan struct {
	StartNs    uint64
	EndNs      uint64
	Y          float32
	ThreadID   uint64
	Depth      uint32
	ColorIndex uint8
	SpanCount  int
}

// laneKey identifies one horizontal row of spans: a (thread, depth) pair.
type laneKey struct {
	threadID uint64
	depth    uint32
}

// level is one fixed-resolution index over all spans in a frame.
// Buckets are fixed-width time slices; each bucket groups its spans by
// lane, time-ordered and pre-merged.
type level struct {
	bucketSizeNs uint64
	timeMin      uint64
	timeMax      uint64
	buckets      []map[laneKey][]MergedSpan
}

func newLevel(timeMin, timeMax, bucketSizeNs uint64) *level {
	numBuckets := (timeMax-timeMin)/bucketSizeNs + 1
	return &level{
		bucketSizeNs: bucketSizeNs,
		timeMin:      timeMin,
		timeMax:      timeMax,
		buckets:      make([]map[laneKey][]MergedSpan, numBuckets),
	}
}

// bucketIndex maps a timestamp to a bucket, clamping to the first and
// last buckets so windows extending past the indexed range stay valid.
func (l *level) bucketIndex(t uint64) int {
	if t < l.timeMin {
		return 0
	}
	idx := (t - l.timeMin) / l.bucketSizeNs
	if last := uint64(len(l.buckets) - 1); idx > last {
		idx = last
	}
	return int(idx)
}

// mergeThreshold is the largest gap that still coalesces two adjacent
// spans: 10% of the bucket width, small enough to be visually lossless
// at this level's resolution.
func (l *level) mergeThreshold() uint64 {
	return l.bucketSizeNs / 10
}

// addSpans places each span into its start-time bucket as a count-1
// MergedSpan, then sorts and coalesces every bucket lane. Spans on
// threads missing from offsets are skipped.
func (l *level) addSpans(spans []trace.Span, offsets trace.ThreadOffsets) {
	for _, s := range spans {
		yOffset, ok := offsets[s.ThreadID]
		if !ok {
			continue
		}

		idx := l.bucketIndex(s.StartNs)
		if l.buckets[idx] == nil {
			l.buckets[idx] = make(map[laneKey][]MergedSpan)
		}
		key := laneKey{threadID: s.ThreadID, depth: s.Depth}
		l.buckets[idx][key] = append(l.buckets[idx][key], MergedSpan{
			StartNs:    s.StartNs,
			EndNs:      s.EndNs(),
			Y:          yOffset + float32(s.Depth)*trace.RowHeight,
			ThreadID:   s.ThreadID,
			Depth:      s.Depth,
			ColorIndex: s.ColorIndex,
			SpanCount:  1,
		})
	}

	threshold := l.mergeThreshold()
	for _, bucket := range l.buckets {
		for key, lane := range bucket {
			bucket[key] = mergeLane(lane, threshold)
		}
	}
}

// mergeLane sorts one bucket lane by start time and coalesces adjacent
// spans whose gap is below the threshold. The merged span covers
// [first.start, last.end] with span counts summed; ColorIndex comes from
// the earlier span (a deterministic but otherwise arbitrary tie-break).
func mergeLane(lane []MergedSpan, threshold uint64) []MergedSpan {
	sort.Slice(lane, func(i, j int) bool {
		return lane[i].StartNs < lane[j].StartNs
	})

	w := 0
	for r := 1; r < len(lane); r++ {
		var gap uint64
		if lane[r].StartNs > lane[w].EndNs {
			gap = lane[r].StartNs - lane[w].EndNs
		}
		if gap < threshold {
			if lane[r].EndNs > lane[w].EndNs {
				lane[w].EndNs = lane[r].EndNs
			}
			lane[w].SpanCount += lane[r].SpanCount
		} else {
			w++
			lane[w] = lane[r]
		}
	}
	return lane[:w+1]
}

// query appends spans overlapping the given window to out.
//
// The time test is deliberately permissive: a span is excluded only when
// it ends before the window or starts after it, so partially visible
// spans are always included. Tightening this to strict containment would
// reintroduce visible pop-in/pop-out at the viewport edges during pan,
// so it must stay as-is. The Y test is strict.
//
// Cost is proportional to buckets touched and spans per lane, never to
// the total span count of the frame.
func (l *level) query(timeStart, timeEnd uint64, yMin, yMax float32, out *[]MergedSpan) {
	start := l.bucketIndex(timeStart)
	end := l.bucketIndex(timeEnd)

	for i := start; i <= end; i++ {
		for _, lane := range l.buckets[i] {
			for _, s := range lane {
				if s.EndNs < timeStart || s.StartNs > timeEnd {
					continue
				}
				if s.Y+trace.RowHeight < yMin || s.Y > yMax {
					continue
				}
				*out = append(*out, s)
			}
		}
	}
}
