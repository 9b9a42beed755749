// Package trace holds the immutable trace data model: spans, thread
// metadata, and the per-cycle Frame snapshot that everything downstream
// (LOD index, view state, web UI) is derived from.
package trace

// Span is one recorded execution interval: a named, timestamped region
// of code on one thread at one nesting depth.
type Span struct {
	Name       string
	StartNs    uint64
	DurationNs uint64
	Depth      uint32
	ThreadID   uint64
	ColorIndex uint8
}

// EndNs returns the end timestamp of the span.
// StartNs + DurationNs must not overflow; the collector validates this
// before a span ever reaches a Frame.
func (s Span) EndNs() uint64 {
	return s.StartNs + s.DurationNs
}

// ThreadInfo describes one thread seen in a trace.
// An empty Name means the thread is unnamed.
type ThreadInfo struct {
	ID   uint64
	Name string
}

// Frame is one complete snapshot of spans and thread metadata from a
// single collection cycle. A Frame is immutable once built: the collector
// constructs a new Frame off to the side and replaces the published one
// wholesale, so readers can hold a *Frame without any locking.
type Frame struct {
	// Spans is unordered; the LOD index imposes ordering where needed.
	Spans   []Span
	Threads map[uint64]ThreadInfo

	MinTimeNs uint64
	MaxTimeNs uint64
	MaxDepth  uint32

	// FrameTimesMs is the recent history of collection-cycle durations,
	// oldest first, used for the framerate summary.
	FrameTimesMs []float32
}

// BuildFrame assembles an immutable Frame from a batch of spans.
// threadNames provides display names per thread id; threads that appear
// in spans but not in threadNames get an empty name. Depth/nesting
// correctness is an input contract owned by the instrumentation side and
// is not verified here.
func BuildFrame(spans []Span, threadNames map[uint64]string, frameTimesMs []float32) *Frame {
	f := &Frame{
		Spans:        spans,
		Threads:      make(map[uint64]ThreadInfo),
		FrameTimesMs: frameTimesMs,
	}

	for i, s := range spans {
		end := s.EndNs()
		if i == 0 {
			f.MinTimeNs = s.StartNs
			f.MaxTimeNs = end
		} else {
			if s.StartNs < f.MinTimeNs {
				f.MinTimeNs = s.StartNs
			}
			if end > f.MaxTimeNs {
				f.MaxTimeNs = end
			}
		}
		if s.Depth > f.MaxDepth {
			f.MaxDepth = s.Depth
		}
		if _, ok := f.Threads[s.ThreadID]; !ok {
			f.Threads[s.ThreadID] = ThreadInfo{
				ID:   s.ThreadID,
				Name: threadNames[s.ThreadID],
			}
		}
	}

	return f
}

// DurationNs returns the total time covered by the frame.
// An empty frame has duration zero.
func (f *Frame) DurationNs() uint64 {
	if len(f.Spans) == 0 {
		return 0
	}
	return f.MaxTimeNs - f.MinTimeNs
}

// FramerateSummary aggregates the frame-time history.
type FramerateSummary struct {
	Samples int
	AvgMs   float32
	MinMs   float32
	MaxMs   float32
}

// Framerate summarizes the collection-cycle duration history.
// A frame with no history returns the zero summary.
func (f *Frame) Framerate() FramerateSummary {
	if len(f.FrameTimesMs) == 0 {
		return FramerateSummary{}
	}

	sum := FramerateSummary{
		Samples: len(f.FrameTimesMs),
		MinMs:   f.FrameTimesMs[0],
		MaxMs:   f.FrameTimesMs[0],
	}

	var total float64
	for _, ms := range f.FrameTimesMs {
		total += float64(ms)
		if ms < sum.MinMs {
			sum.MinMs = ms
		}
		if ms > sum.MaxMs {
			sum.MaxMs = ms
		}
	}
	sum.AvgMs = float32(total / float64(sum.Samples))

	return sum
}
