package view

import (
	"math"

	"github.com/flamedeck/flamedeck/internal/trace"
)

// TimeToX converts a trace timestamp to a viewport X coordinate under
// the current zoom and pan. The first ThreadLabelWidth pixels are the
// thread label gutter; trace time starts to its right.
func (s *State) TimeToX(t uint64, f *trace.Frame) float64 {
	return (float64(t)-float64(f.MinTimeNs))*s.Zoom + s.PanX + float64(trace.ThreadLabelWidth)
}

// XToTime is the inverse of TimeToX for the same zoom and pan, rounded
// to the nearest nanosecond and clamped at zero for positions left of
// the trace origin.
func (s *State) XToTime(x float64, f *trace.Frame) uint64 {
	if s.Zoom == 0 {
		return f.MinTimeNs
	}
	ns := (x-s.PanX-float64(trace.ThreadLabelWidth))/s.Zoom + float64(f.MinTimeNs)
	if ns < 0 {
		return 0
	}
	return uint64(math.Round(ns))
}

// VisibleRange returns the trace time window currently on screen: the
// times under the left edge of the span area and the right edge of the
// viewport. The result is always a non-degenerate window, so it is safe
// to feed straight into QueryDynamic.
func (s *State) VisibleRange(f *trace.Frame, viewportWidth float64) (startNs, endNs uint64) {
	if s.Zoom == 0 || f.DurationNs() == 0 {
		end := f.MinTimeNs + f.DurationNs()
		if end == f.MinTimeNs {
			end++
		}
		return f.MinTimeNs, end
	}

	startNs = s.XToTime(float64(trace.ThreadLabelWidth), f)
	endNs = s.XToTime(viewportWidth, f)
	if endNs <= startNs {
		endNs = startNs + 1
	}
	return startNs, endNs
}
