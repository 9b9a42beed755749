// Package view holds the interactive viewport state for one viewer
// session: absolute zoom, pan offsets, the pointer gesture machine, and
// the time-to-pixel coordinate mapping used by the rendering side.
//
// A State is exclusively owned by its session and never crosses
// goroutines. All transient interaction state lives on the State
// instance; there are no package-level accumulators.
package view

import (
	"errors"

	"github.com/flamedeck/flamedeck/internal/trace"
)

// Gesture identifies the active pointer gesture.
type Gesture int

const (
	GestureIdle Gesture = iota
	GestureDragging
	GestureCropSelecting
	GestureGraphDragging
)

// ErrGestureActive is returned when a gesture begins while another is
// in progress. Input dispatch must serialize gestures; overlapping them
// is a caller error, not something the state machine recovers from.
var ErrGestureActive = errors.New("view: a gesture is already active")

// State is the pan/zoom/interaction state of one viewer session.
//
// Zoom is an absolute scale in pixels per nanosecond; zero means
// uninitialized, and EnsureZoom picks a scale that fits the whole trace
// on first paint. Pan offsets are screen-space pixels applied on top of
// the zoom transform.
type State struct {
	Zoom float64
	PanX float64
	PanY float64

	gesture       Gesture
	dragStartX    float64
	dragStartY    float64
	dragPanStartX float64
	dragPanStartY float64
	cropStartNs   uint64
	graphStartX   float64

	// Hover tracking is independent of the gesture machine.
	HoveredSpan int // index into Frame.Spans, -1 = none
	MouseX      float64
	MouseY      float64
}

// NewState returns an idle view state with uninitialized zoom.
func NewState() *State {
	return &State{HoveredSpan: -1}
}

// Gesture returns the currently active gesture.
func (s *State) Gesture() Gesture {
	return s.gesture
}

// EnsureZoom lazily initializes the zoom from the first published frame
// so the whole trace fits the viewport. Once set, zoom stays constant as
// new frames arrive; an absolute pixels-per-nanosecond scale is what
// prevents the view from "zooming out" as the trace grows.
func (s *State) EnsureZoom(f *trace.Frame, viewportWidth float64) {
	if s.Zoom != 0 || f == nil || f.DurationNs() == 0 {
		return
	}
	effective := viewportWidth - float64(trace.ThreadLabelWidth)
	if effective <= 0 {
		return
	}
	s.Zoom = effective / float64(f.DurationNs())
	s.PanX = 0
}

// BeginDrag starts a pan gesture, capturing the pre-gesture pan.
func (s *State) BeginDrag(x, y float64) error {
	if s.gesture != GestureIdle {
		return ErrGestureActive
	}
	s.gesture = GestureDragging
	s.dragStartX = x
	s.dragStartY = y
	s.dragPanStartX = s.PanX
	s.dragPanStartY = s.PanY
	return nil
}

// BeginCropSelect starts a crop-selection gesture anchored at the trace
// time under x. Releasing the pointer zooms to the selected range.
func (s *State) BeginCropSelect(x float64, f *trace.Frame) error {
	if s.gesture != GestureIdle {
		return ErrGestureActive
	}
	s.gesture = GestureCropSelecting
	s.cropStartNs = s.XToTime(x, f)
	s.MouseX = x
	return nil
}

// BeginGraphDrag starts a scrub gesture on the framerate graph.
func (s *State) BeginGraphDrag(x float64) error {
	if s.gesture != GestureIdle {
		return ErrGestureActive
	}
	s.gesture = GestureGraphDragging
	s.graphStartX = x
	return nil
}

// PointerMove updates the mouse position and recomputes pan for the
// active gesture. While idle it only tracks the hover position; hit
// testing for the hovered span is the caller's job via SetHover.
func (s *State) PointerMove(x, y float64, f *trace.Frame, viewportWidth float64) {
	s.MouseX = x
	s.MouseY = y

	switch s.gesture {
	case GestureDragging:
		s.PanX = s.dragPanStartX + (x - s.dragStartX)
		s.PanY = s.dragPanStartY + (y - s.dragStartY)
	case GestureGraphDragging:
		s.scrubTo(x, f, viewportWidth)
	case GestureCropSelecting:
		// Selection endpoint is read from MouseX at release.
	}
}

// PointerUp completes the active gesture and returns which gesture
// ended. A crop selection with a non-degenerate range zooms the
// viewport to it.
func (s *State) PointerUp(f *trace.Frame, viewportWidth float64) Gesture {
	ended := s.gesture
	if ended == GestureCropSelecting {
		a, b := s.cropStartNs, s.XToTime(s.MouseX, f)
		if b < a {
			a, b = b, a
		}
		if b > a {
			s.ZoomToRange(a, b, f, viewportWidth)
		}
	}
	s.gesture = GestureIdle
	return ended
}

// ZoomToRange sets zoom and pan so [startNs, endNs] exactly fills the
// effective viewport. Requires endNs > startNs.
func (s *State) ZoomToRange(startNs, endNs uint64, f *trace.Frame, viewportWidth float64) {
	effective := viewportWidth - float64(trace.ThreadLabelWidth)
	if effective <= 0 {
		return
	}
	s.Zoom = effective / float64(endNs-startNs)
	s.PanX = -(float64(startNs) - float64(f.MinTimeNs)) * s.Zoom
}

// ZoomAround scales the zoom by factor while keeping the trace time
// under cursorX fixed on screen.
func (s *State) ZoomAround(cursorX, factor float64) {
	if s.Zoom == 0 || factor <= 0 {
		return
	}
	worldNs := (cursorX - s.PanX - float64(trace.ThreadLabelWidth)) / s.Zoom
	s.Zoom *= factor
	s.PanX = cursorX - float64(trace.ThreadLabelWidth) - worldNs*s.Zoom
}

// scrubTo maps a horizontal position across the framerate graph to a
// proportional seek across the whole trace, centering the viewport on
// the target time.
func (s *State) scrubTo(x float64, f *trace.Frame, viewportWidth float64) {
	if f == nil || f.DurationNs() == 0 || s.Zoom == 0 {
		return
	}
	effective := viewportWidth - float64(trace.ThreadLabelWidth)
	if effective <= 0 {
		return
	}
	frac := (x - float64(trace.ThreadLabelWidth)) / effective
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	targetNs := frac * float64(f.DurationNs())
	s.PanX = effective/2 - targetNs*s.Zoom
}

// SetHover records the hovered span index (-1 for none). Hover state
// never participates in the gesture machine.
func (s *State) SetHover(spanIndex int) {
	s.HoveredSpan = spanIndex
}

// ClearHover resets hover tracking.
func (s *State) ClearHover() {
	s.HoveredSpan = -1
}
