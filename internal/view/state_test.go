package view

import (
	"math"
	"testing"

	"github.com/flamedeck/flamedeck/internal/trace"
)

func testFrame() *trace.Frame {
	spans := []trace.Span{
		{Name: "root", StartNs: 1_000_000, DurationNs: 10_000_000, ThreadID: 1},
	}
	return trace.BuildFrame(spans, map[uint64]string{1: "main"}, nil)
}

func TestEnsureZoomFitsTrace(t *testing.T) {
	f := testFrame()
	s := NewState()

	s.EnsureZoom(f, 1120) // effective width 1000, duration 10ms
	if s.Zoom != 1000.0/10_000_000.0 {
		t.Errorf("expected zoom %g, got %g", 1000.0/10_000_000.0, s.Zoom)
	}

	// Whole trace fits: start at the left edge, end at the right edge.
	if x := s.TimeToX(f.MinTimeNs, f); x != float64(trace.ThreadLabelWidth) {
		t.Errorf("trace start should map to x=%f, got %f", trace.ThreadLabelWidth, x)
	}
	if x := s.TimeToX(f.MaxTimeNs, f); math.Abs(x-1120) > 1e-9 {
		t.Errorf("trace end should map to x=1120, got %f", x)
	}

	// Zoom stays constant when more data arrives.
	before := s.Zoom
	s.EnsureZoom(f, 99999)
	if s.Zoom != before {
		t.Error("EnsureZoom must not reinitialize an already-set zoom")
	}
}

func TestCoordinateRoundTrip(t *testing.T) {
	f := testFrame()
	s := NewState()
	s.Zoom = 1.0 // one pixel per nanosecond
	s.PanX = -37

	for _, x := range []float64{120, 121, 400, 999, 1517} {
		got := s.TimeToX(s.XToTime(x, f), f)
		if math.Abs(got-x) > 1.0 {
			t.Errorf("round trip for x=%f drifted to %f", x, got)
		}
	}

	// Exact inverse at integer pan and unit zoom.
	if got := s.TimeToX(s.XToTime(500, f), f); got != 500 {
		t.Errorf("expected exact round trip at unit zoom, got %f", got)
	}
}

func TestVisibleRange(t *testing.T) {
	f := testFrame()
	s := NewState()

	// Uninitialized zoom: whole trace.
	start, end := s.VisibleRange(f, 1120)
	if start != f.MinTimeNs || end != f.MaxTimeNs {
		t.Errorf("expected full range [%d, %d], got [%d, %d]", f.MinTimeNs, f.MaxTimeNs, start, end)
	}

	s.EnsureZoom(f, 1120)
	start, end = s.VisibleRange(f, 1120)
	if start != f.MinTimeNs {
		t.Errorf("expected visible start %d, got %d", f.MinTimeNs, start)
	}
	if end != f.MaxTimeNs {
		t.Errorf("expected visible end %d, got %d", f.MaxTimeNs, end)
	}
	if end <= start {
		t.Fatal("visible range must be non-degenerate")
	}
}

func TestDragGesture(t *testing.T) {
	f := testFrame()
	s := NewState()
	s.Zoom = 0.001
	s.PanX = 10
	s.PanY = 5

	if err := s.BeginDrag(200, 300); err != nil {
		t.Fatalf("BeginDrag failed: %v", err)
	}
	if s.Gesture() != GestureDragging {
		t.Fatal("expected dragging state")
	}

	// A second gesture while one is active is a caller error.
	if err := s.BeginCropSelect(250, f); err != ErrGestureActive {
		t.Errorf("expected ErrGestureActive, got %v", err)
	}

	s.PointerMove(230, 310, f, 1120)
	if s.PanX != 40 || s.PanY != 15 {
		t.Errorf("expected pan (40, 15), got (%f, %f)", s.PanX, s.PanY)
	}

	if ended := s.PointerUp(f, 1120); ended != GestureDragging {
		t.Errorf("expected drag to end, got %v", ended)
	}
	if s.Gesture() != GestureIdle {
		t.Error("expected idle after pointer up")
	}
}

func TestCropSelectZoomsToRange(t *testing.T) {
	f := testFrame()
	s := NewState()
	s.EnsureZoom(f, 1120)

	// Select a fifth of the trace: x 320..520 covers 2ms..4ms past
	// trace start at the initial fit zoom.
	if err := s.BeginCropSelect(320, f); err != nil {
		t.Fatalf("BeginCropSelect failed: %v", err)
	}
	s.PointerMove(520, 0, f, 1120)
	if ended := s.PointerUp(f, 1120); ended != GestureCropSelecting {
		t.Fatalf("expected crop gesture to end, got %v", ended)
	}

	start, end := s.VisibleRange(f, 1120)
	wantStart := f.MinTimeNs + 2_000_000
	wantEnd := f.MinTimeNs + 4_000_000
	if diff := int64(start) - int64(wantStart); diff < -1 || diff > 1 {
		t.Errorf("expected visible start ~%d, got %d", wantStart, start)
	}
	if diff := int64(end) - int64(wantEnd); diff < -1 || diff > 1 {
		t.Errorf("expected visible end ~%d, got %d", wantEnd, end)
	}
}

func TestCropSelectReversedRange(t *testing.T) {
	f := testFrame()
	s := NewState()
	s.EnsureZoom(f, 1120)

	// Dragging right-to-left selects the same range.
	if err := s.BeginCropSelect(520, f); err != nil {
		t.Fatal(err)
	}
	s.PointerMove(320, 0, f, 1120)
	s.PointerUp(f, 1120)

	start, end := s.VisibleRange(f, 1120)
	if end <= start {
		t.Fatal("reversed crop must still produce a forward range")
	}
}

func TestZoomAroundKeepsCursorTime(t *testing.T) {
	f := testFrame()
	s := NewState()
	s.EnsureZoom(f, 1120)

	const cursorX = 400.0
	before := s.XToTime(cursorX, f)

	s.ZoomAround(cursorX, 2.0)
	after := s.XToTime(cursorX, f)

	if diff := int64(after) - int64(before); diff < -1 || diff > 1 {
		t.Errorf("time under cursor moved from %d to %d", before, after)
	}
	if s.Zoom != 2.0*1000.0/10_000_000.0 {
		t.Errorf("expected doubled zoom, got %g", s.Zoom)
	}
}

func TestGraphDragScrubs(t *testing.T) {
	f := testFrame()
	s := NewState()
	s.EnsureZoom(f, 1120)

	if err := s.BeginGraphDrag(120); err != nil {
		t.Fatal(err)
	}
	// Scrub to the far right of the graph: the viewport centers on the
	// end of the trace.
	s.PointerMove(1120, 0, f, 1120)
	s.PointerUp(f, 1120)

	center := s.XToTime(float64(trace.ThreadLabelWidth)+500, f)
	if diff := int64(center) - int64(f.MaxTimeNs); diff < -2 || diff > 2 {
		t.Errorf("expected viewport centered near trace end %d, got %d", f.MaxTimeNs, center)
	}
}

func TestHoverIndependentOfGestures(t *testing.T) {
	s := NewState()
	if s.HoveredSpan != -1 {
		t.Fatal("new state should have no hovered span")
	}

	s.SetHover(12)
	if err := s.BeginDrag(0, 0); err != nil {
		t.Fatal(err)
	}
	if s.HoveredSpan != 12 {
		t.Error("starting a gesture must not clear hover state")
	}

	s.ClearHover()
	if s.HoveredSpan != -1 {
		t.Error("ClearHover should reset the hovered span")
	}
}
