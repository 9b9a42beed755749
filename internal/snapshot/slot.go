package snapshot

import (
	"sync/atomic"

	"github.com/flamedeck/flamedeck/internal/lod"
	"github.com/flamedeck/flamedeck/internal/trace"
)

// Published is one complete Frame/Cache pair plus the publish sequence
// number it landed with. A reader holding a *Published sees a fully
// self-consistent view regardless of later publishes.
type Published struct {
	Frame      *trace.Frame
	Cache      *Cache
	Generation uint64
}

// Slot is the single swappable holder of the most recent Published pair,
// bridging the collector (single writer) and any number of readers.
// Readers never block the writer and vice versa: Publish builds the
// whole Cache off to the side, then performs one pointer swap.
//
// A Slot is an explicitly owned handle, not process-global state, so
// independent viewer sessions can each run their own.
type Slot struct {
	cur atomic.Pointer[Published]
	gen atomic.Uint64
}

// NewSlot returns an empty slot. Load returns nil until the first
// Publish; queries on an empty slot return empty results.
func NewSlot() *Slot {
	return &Slot{}
}

// Load returns the most recently published pair, or nil before the
// first publish.
func (s *Slot) Load() *Published {
	return s.cur.Load()
}

// Generation returns the sequence number of the latest publish, starting
// at zero for an empty slot. Boundary consumers poll this to learn that
// a re-query is worthwhile.
func (s *Slot) Generation() uint64 {
	return s.gen.Load()
}

// Publish derives the cache for a frame and atomically replaces the
// current pair. A concurrent reader observes either the complete
// previous pair or the complete new one, never a partially built frame.
func (s *Slot) Publish(f *trace.Frame) *Published {
	p := &Published{
		Frame:      f,
		Cache:      Build(f),
		Generation: s.gen.Add(1),
	}
	s.cur.Store(p)
	return p
}

// QueryDynamic queries the current snapshot with automatic resolution
// selection. Before the first publish it returns nil ("no data"), never
// an error. The caller guarantees timeEnd > timeStart.
func (s *Slot) QueryDynamic(timeStart, timeEnd uint64, yMin, yMax float32, viewportWidth float32) []lod.MergedSpan {
	p := s.cur.Load()
	if p == nil {
		return nil
	}
	return p.Cache.Tree.QueryDynamic(timeStart, timeEnd, yMin, yMax, viewportWidth)
}
