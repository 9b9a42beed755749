// Package collector runs the background polling loop that turns raw
// instrumentation events into published Frames. One dedicated goroutine
// sleeps, drains the event source, builds a complete Frame off to the
// side, and swaps it into the publish slot; readers never block it.
package collector

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/flamedeck/flamedeck/internal/snapshot"
	"github.com/flamedeck/flamedeck/internal/trace"
)

// Event is one raw instrumentation event as drained from the source.
// Depth is the caller-assigned nesting level within the thread's call
// stack; its correctness is the instrumentation side's contract.
type Event struct {
	Name       string
	ThreadID   uint64
	ThreadName string // optional
	StartNs    uint64
	DurationNs uint64
	Depth      uint32
}

// EventSource is the pollable instrumentation boundary. DrainEvents
// returns everything captured since the previous drain without
// blocking; an empty batch means "nothing new", not an error.
type EventSource interface {
	Enable()
	Disable()
	DrainEvents() ([]Event, error)
}

// paletteSize matches the renderer's color palette; color indexes are
// assigned round-robin for visual variety only.
const paletteSize = 16

// frameTimeHistory caps the per-cycle duration history carried on each
// published Frame.
const frameTimeHistory = 200

// Collector polls an EventSource on a fixed interval and publishes one
// Frame per non-empty batch.
type Collector struct {
	source   EventSource
	slot     *snapshot.Slot
	interval time.Duration
	verbose  bool

	// mu serializes Start/Stop only; per-sample data never touches it.
	mu      sync.Mutex
	running bool
	// workerID distinguishes the current worker from a stale one that
	// has not yet woken to observe a Stop, so a quick Stop/Start never
	// leaves two loops alive.
	workerID uint64

	// frameMu covers the cycle-time ring: an outgoing worker that has
	// not yet observed a Stop may overlap its successor for one cycle.
	frameMu    sync.Mutex
	frameTimes *trace.Ring[float32]
}

// New creates a collector polling source every interval and publishing
// into slot.
func New(source EventSource, slot *snapshot.Slot, interval time.Duration) *Collector {
	return &Collector{
		source:     source,
		slot:       slot,
		interval:   interval,
		frameTimes: trace.NewRing[float32](frameTimeHistory),
	}
}

// SetVerbose enables per-cycle logging.
func (c *Collector) SetVerbose(v bool) {
	c.verbose = v
}

// Start spawns the background worker. Calling Start on a running
// collector is a no-op; exactly one worker exists at a time. The only
// failure modes are construction errors, which are fatal and surfaced
// here rather than from inside the loop.
func (c *Collector) Start() error {
	if c.source == nil {
		return errors.New("collector: no event source configured")
	}
	if c.slot == nil {
		return errors.New("collector: no publish slot configured")
	}
	if c.interval <= 0 {
		return fmt.Errorf("collector: invalid polling interval %v", c.interval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true
	c.workerID++

	c.source.Enable()
	go c.run(c.workerID)
	return nil
}

// Stop requests shutdown. The loop exits cooperatively on its next
// wake, so worst-case stop latency is one polling interval. Stopping a
// stopped collector is a no-op; Start may be called again afterwards.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.source.Disable()
}

// IsRunning reports whether the worker is active.
func (c *Collector) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Collector) isCurrentWorker(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && c.workerID == id
}

// run is the worker loop: sleep, drain, convert, build, publish.
// Per-cycle failures are logged and skipped; the previously published
// frame stays visible and the loop never terminates the process.
func (c *Collector) run(id uint64) {
	if c.verbose {
		log.Printf("collector: polling every %v", c.interval)
	}

	for {
		time.Sleep(c.interval)
		if !c.isCurrentWorker(id) {
			break
		}

		cycleStart := time.Now()

		events, err := c.source.DrainEvents()
		if err != nil {
			log.Printf("collector: drain failed, skipping cycle: %v", err)
			continue
		}
		if len(events) == 0 {
			continue
		}

		spans, threadNames := convertEvents(events)
		if len(spans) == 0 {
			continue
		}

		c.frameMu.Lock()
		c.frameTimes.Push(float32(time.Since(cycleStart).Seconds() * 1000))
		frameTimes := c.frameTimes.Items()
		c.frameMu.Unlock()

		frame := trace.BuildFrame(spans, threadNames, frameTimes)
		c.slot.Publish(frame)

		if c.verbose {
			log.Printf("collector: published %d spans across %d threads", len(frame.Spans), len(frame.Threads))
		}
	}

	if c.verbose {
		log.Print("collector: stopped")
	}
}

// convertEvents turns raw events into spans, collecting thread names
// along the way. Malformed events are dropped and logged; one bad event
// never poisons the batch.
func convertEvents(events []Event) ([]trace.Span, map[uint64]string) {
	spans := make([]trace.Span, 0, len(events))
	threadNames := make(map[uint64]string)

	for i, ev := range events {
		if err := validateEvent(ev); err != nil {
			log.Printf("collector: dropping event %q: %v", ev.Name, err)
			continue
		}
		if ev.ThreadName != "" {
			threadNames[ev.ThreadID] = ev.ThreadName
		}
		spans = append(spans, trace.Span{
			Name:       ev.Name,
			StartNs:    ev.StartNs,
			DurationNs: ev.DurationNs,
			Depth:      ev.Depth,
			ThreadID:   ev.ThreadID,
			ColorIndex: uint8(i % paletteSize),
		})
	}

	return spans, threadNames
}

// validateEvent rejects events that would violate Frame invariants.
func validateEvent(ev Event) error {
	if ev.Name == "" {
		return errors.New("empty name")
	}
	if ev.DurationNs > math.MaxUint64-ev.StartNs {
		return fmt.Errorf("start %d + duration %d overflows", ev.StartNs, ev.DurationNs)
	}
	return nil
}
