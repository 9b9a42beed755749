// Package source provides EventSource implementations for the
// collector: a synthetic engine workload for demos and tests, and a
// tailer for OTLP/JSON trace files exported by an instrumented program.
package source

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/flamedeck/flamedeck/internal/collector"
)

// Demo thread layout. Worker lanes follow the audio thread.
const (
	demoGPUThread uint64 = iota
	demoMainThread
	demoRenderThread
	demoPhysicsThread
	demoAudioThread
	demoFirstWorker
)

const (
	demoWorkers       = 4
	demoFramesPerPoll = 4
	// demoWindowFrames bounds the rolling window the source re-emits.
	// Frames are rebuilt wholesale from each batch, so the source keeps
	// re-emitting its window rather than only the newest engine frame.
	demoWindowFrames = 120
)

var demoThreadNames = map[uint64]string{
	demoGPUThread:     "GPU",
	demoMainThread:    "Main Thread",
	demoRenderThread:  "Render Thread",
	demoPhysicsThread: "Physics Thread",
	demoAudioThread:   "Audio Thread",
}

// DemoSource synthesizes a multi-threaded game-engine workload: a GPU
// lane with render passes and draws, a main thread with nested entity
// updates, and render/physics/audio/worker lanes. Deterministic for a
// given seed.
type DemoSource struct {
	mu      sync.Mutex
	enabled bool
	rng     *rand.Rand
	clockNs uint64
	frames  [][]collector.Event
}

// NewDemo creates a demo source seeded for reproducible traces.
func NewDemo(seed int64) *DemoSource {
	return &DemoSource{rng: rand.New(rand.NewSource(seed))}
}

// Enable implements collector.EventSource.
func (d *DemoSource) Enable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = true
}

// Disable implements collector.EventSource.
func (d *DemoSource) Disable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = false
}

// DrainEvents synthesizes a few more engine frames and returns the
// whole rolling window. Disabled sources report nothing new.
func (d *DemoSource) DrainEvents() ([]collector.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.enabled {
		return nil, nil
	}

	for i := 0; i < demoFramesPerPoll; i++ {
		d.frames = append(d.frames, d.engineFrame())
	}
	if len(d.frames) > demoWindowFrames {
		d.frames = d.frames[len(d.frames)-demoWindowFrames:]
	}

	var out []collector.Event
	for _, frame := range d.frames {
		out = append(out, frame...)
	}
	return out, nil
}

// engineFrame emits one ~16.6ms frame's worth of events across all
// demo threads and advances the synthetic clock.
func (d *DemoSource) engineFrame() []collector.Event {
	frameStart := d.clockNs
	frameDur := uint64(13_000_000 + d.rng.Intn(8_000_000)) // 13-21ms
	d.clockNs += frameDur

	var events []collector.Event
	emit := func(name string, thread uint64, start, dur uint64, depth uint32) {
		events = append(events, collector.Event{
			Name:       name,
			ThreadID:   thread,
			ThreadName: demoThreadNames[thread],
			StartNs:    start,
			DurationNs: dur,
			Depth:      depth,
		})
	}

	// GPU: whole-frame span, passes, draws.
	gpuStart := frameStart + d.durBetween(1_000_000, 3_000_000)
	gpuDur := d.durBetween(8_000_000, 13_000_000)
	emit("GPU Frame", demoGPUThread, gpuStart, gpuDur, 0)
	passes := []struct {
		name     string
		min, max uint64
	}{
		{"ShadowPass", 1_500_000, 3_000_000},
		{"GeometryPass", 2_000_000, 4_000_000},
		{"LightingPass", 2_500_000, 4_500_000},
		{"PostProcess", 1_000_000, 2_500_000},
	}
	passStart := gpuStart
	for _, p := range passes {
		passDur := d.durBetween(p.min, p.max)
		emit(p.name, demoGPUThread, passStart, passDur, 1)
		draws := 3 + d.rng.Intn(5)
		drawDur := passDur / uint64(draws)
		for i := 0; i < draws; i++ {
			emit(fmt.Sprintf("Draw_%d", i), demoGPUThread, passStart+uint64(i)*drawDur, drawDur, 2)
		}
		passStart += passDur
	}

	// Main thread: frame, input, game update with per-entity children.
	emit("Frame", demoMainThread, frameStart, frameDur, 0)
	inputDur := d.durBetween(100_000, 500_000)
	emit("Input::Process", demoMainThread, frameStart, inputDur, 1)
	updateStart := frameStart + inputDur
	updateDur := d.durBetween(2_000_000, 6_000_000)
	emit("GameLogic::Update", demoMainThread, updateStart, updateDur, 1)
	entities := 5 + d.rng.Intn(10)
	entityDur := updateDur / uint64(entities)
	for i := 0; i < entities; i++ {
		emit(fmt.Sprintf("Entity_%d", i), demoMainThread, updateStart+uint64(i)*entityDur, entityDur, 2)
	}

	// Render thread.
	renderStart := frameStart + d.durBetween(500_000, 2_000_000)
	taskStart := renderStart
	for _, task := range []string{"Cull", "Sort", "BuildCmdBuffer", "Submit"} {
		taskDur := d.durBetween(500_000, 2_500_000)
		emit("Render::"+task, demoRenderThread, taskStart, taskDur, 0)
		taskStart += taskDur
	}

	// Physics thread.
	physStart := frameStart + d.durBetween(0, 2_000_000)
	for _, phase := range []string{"BroadPhase", "NarrowPhase", "SolveConstraints", "Integrate"} {
		phaseDur := d.durBetween(500_000, 2_000_000)
		emit("Physics::"+phase, demoPhysicsThread, physStart, phaseDur, 0)
		physStart += phaseDur
	}

	// Audio thread.
	audioStart := frameStart + d.durBetween(0, 1_000_000)
	for _, task := range []string{"MixChannels", "ApplyEffects", "Output"} {
		taskDur := d.durBetween(200_000, 800_000)
		emit("Audio::"+task, demoAudioThread, audioStart, taskDur, 0)
		audioStart += taskDur
	}

	// Job system workers, unnamed lanes.
	for w := 0; w < demoWorkers; w++ {
		thread := demoFirstWorker + uint64(w)
		jobStart := frameStart + d.durBetween(0, 3_000_000)
		jobDur := d.durBetween(2_000_000, 7_000_000)
		emit(fmt.Sprintf("Worker_%d", w), thread, jobStart, jobDur, 0)
		tasks := 2 + d.rng.Intn(4)
		taskDur := jobDur / uint64(tasks)
		for i := 0; i < tasks; i++ {
			emit(fmt.Sprintf("Task_%d", i), thread, jobStart+uint64(i)*taskDur, taskDur, 1)
		}
	}

	return events
}

func (d *DemoSource) durBetween(min, max uint64) uint64 {
	return min + uint64(d.rng.Int63n(int64(max-min)))
}
