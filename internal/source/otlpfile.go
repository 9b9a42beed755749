package source

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"google.golang.org/protobuf/encoding/protojson"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/flamedeck/flamedeck/internal/collector"
)

const (
	// jsonlBufferMax caps how much one drain reads from a single file.
	// OTLP JSON lines can be large for batched spans with many
	// attributes; anything beyond the cap is picked up next cycle.
	jsonlBufferMax = 10 * 1024 * 1024

	// maxDepthWalk bounds parent-chain walks against malformed links.
	maxDepthWalk = 128
)

// OTLPFileConfig configures an OTLPFileSource.
type OTLPFileConfig struct {
	// Dir holds .jsonl files written by the OpenTelemetry Collector's
	// file exporter (one ExportTraceServiceRequest-shaped JSON object
	// per line).
	Dir     string
	Verbose bool
}

// OTLPFileSource tails OTLP/JSON trace files and converts their spans
// into profiler events. Known files are re-checked for growth on every
// drain; fsnotify announces newly created files so the directory never
// needs re-listing. The drain itself does all reading, so the source
// adds no goroutines of its own.
type OTLPFileSource struct {
	dir     string
	verbose bool
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	enabled bool
	scanned bool
	offsets map[string]int64
}

// NewOTLPFile creates a file source over the given directory.
func NewOTLPFile(cfg OTLPFileConfig) (*OTLPFileSource, error) {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory %s: %w", cfg.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(cfg.Dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Dir, err)
	}

	return &OTLPFileSource{
		dir:     cfg.Dir,
		verbose: cfg.Verbose,
		watcher: watcher,
		offsets: make(map[string]int64),
	}, nil
}

// Enable implements collector.EventSource.
func (s *OTLPFileSource) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
}

// Disable implements collector.EventSource.
func (s *OTLPFileSource) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
}

// Close releases the directory watcher.
func (s *OTLPFileSource) Close() error {
	return s.watcher.Close()
}

// DrainEvents reads any data appended since the last drain and returns
// the converted events. Unreadable files surface as an error so the
// collector can skip the cycle; malformed lines are dropped and logged
// without failing the batch.
func (s *OTLPFileSource) DrainEvents() ([]collector.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return nil, nil
	}

	if !s.scanned {
		if err := s.scanDir(); err != nil {
			return nil, err
		}
		s.scanned = true
	}
	s.drainWatcher()

	var events []collector.Event
	for path, offset := range s.offsets {
		info, err := os.Stat(path)
		if err != nil {
			// Rotated away; forget it.
			delete(s.offsets, path)
			continue
		}
		if info.Size() <= offset {
			continue
		}

		batch, newOffset, err := s.readFrom(path, offset)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		s.offsets[path] = newOffset
		events = append(events, batch...)
	}

	return events, nil
}

// scanDir registers every .jsonl file already present.
func (s *OTLPFileSource) scanDir() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", s.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			s.offsets[filepath.Join(s.dir, e.Name())] = 0
		}
	}
	return nil
}

// drainWatcher consumes pending fsnotify events without blocking,
// registering newly created .jsonl files.
func (s *OTLPFileSource) drainWatcher() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) && strings.HasSuffix(ev.Name, ".jsonl") {
				if _, known := s.offsets[ev.Name]; !known {
					s.offsets[ev.Name] = 0
					if s.verbose {
						log.Printf("otlpfile: discovered %s", ev.Name)
					}
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("otlpfile: watcher error: %v", err)
		default:
			return
		}
	}
}

// readFrom decodes whole JSONL lines starting at offset and returns the
// converted events plus the new offset. A partial line at the end of
// the file (a writer mid-append) is left unconsumed for the next drain.
func (s *OTLPFileSource) readFrom(path string, offset int64) ([]collector.Event, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}

	data, err := io.ReadAll(io.LimitReader(f, jsonlBufferMax))
	if err != nil {
		return nil, offset, err
	}

	var events []collector.Event
	pos := offset
	for len(data) > 0 {
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			break // partial line, wait for the rest
		}
		line := data[:nl]
		data = data[nl+1:]
		pos += int64(nl) + 1

		if len(line) == 0 {
			continue
		}
		var td tracepb.TracesData
		if err := protojson.Unmarshal(line, &td); err != nil {
			log.Printf("otlpfile: dropping malformed line in %s: %v", path, err)
			continue
		}
		events = append(events, convertTraces(&td)...)
	}

	if s.verbose && len(events) > 0 {
		log.Printf("otlpfile: read %d events from %s", len(events), path)
	}
	return events, pos, nil
}

// convertTraces flattens OTLP spans into profiler events. Nesting depth
// comes from parent links within the batch; spans whose parent is
// missing (or outside the batch) sit at depth zero. Thread identity
// uses the thread.id/thread.name span attributes when present, falling
// back to one lane per service.
func convertTraces(td *tracepb.TracesData) []collector.Event {
	type entry struct {
		span    *tracepb.Span
		service string
	}

	byID := make(map[string]entry)
	var order []entry
	for _, rs := range td.ResourceSpans {
		service := resourceServiceName(rs)
		for _, ss := range rs.ScopeSpans {
			for _, span := range ss.Spans {
				e := entry{span: span, service: service}
				byID[string(span.SpanId)] = e
				order = append(order, e)
			}
		}
	}

	depths := make(map[string]uint32, len(byID))
	var depthOf func(id string) uint32
	depthOf = func(id string) uint32 {
		if d, ok := depths[id]; ok {
			return d
		}
		depths[id] = 0 // cycle guard
		e, ok := byID[id]
		if !ok {
			return 0
		}
		parent := string(e.span.ParentSpanId)
		if parent == "" || len(e.span.ParentSpanId) == 0 {
			return 0
		}
		if _, inBatch := byID[parent]; !inBatch {
			return 0
		}
		d := depthOf(parent) + 1
		if d > maxDepthWalk {
			d = maxDepthWalk
		}
		depths[id] = d
		return d
	}

	events := make([]collector.Event, 0, len(order))
	for _, e := range order {
		span := e.span
		dur := uint64(0)
		if span.EndTimeUnixNano > span.StartTimeUnixNano {
			dur = span.EndTimeUnixNano - span.StartTimeUnixNano
		}

		threadID, threadName := spanThread(span, e.service)
		events = append(events, collector.Event{
			Name:       span.Name,
			ThreadID:   threadID,
			ThreadName: threadName,
			StartNs:    span.StartTimeUnixNano,
			DurationNs: dur,
			Depth:      depthOf(string(span.SpanId)),
		})
	}
	return events
}

// spanThread extracts thread identity from span attributes, falling
// back to a stable per-service lane.
func spanThread(span *tracepb.Span, service string) (uint64, string) {
	var id uint64
	var haveID bool
	var name string

	for _, kv := range span.Attributes {
		switch kv.Key {
		case "thread.id":
			if v, ok := attrUint(kv.Value); ok {
				id = v
				haveID = true
			}
		case "thread.name":
			name = kv.Value.GetStringValue()
		}
	}

	if !haveID {
		h := fnv.New64a()
		h.Write([]byte(service))
		id = h.Sum64()
		if name == "" {
			name = service
		}
	}
	return id, name
}

func attrUint(v *commonpb.AnyValue) (uint64, bool) {
	switch val := v.Value.(type) {
	case *commonpb.AnyValue_IntValue:
		if val.IntValue >= 0 {
			return uint64(val.IntValue), true
		}
	case *commonpb.AnyValue_StringValue:
		if n, err := strconv.ParseUint(val.StringValue, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// resourceServiceName pulls service.name from resource attributes.
func resourceServiceName(rs *tracepb.ResourceSpans) string {
	if rs.Resource == nil {
		return "unknown"
	}
	for _, kv := range rs.Resource.Attributes {
		if kv.Key == "service.name" {
			if s := kv.Value.GetStringValue(); s != "" {
				return s
			}
		}
	}
	return "unknown"
}
