// Package webui exposes the trace query boundary over HTTP: JSON
// endpoints backed by the publish slot, plus a WebSocket that announces
// new publish generations so a renderer only re-queries when a fresh
// frame actually landed. No drawing happens on this side.
package webui

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/flamedeck/flamedeck/internal/lod"
	"github.com/flamedeck/flamedeck/internal/snapshot"
	"github.com/flamedeck/flamedeck/internal/trace"
)

// generationPollInterval is how often the WebSocket loop checks the
// slot for a new publish.
const generationPollInterval = 100 * time.Millisecond

// Server serves the query API over one publish slot.
type Server struct {
	slot *snapshot.Slot
}

// New creates a web UI server reading from the given slot.
func New(slot *snapshot.Slot) *Server {
	return &Server{slot: slot}
}

// RegisterRoutes attaches API routes to an existing ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("GET /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// ListenAndServe starts a standalone HTTP server for the query API.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// frameResponse is the JSON shape for /api/frame.
type frameResponse struct {
	Generation uint64 `json:"generation"`
	SpanCount  int    `json:"span_count"`
	Threads    int    `json:"threads"`
	MinTimeNs  uint64 `json:"min_time_ns"`
	DurationNs uint64 `json:"duration_ns"`
	MaxDepth   uint32 `json:"max_depth"`
}

// handleFrame returns a summary of the currently published frame.
// Before the first publish it reports generation zero and no data.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	p := s.slot.Load()
	if p == nil {
		writeJSON(w, frameResponse{})
		return
	}
	writeJSON(w, frameResponse{
		Generation: p.Generation,
		SpanCount:  len(p.Frame.Spans),
		Threads:    len(p.Frame.Threads),
		MinTimeNs:  p.Frame.MinTimeNs,
		DurationNs: p.Frame.DurationNs(),
		MaxDepth:   p.Frame.MaxDepth,
	})
}

// mergedSpanJSON is the wire shape of one merged span.
type mergedSpanJSON struct {
	StartNs    uint64  `json:"start_ns"`
	EndNs      uint64  `json:"end_ns"`
	Y          float32 `json:"y"`
	ThreadID   uint64  `json:"thread_id"`
	Depth      uint32  `json:"depth"`
	ColorIndex uint8   `json:"color_index"`
	SpanCount  int     `json:"span_count"`
}

func toMergedSpanJSON(ms lod.MergedSpan) mergedSpanJSON {
	return mergedSpanJSON(ms)
}

// handleQuery runs a resolution-adaptive span query for the renderer.
// Query parameters: start, end (ns), ymin, ymax (px), width (px). A
// window with end <= start is a caller bug and rejected here rather
// than handed to the index.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := strconv.ParseUint(q.Get("start"), 10, 64)
	if err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}
	end, err := strconv.ParseUint(q.Get("end"), 10, 64)
	if err != nil {
		http.Error(w, "invalid end", http.StatusBadRequest)
		return
	}
	if end <= start {
		http.Error(w, "end must be greater than start", http.StatusBadRequest)
		return
	}
	width, err := strconv.ParseFloat(q.Get("width"), 32)
	if err != nil || width <= 0 {
		http.Error(w, "invalid width", http.StatusBadRequest)
		return
	}

	// Y bounds default to "everything" when omitted.
	yMin, yMax := float32(-1e9), float32(1e9)
	if v := q.Get("ymin"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			http.Error(w, "invalid ymin", http.StatusBadRequest)
			return
		}
		yMin = float32(f)
	}
	if v := q.Get("ymax"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			http.Error(w, "invalid ymax", http.StatusBadRequest)
			return
		}
		yMax = float32(f)
	}

	spans := s.slot.QueryDynamic(start, end, yMin, yMax, float32(width))
	out := make([]mergedSpanJSON, 0, len(spans))
	for _, ms := range spans {
		out = append(out, toMergedSpanJSON(ms))
	}
	writeJSON(w, out)
}

// threadStatsJSON describes one thread lane for the stats view.
type threadStatsJSON struct {
	ID        uint64  `json:"id"`
	Name      string  `json:"name,omitempty"`
	SpanCount int     `json:"span_count"`
	MaxDepth  uint32  `json:"max_depth"`
	Y         float32 `json:"y"`
}

// statsResponse is the JSON shape for /api/stats.
type statsResponse struct {
	Generation uint64                 `json:"generation"`
	Threads    []threadStatsJSON      `json:"threads"`
	Framerate  trace.FramerateSummary `json:"framerate"`
}

// handleStats returns per-thread span counts and the framerate summary,
// threads in lane order.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p := s.slot.Load()
	if p == nil {
		writeJSON(w, statsResponse{Threads: []threadStatsJSON{}})
		return
	}

	counts := make(map[uint64]int)
	depths := make(map[uint64]uint32)
	for _, sp := range p.Frame.Spans {
		counts[sp.ThreadID]++
		if sp.Depth > depths[sp.ThreadID] {
			depths[sp.ThreadID] = sp.Depth
		}
	}

	threads := make([]threadStatsJSON, 0, len(p.Frame.Threads))
	for id, info := range p.Frame.Threads {
		threads = append(threads, threadStatsJSON{
			ID:        id,
			Name:      info.Name,
			SpanCount: counts[id],
			MaxDepth:  depths[id],
			Y:         p.Cache.Offsets[id],
		})
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].Y < threads[j].Y })

	writeJSON(w, statsResponse{
		Generation: p.Generation,
		Threads:    threads,
		Framerate:  p.Frame.Framerate(),
	})
}

// wsUpdate is the server-sent message on the WebSocket.
type wsUpdate struct {
	Generation uint64 `json:"generation"`
	SpanCount  int    `json:"span_count"`
	DurationNs uint64 `json:"duration_ns"`
}

// handleWebSocket streams publish notifications: one message per new
// generation. The client re-queries /api/query with its own viewport;
// the socket carries no span data.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for localhost dev
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	// Send the current state immediately so a late-joining client
	// paints without waiting for the next publish.
	var lastSent uint64
	if p := s.slot.Load(); p != nil {
		if !s.sendWSUpdate(ctx, conn, p) {
			return
		}
		lastSent = p.Generation
	}

	ticker := time.NewTicker(generationPollInterval)
	defer ticker.Stop()

	// Keepalive so the client knows we're alive during idle stretches.
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return

		case <-ticker.C:
			p := s.slot.Load()
			if p == nil || p.Generation == lastSent {
				continue
			}
			if !s.sendWSUpdate(ctx, conn, p) {
				return
			}
			lastSent = p.Generation

		case <-keepalive.C:
			p := s.slot.Load()
			if p == nil {
				continue
			}
			if !s.sendWSUpdate(ctx, conn, p) {
				return
			}
			lastSent = p.Generation
		}
	}
}

// sendWSUpdate sends one update, reporting false once the connection is
// gone.
func (s *Server) sendWSUpdate(ctx context.Context, conn *websocket.Conn, p *snapshot.Published) bool {
	data, err := json.Marshal(wsUpdate{
		Generation: p.Generation,
		SpanCount:  len(p.Frame.Spans),
		DurationNs: p.Frame.DurationNs(),
	})
	if err != nil {
		log.Printf("webui: failed to marshal update: %v", err)
		return true
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data) == nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "")
	if err := enc.Encode(v); err != nil {
		log.Printf("webui: failed to write JSON: %v", err)
	}
}
