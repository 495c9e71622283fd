package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"mbp-reconstructor/internal/mbp"
	"mbp-reconstructor/internal/reconstruct"
)

// RunStatus is what the server reports about the reconstruction in progress.
type RunStatus interface {
	Running() bool
	Progress() reconstruct.Stats
}

type HTTPServer struct {
	run     RunStatus
	hub     *hub
	log     *zap.Logger
	mux     *http.ServeMux
	latest  atomic.Pointer[mbp.Row]
	dropped atomic.Int64

	closeOnce sync.Once
}

// NewHTTPServer starts the websocket hub. backlog is the number of rows replayed to
// a client when it connects.
func NewHTTPServer(run RunStatus, backlog int, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &HTTPServer{
		run: run,
		hub: newHub(backlog, logger),
		log: logger,
		mux: http.NewServeMux(),
	}
	s.routes()
	go s.hub.run()
	return s
}

func (s *HTTPServer) Router() http.Handler { return s.mux }

// Close stops the hub and disconnects every websocket client.
func (s *HTTPServer) Close() {
	s.closeOnce.Do(func() { close(s.hub.quit) })
}

// --------- WS broadcasts ----------

// BroadcastRow records r as the latest row and queues it for websocket clients.
// It never blocks; rows are dropped when the hub falls behind.
func (s *HTTPServer) BroadcastRow(r mbp.Row) {
	s.latest.Store(&r)
	msg, err := marshalWS("row", r)
	if err != nil {
		s.log.Warn("encode row", zap.Uint64("ts", r.Timestamp), zap.Error(err))
		return
	}
	if !s.hub.publish(msg) {
		if n := s.dropped.Add(1); n&(n-1) == 0 {
			s.log.Warn("ws broadcast buffer full, dropping rows", zap.Int64("dropped", n))
		}
	}
}

// Dropped is the number of rows that never reached the hub.
func (s *HTTPServer) Dropped() int64 { return s.dropped.Load() }

// --------- Routes ----------

func (s *HTTPServer) routes() {
	s.mux.HandleFunc("/ws", s.hub.serveWS)

	s.mux.HandleFunc("/api/health", s.apiHealth)
	s.mux.HandleFunc("/api/book", s.apiBook)
	s.mux.HandleFunc("/api/stats", s.apiStats)
}

func (s *HTTPServer) apiHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"ok":      true,
		"running": s.run.Running(),
	})
}

func (s *HTTPServer) apiBook(w http.ResponseWriter, r *http.Request) {
	row := s.latest.Load()
	if row == nil {
		http.Error(w, "no snapshot yet", http.StatusNotFound)
		return
	}
	writeJSON(w, row)
}

func (s *HTTPServer) apiStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"running":   s.run.Running(),
		"stats":     s.run.Progress(),
		"wsDropped": s.Dropped(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
