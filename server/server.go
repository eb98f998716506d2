package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Abhijeetkumar8582/NewCode/core"
	"github.com/Abhijeetkumar8582/NewCode/processors"
	"github.com/Abhijeetkumar8582/NewCode/storage"
)

// Server exposes the processing pipeline over HTTP.
type Server struct {
	cfg      *core.Config
	pipeline *processors.Pipeline
	docs     *processors.DocumentBuilder
	results  storage.ResultStore
	vectors  storage.VectorStore
	log      *slog.Logger
}

func New(cfg *core.Config, pipeline *processors.Pipeline, docs *processors.DocumentBuilder,
	results storage.ResultStore, vectors storage.VectorStore, log *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		docs:     docs,
		results:  results,
		vectors:  vectors,
		log:      log,
	}
}

// Routes builds the route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/videos", s.handleListVideos)
	mux.HandleFunc("GET /api/videos/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/videos/{id}/frames", s.handleFrames)
	mux.HandleFunc("GET /api/videos/{id}/transcript", s.handleTranscript)
	mux.HandleFunc("GET /api/videos/{id}/document", s.handleDocument)
	mux.HandleFunc("GET /api/videos/{id}/summary", s.handleSummary)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	return mux
}

// ListenAndServe runs the server with sane timeouts. Long-running work never
// happens on request goroutines, so these stay tight.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute, // uploads can be large
		WriteTimeout:      30 * time.Second,
	}
	s.log.Info("http server listening", "addr", addr)
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
