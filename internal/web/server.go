// Package web provides an HTTP status server for the motion-detector daemon.
package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/sweeney/motion-detector/internal/status"
)

// maxCommandBytes bounds an AT command request body.
const maxCommandBytes = 4096

// MetricsWriter renders metrics in Prometheus text format.
type MetricsWriter interface {
	WritePrometheus(w io.Writer)
}

// CommandFunc executes one AT command line and returns the full response.
type CommandFunc func(line string) string

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	metrics    MetricsWriter
	command    CommandFunc
}

// Option configures optional Server endpoints.
type Option func(*Server)

// WithMetrics serves m on /metrics.
func WithMetrics(m MetricsWriter) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCommands accepts AT command lines on POST /atci.
func WithCommands(fn CommandFunc) Option {
	return func(s *Server) { s.command = fn }
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts ...Option) *Server {
	s := &Server{tracker: tracker}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if s.metrics != nil {
		mux.HandleFunc("/metrics", s.handleMetrics)
	}
	if s.command != nil {
		mux.HandleFunc("/atci", s.handleCommand)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.WritePrometheus(w)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	line := strings.TrimSpace(string(body))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.command(line))
}
