// Package server exposes the research pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/smallnest/researchflow/log"
	"github.com/smallnest/researchflow/metrics"
	"github.com/smallnest/researchflow/report"
	"github.com/smallnest/researchflow/research"
)

// Runner runs one research question. *research.Controller implements it.
type Runner interface {
	Trace(ctx context.Context, query string) (*research.Trace, error)
}

// Server serves POST /research, GET /health and GET /metrics.
type Server struct {
	runner         Runner
	metrics        *metrics.Metrics
	logger         log.Logger
	requestTimeout time.Duration
	router         *mux.Router
}

type Option func(*Server)

// WithRequestTimeout bounds each research request. Zero means no bound beyond
// the client's own connection.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a server around runner.
func New(runner Runner, opts ...Option) *Server {
	s := &Server{runner: runner, requestTimeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger)

	r := mux.NewRouter()
	r.HandleFunc("/research", s.handleResearch).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.Use(s.instrument)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type researchRequest struct {
	Query string `json:"query"`
	// Format selects a rendered report instead of the JSON envelope.
	Format string `json:"format,omitempty"`
	// Trace includes the plan and per-step findings in the JSON envelope.
	Trace bool `json:"trace,omitempty"`
}

type findingView struct {
	Index   int               `json:"index"`
	Query   string            `json:"query"`
	Status  string            `json:"status"`
	Summary string            `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty"`
	Sources []research.Source `json:"sources,omitempty"`
}

type researchResponse struct {
	RunID    string                  `json:"run_id"`
	Report   *research.FinalReport   `json:"report,omitempty"`
	Steps    []research.ResearchStep `json:"steps,omitempty"`
	Findings []findingView           `json:"findings,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
	RunID string `json:"run_id,omitempty"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}
	var format report.Format
	if req.Format != "" {
		f, err := report.ParseFormat(req.Format)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		format = f
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	trace, err := s.runner.Trace(ctx, req.Query)
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		if stage, ok := research.StageOf(err); ok {
			resp.Stage = string(stage)
		}
		if trace != nil {
			resp.RunID = trace.RunID
		}
		writeJSON(w, statusFor(err), resp)
		return
	}

	if format != "" && format != report.FormatJSON {
		body, err := report.Render(format, trace.Report)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), RunID: trace.RunID})
			return
		}
		w.Header().Set("Content-Type", contentType(format))
		w.Header().Set("X-Run-Id", trace.RunID)
		_, _ = w.Write(body)
		return
	}

	resp := researchResponse{RunID: trace.RunID, Report: trace.Report}
	if req.Trace {
		resp.Steps = trace.Steps
		for _, f := range trace.Findings {
			v := findingView{
				Index:   f.Step.Index,
				Query:   f.Step.Query,
				Status:  string(f.Status),
				Summary: f.Summary,
				Sources: f.Sources,
			}
			if f.Err != nil {
				v.Error = f.Err.Error()
			}
			resp.Findings = append(resp.Findings, v)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// statusFor maps pipeline errors to HTTP statuses. Model and search failures
// are upstream problems, so they surface as 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, research.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	}
	if _, ok := research.StageOf(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func contentType(f report.Format) string {
	switch f {
	case report.FormatHTML:
		return "text/html; charset=utf-8"
	case report.FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests by route template and logs slow ones.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.HTTPRequest(route, rec.status)
		s.logger.Debug("%s %s %d %s", r.Method, route, rec.status, time.Since(started).Round(time.Millisecond))
	})
}
