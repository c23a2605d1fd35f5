// Package server exposes the toolbox, the individual steps and the full
// pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/pipeline"
	"github.com/kyleking/askdb/internal/tools"
)

// DefaultRequestTimeout bounds a request when none is configured
const DefaultRequestTimeout = 120 * time.Second

const maxSampleLimit = 100

// Server holds the handlers' dependencies
type Server struct {
	pipeline *pipeline.Pipeline
	tools    *tools.Toolbox
	timeout  time.Duration
}

// New creates a server; timeout <= 0 selects DefaultRequestTimeout
func New(p *pipeline.Pipeline, toolbox *tools.Toolbox, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Server{pipeline: p, tools: toolbox, timeout: timeout}
}

// Routes builds the HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/health", s.handleHealth)
	r.Get("/debug/connection", s.handleDebugConnection)

	r.Route("/databases", func(r chi.Router) {
		r.Get("/", s.handleListDatabases)
		r.Get("/{database}/tables", s.handleListTables)
		r.Get("/{database}/tables/{table}", s.handleDescribeTable)
		r.Get("/{database}/tables/{table}/sample", s.handleSample)
	})

	r.Post("/sql", s.handleRunSQL)
	r.Post("/steps/{action}", s.handleStep)
	r.Post("/ask", s.handleAsk)

	return r
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logging.Infof("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}

		return errors.Wrap(err, errors.ErrTypeConnectivity, "server stopped")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logging.Info("Shutting down")

		return srv.Shutdown(shutdownCtx)
	}
}

type errorResponse struct {
	Error       string           `json:"error"`
	ErrorType   errors.ErrorType `json:"error_type,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

type sqlRequest struct {
	Database string `json:"database"`
	Query    string `json:"query"`
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"driver":        s.tools.Dialect().Name(),
		"llm_available": s.tools.ModelAvailable(),
	})
}

func (s *Server) handleDebugConnection(w http.ResponseWriter, r *http.Request) {
	report := s.tools.DebugConnection(r.Context())

	status := http.StatusOK
	if report.Status != tools.StatusOK {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, report)
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"databases": s.tools.ListDatabases(r.Context()),
	})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	database := chi.URLParam(r, "database")

	respondJSON(w, http.StatusOK, map[string]any{
		"database": database,
		"tables":   s.tools.ListTables(r.Context(), database),
	})
}

func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	database, table := chi.URLParam(r, "database"), chi.URLParam(r, "table")

	respondJSON(w, http.StatusOK, map[string]any{
		"database": database,
		"table":    table,
		"schema":   s.tools.DescribeTable(r.Context(), database, table),
	})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	database, table := chi.URLParam(r, "database"), chi.URLParam(r, "table")

	limit := s.tools.SampleSize()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSampleLimit {
			respondError(w, errors.Newf(errors.ErrTypeValidation, "limit must be between 1 and %d", maxSampleLimit))
			return
		}

		limit = n
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"database": database,
		"table":    table,
		"rows":     s.tools.SampleData(r.Context(), database, table, limit),
	})
}

func (s *Server) handleRunSQL(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Database == "" {
		req.Database = s.tools.DefaultDatabase()
	}

	results, err := s.tools.RunSQL(r.Context(), req.Database, req.Query)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"database": req.Database,
		"results":  results,
		"count":    results.Len(),
	})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	action, err := pipeline.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		respondError(w, err)
		return
	}

	// steps without arguments may be posted with no body
	var req pipeline.StepRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	env, err := s.pipeline.Steps().Dispatch(r.Context(), action, req)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, env)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decode(w, r, &req) {
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondError(w, errors.New(errors.ErrTypeValidation, "question is required"))
		return
	}

	respondJSON(w, http.StatusOK, s.pipeline.Run(r.Context(), question))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, errors.Wrap(err, errors.ErrTypeValidation, "invalid JSON body"))
		return false
	}

	return true
}

// decodeOptional is decode that leaves dst untouched for an empty body
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !stderrors.Is(err, io.EOF) {
		respondError(w, errors.Wrap(err, errors.ErrTypeValidation, "invalid JSON body"))
		return false
	}

	return true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	resp := errorResponse{
		Error:     err.Error(),
		ErrorType: errors.GetType(err),
	}

	if structErr, ok := errors.As(err); ok {
		resp.Error = structErr.Message
		if structErr.Cause != nil {
			resp.Error += ": " + structErr.Detail()
		}

		resp.Suggestions = structErr.Suggestions
	}

	respondJSON(w, statusFor(resp.ErrorType), resp)
}

func statusFor(errType errors.ErrorType) int {
	switch errType {
	case errors.ErrTypeValidation:
		return http.StatusBadRequest
	case errors.ErrTypeNotFound:
		return http.StatusNotFound
	case errors.ErrTypeExecution:
		return http.StatusUnprocessableEntity
	case errors.ErrTypeConnectivity, errors.ErrTypeModel:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger tags every request with an id and logs its outcome
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(middleware.RequestIDHeader, id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logging.WithFields(map[string]any{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
		}).Info("Request handled")
	})
}
