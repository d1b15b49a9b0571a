package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/joescharf/issuetracker/internal/tracker"
)

// maxBodyBytes bounds request bodies; issues are small.
const maxBodyBytes = 1 << 20

// Server provides the REST API handlers.
type Server struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

// NewServer creates a new API server. A nil logger uses slog.Default().
func NewServer(t *tracker.Tracker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{tracker: t, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/issues/{project}", s.listIssues)
	mux.HandleFunc("POST /api/issues/{project}", s.createIssue)
	mux.HandleFunc("PUT /api/issues/{project}", s.updateIssue)
	mux.HandleFunc("DELETE /api/issues/{project}", s.deleteIssue)

	mux.HandleFunc("GET /healthz", s.health)

	return s.recoverMiddleware(s.logMiddleware(corsMiddleware(mux)))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panic", "method", r.Method, "path", r.URL.Path, "panic", v)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// outcome is the body of update/delete responses and of domain failures.
type outcome struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     string `json:"_id,omitempty"`
}

// fail reports err. Domain failures are answered with 200 and an error body,
// which is what existing clients of this API check for. Store failures are
// logged and answered with 503.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if tracker.IsDomainError(err) {
		id, _ := tracker.ErrorID(err)
		writeJSON(w, http.StatusOK, outcome{Error: err.Error(), ID: id})
		return
	}
	s.logger.Error("store operation failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusServiceUnavailable, tracker.ErrStoreUnavailable.Error())
}

// readBody decodes a JSON or form-encoded body into a flat map. Form values
// keep only their first occurrence. An unreadable body decodes as empty.
func readBody(w http.ResponseWriter, r *http.Request) map[string]any {
	body := map[string]any{}
	if r.Body == nil {
		return body
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return body
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" || (mediaType == "" && bytes.HasPrefix(bytes.TrimSpace(data), []byte("{"))) {
		if err := json.Unmarshal(data, &body); err != nil {
			return map[string]any{}
		}
		return body
	}

	values, err := url.ParseQuery(string(data))
	if err != nil {
		return body
	}
	for k := range values {
		body[k] = values.Get(k)
	}
	return body
}

// --- Issues ---

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.tracker.List(r.Context(), r.PathValue("project"), r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	in := tracker.CreateInputFromBody(readBody(w, r))
	issue, err := s.tracker.Create(r.Context(), r.PathValue("project"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	id, err := s.tracker.Update(r.Context(), readBody(w, r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome{Result: "successfully updated", ID: id})
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	id := tracker.BodyID(readBody(w, r))
	if err := s.tracker.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome{Result: "successfully deleted", ID: id})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, tracker.ErrStoreUnavailable.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IsServerClosed reports whether err is the normal result of a graceful shutdown.
func IsServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
