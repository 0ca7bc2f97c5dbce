// Package server exposes the assistant over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/fundqa/internal/assistant"
	"github.com/sells-group/fundqa/internal/model"
)

// SessionHeader selects the session a request belongs to.
const SessionHeader = "X-Session-ID"

// Status is reported by the health endpoint.
type Status struct {
	Records int
	Model   string
}

// Server routes requests to session assistants.
type Server struct {
	sessions *assistant.Sessions
	status   Status
	origins  []string
}

// New creates a Server. An empty origins list allows any origin.
func New(sessions *assistant.Sessions, status Status, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{sessions: sessions, status: status, origins: origins}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders: []string{SessionHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/init", s.handleInit)
	r.Post("/ask", s.handleAsk)
	r.Get("/history", s.handleHistory)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": s.status.Records,
		"model":   s.status.Model,
	})
}

type initRequest struct {
	APIKey string `json:"api_key"`
}

type initResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, initResponse{Status: "error", Message: "Invalid JSON data"})
		return
	}

	id, err := s.sessions.Create(strings.TrimSpace(req.APIKey))
	if err != nil {
		zap.L().Error("init session failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, initResponse{Status: "error", Message: err.Error()})
		return
	}

	w.Header().Set(SessionHeader, id)
	writeJSON(w, http.StatusOK, initResponse{
		Status:    "success",
		Message:   "Assistant initialized successfully",
		SessionID: id,
	})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	a, ok := s.session(w, r)
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "No question provided")
		return
	}

	resp, err := a.Ask(r.Context(), req.Question)
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "No question provided")
		return
	case err != nil:
		zap.L().Error("ask failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, resp.Answer())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	a, ok := s.session(w, r)
	if !ok {
		return
	}
	h := a.History()
	if h == nil {
		h = []model.Interaction{}
	}
	writeJSON(w, http.StatusOK, h)
}

// session resolves the request's assistant, writing a 404 when the header
// names an unknown session.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*assistant.Assistant, bool) {
	a, err := s.sessions.Get(r.Header.Get(SessionHeader))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return nil, false
	}
	return a, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
