package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"quiz-proctor/internal/app"
	"quiz-proctor/internal/domain"
	"quiz-proctor/internal/infra/api"
)

// NewRouter mounts the REST API, the session socket and the health check.
// An empty origins list allows any origin (Telegram mini-apps are served
// from the bot owner's domain).
func NewRouter(service *app.ProctorService, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	sessions := &sessionHandler{service: service}
	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/", sessions.start)
		r.Get("/{sessionID}", sessions.get)
	})

	r.Get("/ws", NewWSHandler(service).ServeWS)
	return r
}

type sessionHandler struct {
	service *app.ProctorService
}

type startResponse struct {
	SessionID string             `json:"session_id"`
	View      domain.SessionView `json:"view"`
}

type errResp struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (h *sessionHandler) start(w http.ResponseWriter, r *http.Request) {
	var req app.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TestID == 0 || req.TelegramID == 0 {
		writeErr(w, http.StatusBadRequest, "test_id and telegram_id are required")
		return
	}

	session, err := h.service.Start(r.Context(), req)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{SessionID: session.ID(), View: session.View()})
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

// writeServiceErr maps use-case errors to responses. Client errors from the
// quiz API (e.g. 400 "All attempts used") keep their status and message;
// anything else from upstream is a 502.
func writeServiceErr(w http.ResponseWriter, err error) {
	var blocked *domain.BlockedError
	var upstream *api.StatusError
	switch {
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusForbidden, errResp{Error: app.BlockedMessage, Reason: blocked.Reason})
	case errors.Is(err, domain.ErrBlocked):
		writeJSON(w, http.StatusForbidden, errResp{Error: app.BlockedMessage})
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrTestNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoQuestions):
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &upstream) && upstream.Status >= 400 && upstream.Status < 500:
		msg := upstream.Message
		if msg == "" {
			msg = http.StatusText(upstream.Status)
		}
		writeErr(w, upstream.Status, msg)
	default:
		writeErr(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}
