package remote

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// commandRequest is the optional body of POST /commands/{command}.
type commandRequest struct {
	Value *float64 `json:"value,omitempty"`
}

type speedResponse struct {
	Speed float64 `json:"speed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPHandler exposes the router over HTTP for controllers that cannot
// speak D-Bus.
type HTTPHandler struct {
	router *Router
	log    *slog.Logger
}

// NewHTTPHandler returns a handler for r. log may be nil.
func NewHTTPHandler(r *Router, log *slog.Logger) *HTTPHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &HTTPHandler{router: r, log: log}
}

// Routes mounts the endpoints on a chi mux:
//
//	POST  /commands/{command}
//	GET   /config
//	PATCH /config
//	POST  /speed/cycle
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger(h.log))
	r.Post("/commands/{command}", h.Command)
	r.Get("/config", h.GetConfig)
	r.Patch("/config", h.PatchConfig)
	r.Post("/speed/cycle", h.CycleSpeed)
	return r
}

// Command handles POST /commands/{command}. Body: { "value": 12.5 }, optional.
// Any command is accepted; failures are logged by the router, not returned.
func (h *HTTPHandler) Command(w http.ResponseWriter, r *http.Request) {
	cmd := Command(chi.URLParam(r, "command"))
	if cmd == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug("invalid command body", slog.String("command", string(cmd)), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var data any
	if req.Value != nil {
		data = *req.Value
	}
	h.router.Handle(r.Context(), cmd, data)
	w.WriteHeader(http.StatusNoContent)
}

// GetConfig handles GET /config.
func (h *HTTPHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.router.Config())
}

// PatchConfig handles PATCH /config with a partial config body.
func (h *HTTPHandler) PatchConfig(w http.ResponseWriter, r *http.Request) {
	var u ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	cfg, err := h.router.UpdateConfig(u)
	if err != nil {
		h.log.Info("config update rejected", slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// CycleSpeed handles POST /speed/cycle.
func (h *HTTPHandler) CycleSpeed(w http.ResponseWriter, r *http.Request) {
	speed, err := h.router.CycleSpeed(r.Context())
	if err != nil {
		h.log.Warn("cycle speed failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, speedResponse{Speed: speed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusWriter captures the status code for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestLogger(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrap := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrap, r)
			log.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrap.status),
				slog.Int("duration_ms", int(time.Since(start).Milliseconds())),
			)
		})
	}
}
