package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Router returns the HTTP routes with unrestricted CORS.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(correlate)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: corsMethods,
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{HeaderCorrelationID},
		MaxAge:         300,
	}))
	r.Use(middleware.GetHead)

	r.Get("/", h.serveText(rootMessage))
	r.Get("/health", h.serveText(healthMessage))
	r.Post("/chat", h.serveChat)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)})
	})

	return r
}

func (h *Handler) serveText(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentTypeText)
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, text); err != nil {
			h.logger.Warn("failed to write response", "err", err)
		}
	}
}

func (h *Handler) serveChat(w http.ResponseWriter, r *http.Request) {
	correlationID := correlationIDFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Info("rejected chat request", "reason", "unreadable_body", "err", err, "correlation_id", correlationID)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: messageInvalidBody})
		return
	}

	status, payload := h.chat(r.Context(), body, correlationID)
	h.writeJSON(w, status, payload)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := encodeJSON(payload)
	if err != nil {
		h.logger.Error("failed to encode response", "err", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal Server Error"}`)
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write response", "err", err)
	}
}

// logRequests emits one structured line per request.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
			"correlation_id", correlationIDFromContext(r.Context()),
		)
	})
}
