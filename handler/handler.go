package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"prompt-relay/internal/usecase"
)

const (
	rootMessage   = "Hello, World!"
	healthMessage = "OK"

	messageInvalidBody = "Invalid JSON body"
	maxBodyBytes       = 1 << 20

	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

type Relayer interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type chatRequest struct {
	Prompt json.RawMessage `json:"prompt"`
}

type chatResponse struct {
	Result string `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the relay routes over net/http and API Gateway proxy events.
type Handler struct {
	relay  Relayer
	logger *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(relay Relayer, opts ...Option) (*Handler, error) {
	if relay == nil {
		return nil, errors.New("handler: relay must not be nil")
	}
	h := &Handler{relay: relay, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// chat runs one /chat request and returns the status and JSON payload.
func (h *Handler) chat(ctx context.Context, body []byte, correlationID string) (int, any) {
	prompt, err := decodeChatRequest(body)
	if err != nil {
		h.logger.Info("rejected chat request", "reason", "invalid_body", "err", err, "correlation_id", correlationID)
		return http.StatusBadRequest, errorResponse{Error: messageInvalidBody}
	}

	out, err := h.relay.Chat(ctx, usecase.ChatInput{Prompt: prompt, CorrelationID: correlationID})
	if err != nil {
		status, message := mapError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("chat relay failed", "err", err, "status", status, "correlation_id", correlationID)
		} else {
			h.logger.Info("rejected chat request", "err", err, "status", status, "correlation_id", correlationID)
		}
		return status, errorResponse{Error: message}
	}
	return http.StatusOK, chatResponse{Result: out.Result}
}

// mapError translates the use case taxonomy into an HTTP status and message.
// Everything that is not the caller's fault is a 500.
func mapError(err error) (int, string) {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		switch ucErr.Code {
		case usecase.ErrorInvalidInput:
			return http.StatusBadRequest, ucErr.PublicMessage()
		default:
			return http.StatusInternalServerError, ucErr.PublicMessage()
		}
	}
	return http.StatusInternalServerError, err.Error()
}

var errNonStringPrompt = errors.New("handler: prompt must be a string")

// decodeChatRequest returns the prompt text. Falsy JSON values (null, "",
// false, 0, [], {}) and an absent field yield "", which the relay rejects as a
// missing prompt. Any other non-string prompt is an invalid body.
func decodeChatRequest(body []byte) (string, error) {
	if len(body) > maxBodyBytes {
		return "", fmt.Errorf("handler: body exceeds %d bytes", maxBodyBytes)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", errors.New("handler: empty body")
	}

	var req chatRequest
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(&req); err != nil {
		return "", fmt.Errorf("handler: decode chat request: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return "", errors.New("handler: decode chat request: multiple JSON values")
		}
		return "", fmt.Errorf("handler: decode chat request trailing data: %w", err)
	}
	return promptText(req.Prompt)
}

func promptText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("handler: decode prompt: %w", err)
	}

	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		if !t {
			return "", nil
		}
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return "", nil
		}
	case []any:
		if len(t) == 0 {
			return "", nil
		}
	case map[string]any:
		if len(t) == 0 {
			return "", nil
		}
	}
	return "", errNonStringPrompt
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
