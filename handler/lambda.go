package handler

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

var corsMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

func lambdaHeaders(correlationID string) map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":   "*",
		"Access-Control-Allow-Methods":  strings.Join(corsMethods, ", "),
		"Access-Control-Allow-Headers":  "*",
		"Access-Control-Expose-Headers": HeaderCorrelationID,
		HeaderCorrelationID:             correlationID,
	}
}

// Handle serves API Gateway proxy events with the same routes as Router.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFromHeaders(event.Headers)
	resp := events.APIGatewayProxyResponse{Headers: lambdaHeaders(correlationID)}

	if event.HTTPMethod == http.MethodOptions {
		resp.StatusCode = http.StatusNoContent
		return resp, nil
	}

	path := strings.TrimSpace(event.Path)
	if path == "" {
		path = "/"
	}

	switch path {
	case "/":
		return h.lambdaText(resp, event.HTTPMethod, rootMessage), nil
	case "/health":
		return h.lambdaText(resp, event.HTTPMethod, healthMessage), nil
	case "/chat":
		if event.HTTPMethod != http.MethodPost {
			return h.lambdaJSON(resp, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)}), nil
		}
		body := []byte(event.Body)
		if event.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(event.Body)
			if err != nil {
				return h.lambdaJSON(resp, http.StatusBadRequest, errorResponse{Error: messageInvalidBody}), nil
			}
			body = decoded
		}
		status, payload := h.chat(withCorrelationID(ctx, correlationID), body, correlationID)
		return h.lambdaJSON(resp, status, payload), nil
	default:
		return h.lambdaJSON(resp, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound)}), nil
	}
}

func (h *Handler) lambdaText(resp events.APIGatewayProxyResponse, method, text string) events.APIGatewayProxyResponse {
	if method != http.MethodGet && method != http.MethodHead {
		return h.lambdaJSON(resp, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)})
	}
	resp.StatusCode = http.StatusOK
	resp.Headers["Content-Type"] = contentTypeText
	if method == http.MethodGet {
		resp.Body = text
	}
	return resp
}

func (h *Handler) lambdaJSON(resp events.APIGatewayProxyResponse, status int, payload any) events.APIGatewayProxyResponse {
	body, err := encodeJSON(payload)
	if err != nil {
		h.logger.Error("failed to encode response", "err", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal Server Error"}`)
	}
	resp.StatusCode = status
	resp.Headers["Content-Type"] = contentTypeJSON
	resp.Body = string(body)
	return resp
}
