package domain

import "errors"

// ErrMalformedCompletion marks a completion response that arrived but could not
// be turned into an answer (undecodable body, no choices).
var ErrMalformedCompletion = errors.New("malformed completion response")

// ChatMessage is the provider-agnostic chat message shape used by the use case
// and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one outbound completion call.
type CompletionRequest struct {
	Model     string
	Messages  []ChatMessage
	MaxTokens int
}
