package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput              ErrorCode = "INVALID_INPUT"
	ErrorUpstreamUnavailable       ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrorUpstreamMalformedResponse ErrorCode = "UPSTREAM_MALFORMED_RESPONSE"
)

// MessageNoPrompt is returned to callers that omit the prompt.
const MessageNoPrompt = "No prompt provided"

const (
	reasonMissingPrompt     = "missing_prompt"
	reasonCompletionError   = "completion_error"
	reasonMalformedResponse = "completion_malformed_response"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PublicMessage is the text surfaced to the HTTP caller. Upstream failures are
// passed through verbatim.
func (e *Error) PublicMessage() string {
	if e == nil {
		return ""
	}
	if e.Code == ErrorInvalidInput {
		if e.Reason == reasonMissingPrompt {
			return MessageNoPrompt
		}
		return "Invalid request"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
