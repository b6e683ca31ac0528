package domain

import "time"

// Exchange is the audit record of a single relayed prompt.
type Exchange struct {
	ID            string
	CorrelationID string
	Model         string
	Prompt        string
	Result        string
	ErrorCode     string
	Error         string
	// UpstreamStatus is the completion API's HTTP status on failure, 0 if none.
	UpstreamStatus int
	Latency        time.Duration
	CreatedAt      time.Time
}
