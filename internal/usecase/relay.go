package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"prompt-relay/internal/domain"
)

type CompletionClient interface {
	Complete(ctx context.Context, in domain.CompletionRequest) (string, error)
}

type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, ex domain.Exchange) error
}

const defaultRecordTimeout = 2 * time.Second

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type RelayService struct {
	llm           CompletionClient
	recorder      ExchangeRecorder
	recordTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

type Option func(*RelayService)

// WithRecorder enables the exchange log. Recording is best effort.
func WithRecorder(r ExchangeRecorder) Option {
	return func(s *RelayService) {
		s.recorder = r
	}
}

// WithRecordTimeout bounds each exchange write. Ignored when d <= 0.
func WithRecordTimeout(d time.Duration) Option {
	return func(s *RelayService) {
		if d > 0 {
			s.recordTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *RelayService) {
		if l != nil {
			s.logger = l
		}
	}
}

type ChatInput struct {
	Prompt        string
	CorrelationID string
}

type ChatOutput struct {
	Result string
}

func NewRelayService(llm CompletionClient, opts ...Option) (*RelayService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completion client must not be nil")
	}
	s := &RelayService{
		llm:           llm,
		recordTimeout: defaultRecordTimeout,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Chat relays one prompt to the completion API and returns the trimmed answer.
func (s *RelayService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	if in.Prompt == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, reasonMissingPrompt, nil)
	}

	req := buildCompletionRequest(in.Prompt)
	started := s.now()
	raw, err := s.llm.Complete(ctx, req)
	latency := s.now().Sub(started)

	if err != nil {
		ucErr := classifyCompletionError(err)
		s.record(ctx, in, domain.Exchange{
			Model:          req.Model,
			ErrorCode:      string(ucErr.Code),
			Error:          err.Error(),
			UpstreamStatus: upstreamStatusCode(err),
			Latency:        latency,
			CreatedAt:      started,
		})
		return ChatOutput{}, ucErr
	}

	result := strings.TrimSpace(raw)
	s.record(ctx, in, domain.Exchange{
		Model:     req.Model,
		Result:    result,
		Latency:   latency,
		CreatedAt: started,
	})
	return ChatOutput{Result: result}, nil
}

func classifyCompletionError(err error) *Error {
	if errors.Is(err, domain.ErrMalformedCompletion) {
		return newError(ErrorUpstreamMalformedResponse, reasonMalformedResponse, err)
	}
	return newError(ErrorUpstreamUnavailable, reasonCompletionError, err)
}

func upstreamStatusCode(err error) int {
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatusCode()
	}
	return 0
}

// record writes the exchange under its own deadline, detached from the
// caller's cancellation.
func (s *RelayService) record(ctx context.Context, in ChatInput, ex domain.Exchange) {
	if s.recorder == nil {
		return
	}
	ex.ID = newUUID()
	ex.CorrelationID = in.CorrelationID
	ex.Prompt = in.Prompt

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTimeout)
	defer cancel()
	if err := s.recorder.RecordExchange(recordCtx, ex); err != nil {
		s.logger.Warn("failed to record exchange",
			"err", err,
			"exchange_id", ex.ID,
			"correlation_id", in.CorrelationID,
		)
	}
}

var newUUID = func() string {
	return uuid.NewString()
}
