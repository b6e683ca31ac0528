package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"prompt-relay/internal/domain"
	"prompt-relay/internal/usecase"
)

// countingLLM records every outbound completion call.
type countingLLM struct {
	answer   string
	err      error
	requests []domain.CompletionRequest
}

func (c *countingLLM) Complete(_ context.Context, in domain.CompletionRequest) (string, error) {
	c.requests = append(c.requests, in)
	return c.answer, c.err
}

func newTestRouter(t *testing.T, llm *countingLLM) http.Handler {
	t.Helper()
	svc, err := usecase.NewRelayService(llm)
	require.NoError(t, err)
	h, err := NewHandler(svc, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	require.NoError(t, err)
	return h.Router()
}

func serve(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RootAndHealth(t *testing.T) {
	router := newTestRouter(t, &countingLLM{})

	rec := serve(t, router, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Hello, World!", rec.Body.String())

	rec = serve(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestRouter_Chat_MissingPrompt(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"prompt":""}`,
		`{"prompt":null}`,
		`{"other":"x"}`,
		`{"prompt":false}`,
		`{"prompt":0}`,
		`{"prompt":[]}`,
		`{"prompt":{}}`,
	} {
		t.Run(body, func(t *testing.T) {
			llm := &countingLLM{answer: "unused"}
			router := newTestRouter(t, llm)

			rec := serve(t, router, http.MethodPost, "/chat", body, map[string]string{"Content-Type": "application/json"})
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.JSONEq(t, `{"error":"No prompt provided"}`, rec.Body.String())
			require.Empty(t, llm.requests)
		})
	}
}

func TestRouter_Chat_ForwardsPromptOnce(t *testing.T) {
	llm := &countingLLM{answer: "  Paris  "}
	router := newTestRouter(t, llm)

	rec := serve(t, router, http.MethodPost, "/chat", `{"prompt":"European capitals"}`, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"result":"Paris"}`, rec.Body.String())

	require.Len(t, llm.requests, 1)
	sent := llm.requests[0]
	require.Equal(t, 150, sent.MaxTokens)
	require.Len(t, sent.Messages, 2)
	require.Equal(t, "system", sent.Messages[0].Role)
	require.Equal(t, "You are gonna be provided of a category. Choose the best element of that given category. Anything else. No explanations. Make your calculations and provide the result.", sent.Messages[0].Content)
	require.Equal(t, "user", sent.Messages[1].Role)
	require.Equal(t, "European capitals", sent.Messages[1].Content)
}

func TestRouter_Chat_UpstreamError(t *testing.T) {
	llm := &countingLLM{err: errors.New("rate limit exceeded")}
	router := newTestRouter(t, llm)

	rec := serve(t, router, http.MethodPost, "/chat", `{"prompt":"x"}`, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
	require.Len(t, llm.requests, 1)
}

func TestRouter_Chat_MalformedUpstream(t *testing.T) {
	llm := &countingLLM{err: errors.Join(errors.New("openai: no choices in response"), domain.ErrMalformedCompletion)}
	router := newTestRouter(t, llm)

	rec := serve(t, router, http.MethodPost, "/chat", `{"prompt":"x"}`, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "no choices")
}

func TestRouter_Chat_InvalidJSON(t *testing.T) {
	llm := &countingLLM{}
	router := newTestRouter(t, llm)

	rec := serve(t, router, http.MethodPost, "/chat", `{"prompt":`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Invalid JSON body"}`, rec.Body.String())
	require.Empty(t, llm.requests)
}

func TestRouter_Chat_BodyTooLarge(t *testing.T) {
	llm := &countingLLM{}
	router := newTestRouter(t, llm)

	body := `{"prompt":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rec := serve(t, router, http.MethodPost, "/chat", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, llm.requests)
}

func TestRouter_CrossOriginAllowed(t *testing.T) {
	router := newTestRouter(t, &countingLLM{answer: "Paris"})

	rec := serve(t, router, http.MethodPost, "/chat", `{"prompt":"x"}`, map[string]string{
		"Origin":       "https://another-site.example",
		"Content-Type": "application/json",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Preflight(t *testing.T) {
	llm := &countingLLM{}
	router := newTestRouter(t, llm)

	rec := serve(t, router, http.MethodOptions, "/chat", "", map[string]string{
		"Origin":                         "https://another-site.example",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type, X-Custom-Header",
	})
	require.Contains(t, []int{http.StatusOK, http.StatusNoContent}, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	require.Empty(t, llm.requests)
}

func TestRouter_CorrelationID(t *testing.T) {
	router := newTestRouter(t, &countingLLM{})

	rec := serve(t, router, http.MethodGet, "/health", "", map[string]string{"X-Correlation-Id": "corr-abc"})
	require.Equal(t, "corr-abc", rec.Header().Get(HeaderCorrelationID))

	orig := newCorrelationID
	newCorrelationID = func() string { return "generated-id" }
	t.Cleanup(func() { newCorrelationID = orig })

	rec = serve(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, "generated-id", rec.Header().Get(HeaderCorrelationID))
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	llm := &countingLLM{}
	router := newTestRouter(t, llm)

	rec := serve(t, router, http.MethodGet, "/missing", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())

	rec = serve(t, router, http.MethodGet, "/chat", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Empty(t, llm.requests)
}

func TestRouter_LogsRequests(t *testing.T) {
	var logs bytes.Buffer
	svc, err := usecase.NewRelayService(&countingLLM{})
	require.NoError(t, err)
	h, err := NewHandler(svc, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	rec := serve(t, h.Router(), http.MethodGet, "/health", "", map[string]string{"X-Correlation-Id": "corr-log"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, logs.String(), "http request")
	require.Contains(t, logs.String(), "path=/health")
	require.Contains(t, logs.String(), "status=200")
	require.Contains(t, logs.String(), "correlation_id=corr-log")
}
