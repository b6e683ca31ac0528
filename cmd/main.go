package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"prompt-relay/handler"
	"prompt-relay/internal/integrations/openai"
	"prompt-relay/internal/integrations/paramstore"
	"prompt-relay/internal/repository"
	"prompt-relay/internal/usecase"
)

const (
	defaultListenAddr      = "0.0.0.0:5000"
	defaultUpstreamTimeout = 30 * time.Second
	defaultRecordTimeout   = 2 * time.Second
	shutdownTimeout        = 5 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "err", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(os.Getenv("LOG_LEVEL"))})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	apiKeyParam := strings.TrimSpace(os.Getenv("OPENAI_API_KEY_PARAM"))
	apiKeyParamDecrypt := envBool("OPENAI_API_KEY_PARAM_DECRYPT", true)
	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	exchangeTable := strings.TrimSpace(os.Getenv("EXCHANGE_TABLE"))
	recordTimeout := envDuration("EXCHANGE_RECORD_TIMEOUT", defaultRecordTimeout)
	listenAddr := envOr("LISTEN_ADDR", defaultListenAddr)
	upstreamTimeout := envDuration("UPSTREAM_TIMEOUT", defaultUpstreamTimeout)
	lambdaMode := os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	// ---- AWS SDK config, only when an AWS-backed feature is enabled ----
	var awsCfg aws.Config
	if (apiKey == "" && apiKeyParam != "") || exchangeTable != "" {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		awsCfg = cfg
	}

	if apiKey == "" && apiKeyParam != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg), paramstore.WithDecryption(apiKeyParamDecrypt))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		apiKey, err = openai.APIKeyFromParamStore(ctx, ssmClient, apiKeyParam)
		if err != nil {
			slog.Error("failed to read OpenAI API key from parameter store", "err", err, "param", apiKeyParam)
			os.Exit(1)
		}
	}
	if apiKey == "" {
		slog.Warn("OPENAI_API_KEY is not set; completion calls will be rejected upstream")
	}

	// ---- Clients ----
	clientOpts := []openai.Option{openai.WithTimeout(upstreamTimeout)}
	if baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(baseURL))
	}
	openaiClient, err := openai.NewClient(apiKey, clientOpts...)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	relayOpts := []usecase.Option{usecase.WithLogger(slog.Default())}
	if exchangeTable != "" {
		exchangeLog, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), exchangeTable)
		if err != nil {
			slog.Error("failed to create exchange log", "err", err)
			os.Exit(1)
		}
		relayOpts = append(relayOpts, usecase.WithRecorder(exchangeLog), usecase.WithRecordTimeout(recordTimeout))
	}

	// ---- Handler ----
	relayService, err := usecase.NewRelayService(openaiClient, relayOpts...)
	if err != nil {
		slog.Error("failed to create relay service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(relayService, handler.WithLogger(slog.Default()))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if lambdaMode {
		lambda.Start(h.Handle)
		return
	}

	if err := serve(ctx, listenAddr, h.Router(), upstreamTimeout); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, addr string, routes http.Handler, upstreamTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      upstreamTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("relay listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func logLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
