// cmd/zoning-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"brand-zoning/internal/common/auth"
	"brand-zoning/internal/common/aws"
	"brand-zoning/internal/common/config"
	"brand-zoning/internal/common/database"
	apphttp "brand-zoning/internal/common/http"
	"brand-zoning/internal/common/logger"
	"brand-zoning/internal/common/observability"
	"brand-zoning/internal/common/ratelimit"
	"brand-zoning/internal/server"
	"brand-zoning/internal/zoning/consistency"
	"brand-zoning/internal/zoning/gateway"
	"brand-zoning/internal/zoning/prompt"
	"brand-zoning/internal/zoning/report"
	"brand-zoning/internal/zoning/rules"
	"brand-zoning/internal/zoning/summary"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// promptOptions loads template overrides named in config.
func promptOptions(cfg config.PromptsConfig) ([]prompt.Option, error) {
	var opts []prompt.Option
	if cfg.PolicyPath != "" {
		data, err := os.ReadFile(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("read policy template: %w", err)
		}
		opts = append(opts, prompt.WithPolicyTemplate(string(data)))
	}
	if cfg.FormattingPath != "" {
		data, err := os.ReadFile(cfg.FormattingPath)
		if err != nil {
			return nil, fmt.Errorf("read formatting instructions: %w", err)
		}
		opts = append(opts, prompt.WithFormattingInstructions(string(data)))
	}
	return opts, nil
}

func main() {
	bootLog := logger.New("info", "json")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting Brand Zoning API",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("model", cfg.OpenAI.Model),
	)

	obs, err := observability.New("brand-zoning-api")
	if err != nil {
		zapLog.Warn("otel metrics exporter unavailable, using no-op instruments", zap.Error(err))
	}
	defer obs.Shutdown()

	// --- Rules and prompts (read once; restart to pick up changes) ---
	rulesLoader := rules.NewLoader(cfg.Rules.Path, log)
	rulesText := rulesLoader.Load()
	rulesLoaded := rulesText != ""
	zapLog.Info("Rules loaded", zap.String("path", cfg.Rules.Path), zap.Bool("loaded", rulesLoaded), zap.Int("length", len(rulesText)))

	opts, err := promptOptions(cfg.Prompts)
	if err != nil {
		zapLog.Fatal("prompt overrides failed", zap.Error(err))
	}
	builder, err := prompt.NewBuilder(rulesText, opts...)
	if err != nil {
		zapLog.Fatal("prompt builder failed", zap.Error(err))
	}

	// --- Model gateway ---
	completer := gateway.NewOpenAIClient(gateway.OpenAIConfig{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		ResponseFormat: cfg.OpenAI.ResponseFormat,
	}, apphttp.NewClient(cfg.OpenAI.Timeout))
	gw := gateway.New(completer, gateway.Options{
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxRetries:  cfg.OpenAI.MaxRetries,
		BaseDelay:   gateway.DefaultBaseDelay,
	}, log.With(map[string]interface{}{"component": "gateway"}))

	// --- Consistency sinks ---
	sinks := []consistency.Sink{consistency.NewLogSink(log), consistency.MetricsSink{}}
	if cfg.Alerts.AlertsEnabled() {
		initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		publisher, err := aws.NewSNSPublisher(initCtx, cfg.Alerts.Region, cfg.Alerts.SNSTopicARN)
		cancel()
		if err != nil {
			zapLog.Warn("SNS alerts disabled", zap.Error(err))
		} else {
			sinks = append(sinks, consistency.NewAlertSink(publisher, log))
			zapLog.Info("SNS alerts enabled", zap.String("topic", cfg.Alerts.SNSTopicARN))
		}
	}
	validator := consistency.NewValidator(consistency.DefaultHeuristics(), log, sinks...)

	reports := report.NewService(builder, gw, summary.NewExtractor(log), validator, obs, log)

	// --- Rate limiting (optional, fails open) ---
	var limiter server.RateLimiter
	var redisClient *database.RedisClient
	if cfg.RateLimit.Enabled {
		redisClient = database.NewRedis(cfg.Redis)
		err = retryWithBackoff(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return redisClient.Ping(ctx)
		}, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unreachable, rate limiter will fail open until it recovers", zap.Error(err))
		} else {
			zapLog.Info("Redis connected successfully")
		}
		limiter = ratelimit.New(redisClient.Client, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	srv := server.New(server.Config{
		Reports:     reports,
		Auth:        auth.NewAPIKeyAuthenticator(cfg.Server.APIKeyHeader, cfg.Server.APIKeys),
		Limiter:     limiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Status: server.Status{
			Version:          cfg.App.Version,
			Model:            cfg.OpenAI.Model,
			OpenAIConfigured: cfg.OpenAI.APIKey != "",
			RulesLoaded:      rulesLoaded,
		},
		Logger: log,
	})
	if len(cfg.Server.APIKeys) == 0 {
		zapLog.Warn("API_KEYS is empty, /zone is unauthenticated")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := srv.HTTPServer(addr, gw.MaxElapsed(cfg.OpenAI.Timeout)+10*time.Second)

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during HTTP shutdown", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zapLog.Error("Error closing Redis client", zap.Error(err))
		}
	}

	zapLog.Info("Brand Zoning API stopped gracefully")
}
