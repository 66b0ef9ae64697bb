// Package main is the outbox relay worker: it drains pending events from
// sys_outbox and delivers them to the configured webhook endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"

	"kassa/internal/infrastructure/storage/postgres"
	"kassa/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting kassa outbox relay")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	handler := NewWebhookHandler(mustEnv("WEBHOOK_URL"))
	relay := postgres.NewOutboxRelay(pool.Unwrap(), getEnvInt("RELAY_BATCH_SIZE", 100), handler)

	pollInterval := getEnvDuration("RELAY_POLL_INTERVAL", 5*time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		run(ctx, log, relay, pollInterval)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down relay...")
	cancel()
	<-done
	log.Info("relay stopped")
}

func run(ctx context.Context, log *logger.Logger, relay *postgres.OutboxRelay, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	purgeTicker := time.NewTicker(1 * time.Hour)
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			processed, err := relay.ProcessBatch(ctx)
			if err != nil {
				log.Errorw("outbox batch failed", "error", err)
				continue
			}
			if processed > 0 {
				log.Infow("outbox batch delivered", "count", processed)
			}

		case <-purgeTicker.C:
			purged, err := relay.PurgePublished(ctx, 7*24*time.Hour)
			if err != nil {
				log.Errorw("outbox purge failed", "error", err)
				continue
			}
			if purged > 0 {
				log.Infow("outbox purged", "count", purged)
			}
		}
	}
}

// WebhookHandler posts outbox messages to a downstream HTTP consumer.
type WebhookHandler struct {
	client *resty.Client
	url    string
}

// NewWebhookHandler creates a webhook delivery handler.
func NewWebhookHandler(url string) *WebhookHandler {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")

	return &WebhookHandler{client: client, url: url}
}

// Handle delivers one message. Non-2xx responses count as delivery failures
// so the relay retries them.
func (h *WebhookHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", msg.EventType).
		SetHeader("X-Event-ID", msg.ID.String()).
		SetHeader("X-Company-ID", msg.CompanyID.String()).
		SetBody(msg.Payload).
		Post(h.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned %d", resp.StatusCode())
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
