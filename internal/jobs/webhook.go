package jobs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Webhook event types sent over the lifetime of a crawl.
const (
	EventStarted   = "crawl.started"
	EventPage      = "crawl.page"
	EventCompleted = "crawl.completed"
	EventFailed    = "crawl.failed"
)

// WebhookConfig is the caller-supplied delivery target for one crawl.
type WebhookConfig struct {
	URL      string            `json:"url"`
	Secret   string            `json:"secret,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WebhookEvent is the payload posted to the webhook endpoint.
type WebhookEvent struct {
	Type      string            `json:"type"`
	ID        string            `json:"id"`
	Success   bool              `json:"success"`
	Timestamp int64             `json:"timestamp"`
	Data      any               `json:"data,omitempty"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// WebhookEmitter delivers signed events with bounded retries.
type WebhookEmitter struct {
	client *http.Client
	logger *slog.Logger
}

func NewWebhookEmitter(logger *slog.Logger) *WebhookEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookEmitter{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// deliver posts one event. The body is signed with HMAC-SHA256 when a
// secret is configured: X-Scorch-Signature: sha256=<hex>.
func (w *WebhookEmitter) deliver(ctx context.Context, cfg WebhookConfig, event *WebhookEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Scorch-Webhook/1.0")

	if cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(cfg.Secret))
		mac.Write(body)
		req.Header.Set("X-Scorch-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Emit sends an event asynchronously with up to three retries spaced
// 1s, 5s, 30s apart. Delivery failures never affect the crawl.
func (w *WebhookEmitter) Emit(cfg WebhookConfig, eventType, jobID string, data any, errMsg string, meta map[string]string) {
	if cfg.URL == "" {
		return
	}
	event := &WebhookEvent{
		Type:      eventType,
		ID:        jobID,
		Success:   errMsg == "",
		Timestamp: time.Now().Unix(),
		Data:      data,
		Error:     errMsg,
		Metadata:  meta,
	}

	go func() {
		delays := []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second}
		for attempt, delay := range delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := w.deliver(ctx, cfg, event)
			cancel()
			if err == nil {
				w.logger.Debug("webhook delivered",
					"url", cfg.URL, "event", eventType, "job_id", jobID, "attempt", attempt+1)
				return
			}
			w.logger.Warn("webhook delivery failed",
				"url", cfg.URL, "event", eventType, "job_id", jobID, "attempt", attempt+1, "error", err)
		}
		w.logger.Error("webhook delivery exhausted all retries",
			"url", cfg.URL, "event", eventType, "job_id", jobID)
	}()
}
