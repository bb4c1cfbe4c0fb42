// Package notifications pushes user-facing pipeline outcomes through ntfy.
// When no topic is configured every notification is a silent no-op.
package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
)

const userAgent = "Scribe-Go/0.1.0"

// Service is the notification surface exposed to the coordinator. Delivery is
// best effort: failures are logged, never returned to the pipeline.
type Service interface {
	TaskReady(ctx context.Context, userID int64, taskID string)
	TaskFailed(ctx context.Context, userID int64, taskID, reason string)
	ExportReady(ctx context.Context, userID int64, taskID, fileURL string)
	Test(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func (n *ntfyService) TaskReady(ctx context.Context, userID int64, taskID string) {
	n.deliver(ctx, payload{
		title:    "Scribe - Transcript Ready",
		message:  fmt.Sprintf("Transcript ready for task %s", taskID),
		tags:     []string{"scribe", "task", "ready"},
		priority: "high",
	}, userID, taskID)
}

func (n *ntfyService) TaskFailed(ctx context.Context, userID int64, taskID, reason string) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	n.deliver(ctx, payload{
		title:    "Scribe - Transcription Failed",
		message:  fmt.Sprintf("Task %s failed: %s", taskID, reason),
		tags:     []string{"scribe", "task", "failed"},
		priority: "high",
	}, userID, taskID)
}

func (n *ntfyService) ExportReady(ctx context.Context, userID int64, taskID, fileURL string) {
	message := fmt.Sprintf("Export ready for task %s", taskID)
	if fileURL != "" {
		message = fmt.Sprintf("%s\n%s", message, fileURL)
	}
	n.deliver(ctx, payload{
		title:   "Scribe - Export Ready",
		message: message,
		tags:    []string{"scribe", "export", "ready"},
	}, userID, taskID)
}

// Test sends a test notification and reports delivery errors, for use from
// the CLI.
func (n *ntfyService) Test(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Scribe - Test",
		message:  "Notification system test",
		tags:     []string{"scribe", "test"},
		priority: "low",
	})
}

func (n *ntfyService) deliver(ctx context.Context, data payload, userID int64, taskID string) {
	if err := n.send(ctx, data); err != nil {
		n.logger.Warn("notification delivery failed",
			logging.String(logging.FieldTaskID, taskID),
			logging.Int64(logging.FieldUserID, userID),
			logging.Error(err))
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) TaskReady(context.Context, int64, string)           {}
func (noopService) TaskFailed(context.Context, int64, string, string)  {}
func (noopService) ExportReady(context.Context, int64, string, string) {}
func (noopService) Test(context.Context) error                         { return nil }
