package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"panelcast/internal/config"
)

const userAgent = "Panelcast-Go/0.1.0"

// Event names a notification-worthy job milestone.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventTest         Event = "test"
)

// Payload carries event fields. Known keys: title, jobID, pages, voiced,
// stage, error.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.JobCompleted,
		failed:    cfg.Notifications.JobFailed,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	title := payloadString(payload, "title")
	if title == "" {
		title = "Untitled comic"
	}
	switch event {
	case EventJobCompleted:
		if !n.completed {
			return message{}, false
		}
		body := fmt.Sprintf("✅ Ready to play: %s", title)
		pages := payloadInt(payload, "pages")
		voiced := payloadInt(payload, "voiced")
		if pages > 0 {
			body = fmt.Sprintf("%s\n%d pages, %d voiced bubbles", body, pages, voiced)
		}
		return message{
			title: "Panelcast - Ready",
			body:  body,
			tags:  []string{"panelcast", "job", "completed"},
		}, true
	case EventJobFailed:
		if !n.failed {
			return message{}, false
		}
		body := fmt.Sprintf("❌ %s failed", title)
		if stage := payloadString(payload, "stage"); stage != "" {
			body = fmt.Sprintf("%s during %s", body, stage)
		}
		if reason := payloadString(payload, "error"); reason != "" {
			body = fmt.Sprintf("%s: %s", body, reason)
		}
		return message{
			title:    "Panelcast - Failed",
			body:     body,
			tags:     []string{"panelcast", "job", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title: "Panelcast - Test",
			body:  "🔔 Notifications are working",
			tags:  []string{"panelcast", "test"},
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func payloadString(p Payload, key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadInt(p Payload, key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
