package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"panelcast/internal/config"
	"panelcast/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventJobCompleted, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "job completed",
			event: notifications.EventJobCompleted,
			payload: notifications.Payload{
				"title":  "Moon Patrol #1",
				"pages":  3,
				"voiced": 12,
			},
			expectTitle:   "Panelcast - Ready",
			expectMessage: "✅ Ready to play: Moon Patrol #1\n3 pages, 12 voiced bubbles",
			expectTags:    "panelcast,job,completed",
		},
		{
			name:          "job completed without title",
			event:         notifications.EventJobCompleted,
			payload:       notifications.Payload{},
			expectTitle:   "Panelcast - Ready",
			expectMessage: "✅ Ready to play: Untitled comic",
			expectTags:    "panelcast,job,completed",
		},
		{
			name:  "job failed",
			event: notifications.EventJobFailed,
			payload: notifications.Payload{
				"title": "Moon Patrol #1",
				"stage": "tts_generation",
				"error": "speech synthesis unavailable",
			},
			expectTitle:    "Panelcast - Failed",
			expectMessage:  "❌ Moon Patrol #1 failed during tts_generation: speech synthesis unavailable",
			expectTags:     "panelcast,job,failed",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
				agent    string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				captured.agent = r.Header.Get("User-Agent")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
			if !strings.HasPrefix(captured.agent, "Panelcast-Go/") {
				t.Fatalf("unexpected user agent %q", captured.agent)
			}
		})
	}
}

func TestNtfyServiceHonorsDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.JobCompleted = false
	cfg.Notifications.JobFailed = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventJobCompleted, notifications.EventJobFailed, "unknown"} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"title": "ignored"}); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic locked") {
		t.Fatalf("expected 403 error with body, got %v", err)
	}
}
