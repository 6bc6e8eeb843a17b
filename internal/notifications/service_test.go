package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bandstand/internal/notifications"
	"bandstand/internal/testsupport"
)

func TestNewServiceReturnsNoopWithoutWebhook(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.WebhookURL = ""

	service := notifications.NewService(cfg)
	if err := service.NotifyNewVideo(context.Background(), 1, 2, "anything"); err != nil {
		t.Fatalf("noop service should never error: %v", err)
	}
	if err := service.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop service should never error: %v", err)
	}
}

func TestNotifyNewVideoPostsJSON(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.WebhookURL = server.URL
	service := notifications.NewService(cfg)

	if err := service.NotifyNewVideo(context.Background(), 7, 42, "Grand Nationals 2023 Finals"); err != nil {
		t.Fatalf("NotifyNewVideo failed: %v", err)
	}
	if received["event"] != "new_video" {
		t.Errorf("expected new_video event, got %v", received["event"])
	}
	if received["organization_id"] != float64(7) || received["video_id"] != float64(42) {
		t.Errorf("unexpected ids: %v", received)
	}
	if received["title"] != "Grand Nationals 2023 Finals" {
		t.Errorf("unexpected title: %v", received["title"])
	}
}

func TestNotifyRunCompletedRespectsToggle(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.WebhookURL = server.URL
	cfg.Notifications.Runs = false
	service := notifications.NewService(cfg)

	if err := service.NotifyRunCompleted(context.Background(), "discovery", 10, 5, 5, 0, time.Minute); err != nil {
		t.Fatalf("NotifyRunCompleted failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("run events disabled, but webhook saw %d calls", calls)
	}

	cfg.Notifications.Runs = true
	service = notifications.NewService(cfg)
	if err := service.NotifyRunCompleted(context.Background(), "discovery", 10, 5, 5, 0, time.Minute); err != nil {
		t.Fatalf("NotifyRunCompleted failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one webhook call, got %d", calls)
	}
}

func TestSendSurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.WebhookURL = server.URL
	cfg.Notifications.Errors = true
	service := notifications.NewService(cfg)

	err := service.NotifyError(context.Background(), errors.New("boom"), "discovery")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
