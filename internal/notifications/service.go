package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bandstand/internal/config"
)

const userAgent = "Bandstand-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyNewVideo(ctx context.Context, organizationID, videoID int64, title string) error
	NotifyRunStarted(ctx context.Context, jobType string) error
	NotifyRunCompleted(ctx context.Context, jobType string, found, added, updated, errorCount int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by a webhook when
// configured. When no webhook URL is configured, a noop implementation is
// returned.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &webhookService{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: timeout},
		sendRuns:   cfg.Notifications.Runs,
		sendErrors: cfg.Notifications.Errors,
	}
}

type event struct {
	Event          string `json:"event"`
	OrganizationID int64  `json:"organization_id,omitempty"`
	VideoID        int64  `json:"video_id,omitempty"`
	Title          string `json:"title,omitempty"`
	JobType        string `json:"job_type,omitempty"`
	Found          int    `json:"found,omitempty"`
	Added          int    `json:"added,omitempty"`
	Updated        int    `json:"updated,omitempty"`
	ErrorCount     int    `json:"error_count,omitempty"`
	Duration       string `json:"duration,omitempty"`
	Message        string `json:"message,omitempty"`
}

type webhookService struct {
	endpoint   string
	client     *http.Client
	sendRuns   bool
	sendErrors bool
}

func (w *webhookService) NotifyNewVideo(ctx context.Context, organizationID, videoID int64, title string) error {
	return w.send(ctx, event{
		Event:          "new_video",
		OrganizationID: organizationID,
		VideoID:        videoID,
		Title:          strings.TrimSpace(title),
	})
}

func (w *webhookService) NotifyRunStarted(ctx context.Context, jobType string) error {
	if !w.sendRuns {
		return nil
	}
	return w.send(ctx, event{Event: "run_started", JobType: jobType})
}

func (w *webhookService) NotifyRunCompleted(ctx context.Context, jobType string, found, added, updated, errorCount int, duration time.Duration) error {
	if !w.sendRuns {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	return w.send(ctx, event{
		Event:      "run_completed",
		JobType:    jobType,
		Found:      found,
		Added:      added,
		Updated:    updated,
		ErrorCount: errorCount,
		Duration:   duration.String(),
	})
}

func (w *webhookService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !w.sendErrors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return w.send(ctx, event{Event: "pipeline_error", Message: builder.String()})
}

func (w *webhookService) TestNotification(ctx context.Context) error {
	return w.send(ctx, event{Event: "test", Message: "Notification system test"})
}

func (w *webhookService) send(ctx context.Context, data event) error {
	if w == nil || w.client == nil {
		return nil
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyNewVideo(context.Context, int64, int64, string) error { return nil }
func (noopService) NotifyRunStarted(context.Context, string) error             { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, int, int, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
