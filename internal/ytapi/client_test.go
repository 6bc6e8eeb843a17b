package ytapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bandstand/internal/config"
	"bandstand/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Provider.APIKey = "test-key"
	cfg.Provider.BaseURL = server.URL

	client, err := New(&cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestResolveUploadsPlaylist(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "UCabc" {
			t.Errorf("expected channel id UCabc, got %q", got)
		}
		w.Write([]byte(`{"items":[{"contentDetails":{"relatedPlaylists":{"uploads":"UUabc"}}}]}`))
	})

	uploads, err := client.ResolveUploadsPlaylist(context.Background(), "UCabc")
	if err != nil {
		t.Fatalf("ResolveUploadsPlaylist returned error: %v", err)
	}
	if uploads != "UUabc" {
		t.Errorf("expected uploads playlist UUabc, got %q", uploads)
	}
	if used := client.Quota().Used(); used != CostChannelList {
		t.Errorf("expected quota spend %d, got %d", CostChannelList, used)
	}
}

func TestResolveUploadsPlaylistMissingChannel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	})

	_, err := client.ResolveUploadsPlaylist(context.Background(), "UCmissing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestPlaylistItemsPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pageToken"); got != "tok-2" {
			t.Errorf("expected page token tok-2, got %q", got)
		}
		w.Write([]byte(`{
			"nextPageToken": "tok-3",
			"pageInfo": {"totalResults": 120},
			"items": [
				{"contentDetails": {"videoId": "vid-1"}},
				{"contentDetails": {"videoId": "vid-2"}}
			]
		}`))
	})

	page, err := client.PlaylistItemsPage(context.Background(), "UUabc", "tok-2")
	if err != nil {
		t.Fatalf("PlaylistItemsPage returned error: %v", err)
	}
	if len(page.IDs) != 2 || page.IDs[0] != "vid-1" {
		t.Errorf("unexpected ids: %v", page.IDs)
	}
	if page.NextPageToken != "tok-3" {
		t.Errorf("expected next token tok-3, got %q", page.NextPageToken)
	}
	if page.TotalResults != 120 {
		t.Errorf("expected 120 total results, got %d", page.TotalResults)
	}
}

func TestSearchChargesFullCost(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"id":{"videoId":"vid-9"}}]}`))
	})

	page, err := client.Search(context.Background(), "drum corps finals", "")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(page.IDs) != 1 || page.IDs[0] != "vid-9" {
		t.Errorf("unexpected ids: %v", page.IDs)
	}
	if used := client.Quota().Used(); used != CostSearch {
		t.Errorf("expected quota spend %d, got %d", CostSearch, used)
	}
}

func TestVideoDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"items": [{
				"id": "vid-1",
				"snippet": {
					"title": "2024 Finals Performance",
					"description": "Full run",
					"publishedAt": "2024-11-10T18:00:00Z",
					"channelId": "UCabc",
					"tags": ["marching band"],
					"thumbnails": {"high": {"url": "https://img.example/high.jpg"}}
				},
				"contentDetails": {"duration": "PT1H23M45S"},
				"statistics": {"viewCount": "4500", "likeCount": "120"}
			}]
		}`))
	})

	videos, err := client.VideoDetails(context.Background(), []string{"vid-1"})
	if err != nil {
		t.Fatalf("VideoDetails returned error: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected one video, got %d", len(videos))
	}
	video := videos[0]
	if video.DurationSeconds != 5025 {
		t.Errorf("expected 5025 seconds, got %d", video.DurationSeconds)
	}
	if video.ViewCount != 4500 || video.LikeCount != 120 {
		t.Errorf("unexpected counters: views=%d likes=%d", video.ViewCount, video.LikeCount)
	}
	if video.ThumbnailURL != "https://img.example/high.jpg" {
		t.Errorf("unexpected thumbnail %q", video.ThumbnailURL)
	}
}

func TestVideoDetailsRejectsOversizedBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be issued")
	})

	ids := make([]string, maxBatchSize+1)
	for i := range ids {
		ids[i] = "vid"
	}
	if _, err := client.VideoDetails(context.Background(), ids); err == nil {
		t.Fatal("expected batch size error")
	}
}

func TestQuotaExceededClassification(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"daily quota exhausted","errors":[{"reason":"quotaExceeded"}]}}`))
	})

	_, err := client.Search(context.Background(), "halftime show", "")
	if !errors.Is(err, services.ErrQuotaExceeded) {
		t.Fatalf("expected quota-exceeded error, got %v", err)
	}
	if ratio := client.Quota().UsageRatio(); ratio < 1.0 {
		t.Errorf("expected quota marked exhausted, ratio %.2f", ratio)
	}
}

func TestRateLimitClassification(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"slow down","errors":[{"reason":"rateLimitExceeded"}]}}`))
	})

	_, err := client.PlaylistItemsPage(context.Background(), "UUabc", "")
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
	var rateErr *services.RateLimitedError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rateErr.RetryAfter != 17*time.Second {
		t.Errorf("expected 17s retry delay, got %v", rateErr.RetryAfter)
	}
}

func TestParseISODuration(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"PT1H23M45S", 5025},
		{"PT15M", 900},
		{"PT52S", 52},
		{"PT2H", 7200},
		{"P1DT2H", 0},
		{"", 0},
		{"garbage", 0},
	}
	for _, tc := range cases {
		if got := parseISODuration(tc.raw); got != tc.want {
			t.Errorf("parseISODuration(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestCallWindowBlocksAtCeiling(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	})
	client.callsPerMinute = 1

	if _, err := client.PlaylistItemsPage(context.Background(), "UUabc", ""); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.PlaylistItemsPage(ctx, "UUabc", "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected window wait to observe context deadline, got %v", err)
	}
}
