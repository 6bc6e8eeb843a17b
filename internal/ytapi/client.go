package ytapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"bandstand/internal/config"
	"bandstand/internal/services"
)

const maxBatchSize = 50

// Client provides quota-aware access to the provider API. Calls block when
// the per-minute ceiling is reached and resume once the window resets. The
// daily cost budget is tracked but not enforced here; callers check
// Quota().UsageRatio() between units of work.
type Client struct {
	apiKey         string
	baseURL        string
	httpClient     *http.Client
	quota          *Quota
	callsPerMinute int

	windowMu    sync.Mutex
	windowStart time.Time
	windowCalls int
}

var _ API = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a provider client from configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.Provider.APIKey)
	if apiKey == "" {
		return nil, errors.New("provider api key required")
	}
	baseURL := strings.TrimSpace(cfg.Provider.BaseURL)
	if baseURL == "" {
		return nil, errors.New("provider base url required")
	}
	timeout := time.Duration(cfg.Provider.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		quota:          NewQuota(cfg.Provider.DailyQuotaLimit),
		callsPerMinute: cfg.Provider.CallsPerMinute,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Quota exposes the daily spend tracker for budget checks by callers.
func (c *Client) Quota() *Quota {
	return c.quota
}

// ResolveUploadsPlaylist returns the id of the channel's uploads collection.
func (c *Client) ResolveUploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", errors.New("channel id must not be empty")
	}
	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", channelID)

	var payload channelListResponse
	if err := c.call(ctx, "channels", params, CostChannelList, &payload); err != nil {
		return "", err
	}
	if len(payload.Items) == 0 {
		return "", services.Wrap(services.ErrNotFound, "provider", "resolve uploads", fmt.Sprintf("channel %s not found", channelID), nil)
	}
	uploads := payload.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return "", services.Wrap(services.ErrNotFound, "provider", "resolve uploads", fmt.Sprintf("channel %s has no uploads playlist", channelID), nil)
	}
	return uploads, nil
}

// PlaylistItemsPage fetches one page of at most 50 video ids from a playlist.
func (c *Client) PlaylistItemsPage(ctx context.Context, playlistID, pageToken string) (*Page, error) {
	playlistID = strings.TrimSpace(playlistID)
	if playlistID == "" {
		return nil, errors.New("playlist id must not be empty")
	}
	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", strconv.Itoa(maxBatchSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var payload playlistItemsResponse
	if err := c.call(ctx, "playlistItems", params, CostPlaylistItems, &payload); err != nil {
		return nil, err
	}
	page := &Page{
		NextPageToken: payload.NextPageToken,
		TotalResults:  int64(payload.PageInfo.TotalResults),
	}
	for _, item := range payload.Items {
		if id := strings.TrimSpace(item.ContentDetails.VideoID); id != "" {
			page.IDs = append(page.IDs, id)
		}
	}
	return page, nil
}

// Search runs a keyword search and returns one page of matching video ids.
func (c *Client) Search(ctx context.Context, query, pageToken string) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("part", "id")
	params.Set("type", "video")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxBatchSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var payload searchResponse
	if err := c.call(ctx, "search", params, CostSearch, &payload); err != nil {
		return nil, err
	}
	page := &Page{
		NextPageToken: payload.NextPageToken,
		TotalResults:  int64(payload.PageInfo.TotalResults),
	}
	for _, item := range payload.Items {
		if id := strings.TrimSpace(item.ID.VideoID); id != "" {
			page.IDs = append(page.IDs, id)
		}
	}
	return page, nil
}

// VideoDetails batch-fetches full records for up to 50 video ids.
func (c *Client) VideoDetails(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxBatchSize {
		return nil, fmt.Errorf("at most %d ids per detail call, got %d", maxBatchSize, len(ids))
	}
	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("id", strings.Join(ids, ","))

	var payload videoListResponse
	if err := c.call(ctx, "videos", params, CostVideoList, &payload); err != nil {
		return nil, err
	}
	videos := make([]Video, 0, len(payload.Items))
	for _, item := range payload.Items {
		videos = append(videos, item.toVideo())
	}
	return videos, nil
}

func (c *Client) call(ctx context.Context, resource string, params url.Values, cost int64, out any) error {
	if err := c.waitForCallWindow(ctx); err != nil {
		return err
	}

	endpoint, err := url.Parse(c.baseURL + "/" + resource)
	if err != nil {
		return fmt.Errorf("parse provider url: %w", err)
	}
	params.Set("key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute %s request (latency=%v): %w", resource, latency, err)
	}
	defer resp.Body.Close()

	// Failed calls are still charged by the provider.
	c.quota.Add(cost)

	if resp.StatusCode != http.StatusOK {
		return c.classifyError(resource, resp)
	}
	if err := decodeJSON(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", resource, err)
	}
	return nil
}

// waitForCallWindow enforces the 60-second sliding call window. When the
// per-minute ceiling is hit, it sleeps until the window resets.
func (c *Client) waitForCallWindow(ctx context.Context) error {
	for {
		c.windowMu.Lock()
		now := time.Now()
		if c.windowStart.IsZero() || now.Sub(c.windowStart) >= time.Minute {
			c.windowStart = now
			c.windowCalls = 0
		}
		if c.callsPerMinute <= 0 || c.windowCalls < c.callsPerMinute {
			c.windowCalls++
			c.windowMu.Unlock()
			return nil
		}
		wait := time.Minute - now.Sub(c.windowStart)
		c.windowMu.Unlock()

		if err := services.SleepWithContext(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Client) classifyError(resource string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	payload := parseErrorBody(body)

	reason := payload.firstReason()
	switch {
	case reason == "quotaExceeded" || reason == "dailyLimitExceeded":
		c.quota.MarkExhausted()
		return services.Wrap(services.ErrQuotaExceeded, "provider", resource, payload.Error.Message, nil)
	case resp.StatusCode == http.StatusTooManyRequests || reason == "rateLimitExceeded" || reason == "userRateLimitExceeded":
		return fmt.Errorf("provider %s: %w", resource, &services.RateLimitedError{RetryAfter: retryAfter(resp)})
	default:
		return fmt.Errorf("provider %s returned %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 5 * time.Second
}
