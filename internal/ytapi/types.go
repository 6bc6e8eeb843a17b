package ytapi

import (
	"context"
	"time"
)

// Video is the provider detail record mapped into the shape the catalog
// stages videos in. Snippet, content-details, and statistics parts of the
// provider response all land here.
type Video struct {
	ExternalID      string
	Title           string
	Description     string
	ThumbnailURL    string
	DurationSeconds int64
	PublishedAt     time.Time
	ViewCount       int64
	LikeCount       int64
	ChannelID       string
	Tags            []string
}

// Page is one page of video ids from a playlist or search listing.
type Page struct {
	IDs           []string
	NextPageToken string
	TotalResults  int64
}

// API is the provider surface the pipeline workers consume. *Client is the
// production implementation; tests substitute fakes.
type API interface {
	ResolveUploadsPlaylist(ctx context.Context, channelID string) (string, error)
	PlaylistItemsPage(ctx context.Context, playlistID, pageToken string) (*Page, error)
	Search(ctx context.Context, query, pageToken string) (*Page, error)
	VideoDetails(ctx context.Context, ids []string) ([]Video, error)
	Quota() *Quota
}
