package ytapi

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"
)

type channelListResponse struct {
	Items []struct {
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type pageInfo struct {
	TotalResults int `json:"totalResults"`
}

type playlistItemsResponse struct {
	NextPageToken string   `json:"nextPageToken"`
	PageInfo      pageInfo `json:"pageInfo"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type searchResponse struct {
	NextPageToken string   `json:"nextPageToken"`
	PageInfo      pageInfo `json:"pageInfo"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type videoListResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		PublishedAt time.Time `json:"publishedAt"`
		ChannelID   string    `json:"channelId"`
		Tags        []string  `json:"tags"`
		Thumbnails  struct {
			High struct {
				URL string `json:"url"`
			} `json:"high"`
			Default struct {
				URL string `json:"url"`
			} `json:"default"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics struct {
		ViewCount string `json:"viewCount"`
		LikeCount string `json:"likeCount"`
	} `json:"statistics"`
}

func (item videoItem) toVideo() Video {
	thumbnail := item.Snippet.Thumbnails.High.URL
	if thumbnail == "" {
		thumbnail = item.Snippet.Thumbnails.Default.URL
	}
	return Video{
		ExternalID:      item.ID,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		ThumbnailURL:    thumbnail,
		DurationSeconds: int64(parseISODuration(item.ContentDetails.Duration)),
		PublishedAt:     item.Snippet.PublishedAt,
		ViewCount:       parseCount(item.Statistics.ViewCount),
		LikeCount:       parseCount(item.Statistics.LikeCount),
		ChannelID:       item.Snippet.ChannelID,
		Tags:            item.Snippet.Tags,
	}
}

// parseCount tolerates the provider serializing counters as strings.
func parseCount(raw string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// parseISODuration converts an ISO-8601 duration like PT1H23M45S to whole
// seconds. Malformed input yields zero.
func parseISODuration(raw string) int {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "PT") {
		return 0
	}
	raw = raw[2:]
	total := 0
	number := 0
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			number = number*10 + int(r-'0')
		case r == 'H':
			total += number * 3600
			number = 0
		case r == 'M':
			total += number * 60
			number = 0
		case r == 'S':
			total += number
			number = 0
		default:
			return 0
		}
	}
	return total
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (e errorBody) firstReason() string {
	if len(e.Error.Errors) > 0 {
		return e.Error.Errors[0].Reason
	}
	return ""
}

func parseErrorBody(body []byte) errorBody {
	var payload errorBody
	_ = json.Unmarshal(body, &payload)
	return payload
}

func decodeJSON(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}
