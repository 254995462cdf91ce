// Package youtube provides a client for the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/domain/track"
)

// maxIDsPerCall is the videos.list id batch ceiling.
const maxIDsPerCall = 50

// Client is a YouTube Data API client.
type Client struct {
	apiKey     string
	categoryID string
	baseURL    string
	httpClient *http.Client
}

// Config represents YouTube client configuration.
type Config struct {
	APIKey          string
	MusicCategoryID string
	Timeout         time.Duration
}

type thumbnails struct {
	Default struct {
		URL string `json:"url"`
	} `json:"default"`
	Medium struct {
		URL string `json:"url"`
	} `json:"medium"`
}

type snippet struct {
	Title        string     `json:"title"`
	ChannelTitle string     `json:"channelTitle"`
	Thumbnails   thumbnails `json:"thumbnails"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet snippet `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID             string  `json:"id"`
		Snippet        snippet `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// apiError represents the error envelope of the Data API.
type apiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// New creates a new YouTube client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube API key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	category := cfg.MusicCategoryID
	if category == "" {
		category = "10"
	}

	return &Client{
		apiKey:     cfg.APIKey,
		categoryID: category,
		baseURL:    "https://www.googleapis.com/youtube/v3/",
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "youtube"
}

// Search finds music videos matching query, then fills in durations with a videos call.
// Reference: https://developers.google.com/youtube/v3/docs/search/list
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if limit <= 0 || limit > maxIDsPerCall {
		limit = maxIDsPerCall
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("videoCategoryId", c.categoryID)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("q", query)

	var response searchResponse
	if err := c.call(ctx, "search", params, &response); err != nil {
		return nil, err
	}

	tracks := make([]track.Track, 0, len(response.Items))
	ids := make([]string, 0, len(response.Items))
	for _, item := range response.Items {
		if item.ID.VideoID == "" {
			continue
		}
		tracks = append(tracks, newTrack(item.ID.VideoID, item.Snippet))
		ids = append(ids, item.ID.VideoID)
	}
	if len(ids) == 0 {
		return tracks, nil
	}

	durations, err := c.Durations(ctx, ids)
	if err != nil {
		// Search results stay usable without durations
		zlog.Warn().Msgf("failed to fetch durations: query=%q error=%v", query, err)
		return tracks, nil
	}
	for i := range tracks {
		tracks[i].Duration = durations[tracks[i].ID]
	}
	return tracks, nil
}

// Lookup fetches a single video by ID. Returns nil without error when the video does not exist.
func (c *Client) Lookup(ctx context.Context, id string) (*track.Track, error) {
	response, err := c.videos(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	for _, item := range response.Items {
		if item.ID != id {
			continue
		}
		t := newTrack(item.ID, item.Snippet)
		t.Duration = parseDuration(item.ID, item.ContentDetails.Duration)
		return &t, nil
	}
	return nil, nil
}

// Durations returns video durations keyed by ID, batching ids per call.
// IDs the API does not know are absent from the result.
func (c *Client) Durations(ctx context.Context, ids []string) (map[string]time.Duration, error) {
	result := make(map[string]time.Duration, len(ids))
	for start := 0; start < len(ids); start += maxIDsPerCall {
		end := min(start+maxIDsPerCall, len(ids))
		response, err := c.videos(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		for _, item := range response.Items {
			result[item.ID] = parseDuration(item.ID, item.ContentDetails.Duration)
		}
	}
	return result, nil
}

func (c *Client) videos(ctx context.Context, ids []string) (*videosResponse, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("id", strings.Join(ids, ","))

	var response videosResponse
	if err := c.call(ctx, "videos", params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// call performs a GET against an API resource and decodes the JSON body into out.
func (c *Client) call(ctx context.Context, resource string, params url.Values, out any) error {
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+resource+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
		return errors.Errorf("youtube API error %d: %s", apiErr.Error.Code, apiErr.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("youtube API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func newTrack(id string, s snippet) track.Track {
	thumb := s.Thumbnails.Medium.URL
	if thumb == "" {
		thumb = s.Thumbnails.Default.URL
	}
	if thumb == "" {
		thumb = track.ThumbnailURL(id)
	}
	return track.Track{
		ID:        id,
		Title:     s.Title,
		Artist:    s.ChannelTitle,
		Thumbnail: thumb,
		URL:       track.WatchURL(id),
	}
}

// parseDuration returns zero for durations the API leaves empty, such as live streams.
func parseDuration(id, raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := track.ParseDuration(raw)
	if err != nil {
		zlog.Debug().Msgf("unparseable video duration: id=%s duration=%q", id, raw)
		return 0
	}
	return d
}
