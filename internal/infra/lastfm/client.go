// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Similar-track results keyed by "artist:track"
	similarCache map[string][]SimilarTrack
	cacheMu      sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey  string
	Timeout time.Duration
}

// SimilarTrack represents a similar track from Last.fm.
type SimilarTrack struct {
	Name   string
	Artist string
	Match  float64 // similarity score 0..1
}

// getSimilarResponse represents the response from track.getSimilar API.
type getSimilarResponse struct {
	SimilarTracks struct {
		Track []struct {
			Name   string          `json:"name"`
			Match  json.RawMessage `json:"match"`
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"track"`
	} `json:"similartracks"`
}

// apiError represents an error response from Last.fm API.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      "https://ws.audioscrobbler.com/2.0/",
		httpClient:   &http.Client{Timeout: timeout},
		similarCache: make(map[string][]SimilarTrack),
	}, nil
}

// GetSimilarTracks retrieves similar tracks from Last.fm based on track name and artist.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]SimilarTrack, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit)

	cacheKey := strings.ToLower(artistName + ":" + trackName)
	c.cacheMu.RLock()
	if cached, ok := c.similarCache[cacheKey]; ok && len(cached) >= limit {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached similar tracks: artist=%s track=%s", artistName, trackName)
		return cached[:limit], nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("method", "track.getSimilar")
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("autocorrect", "1")

	var response getSimilarResponse
	if err := c.call(ctx, params, &response); err != nil {
		return nil, err
	}

	similar := make([]SimilarTrack, 0, len(response.SimilarTracks.Track))
	for _, t := range response.SimilarTracks.Track {
		similar = append(similar, SimilarTrack{
			Name:   t.Name,
			Artist: t.Artist.Name,
			Match:  parseMatch(t.Match),
		})
	}

	c.cacheMu.Lock()
	c.similarCache[cacheKey] = similar
	c.cacheMu.Unlock()

	return similar, nil
}

// call performs a GET against the API root and decodes the JSON body into out.
func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
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

	// Last.fm reports failures in the body, sometimes with a 200 status
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// parseMatch accepts the score as either a JSON number or a quoted string.
func parseMatch(raw json.RawMessage) float64 {
	s := strings.Trim(string(raw), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
