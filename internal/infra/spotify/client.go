// Package spotify turns Spotify track and playlist links into search queries for the
// video provider.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// Client is a Spotify API client using app-only credentials.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// New creates a new Spotify client. Tokens are fetched lazily and refreshed by the
// client-credentials token source.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return newClient(spotify.New(cc.Client(ctx)), cfg.Market), nil
}

func newClient(c *spotify.Client, market string) *Client {
	if market == "" {
		market = "JP"
	}
	return &Client{
		client:     c,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// IsTrackLink reports whether s is a Spotify track URL or URI.
func (c *Client) IsTrackLink(s string) bool {
	_, ok := ParseTrackID(s)
	return ok
}

// IsPlaylistLink reports whether s is a Spotify playlist URL or URI.
func (c *Client) IsPlaylistLink(s string) bool {
	_, ok := ParsePlaylistID(s)
	return ok
}

// TrackQuery looks up a track link and returns an "artist title" search query for it.
func (c *Client) TrackQuery(ctx context.Context, link string) (string, error) {
	id, ok := ParseTrackID(link)
	if !ok {
		return "", errors.Newf("not a spotify track link: %s", link)
	}

	var result *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get spotify track %s", id)
	}
	return trackQuery(result), nil
}

// PlaylistQueries returns search queries for up to limit tracks of a playlist, in order.
// Episodes and local files without an ID are skipped.
func (c *Client) PlaylistQueries(ctx context.Context, link string, limit int) ([]string, error) {
	id, ok := ParsePlaylistID(link)
	if !ok {
		return nil, errors.Newf("not a spotify playlist link: %s", link)
	}

	const pageSize = 100
	queries := make([]string, 0)
	offset := 0
	for limit <= 0 || len(queries) < limit {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(id),
				spotify.Limit(pageSize),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			if item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			queries = append(queries, trackQuery(item.Track.Track))
			if limit > 0 && len(queries) >= limit {
				break
			}
		}

		if len(page.Items) < pageSize {
			break
		}
		offset += pageSize
	}
	return queries, nil
}

func trackQuery(t *spotify.FullTrack) string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return t.Artists[0].Name + " " + t.Name
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// ParseTrackID extracts the ID from a spotify:track: URI or an open.spotify.com track URL.
func ParseTrackID(input string) (string, bool) {
	return parseID(input, "track")
}

// ParsePlaylistID extracts the ID from a spotify:playlist: URI or an open.spotify.com playlist URL.
func ParsePlaylistID(input string) (string, bool) {
	return parseID(input, "playlist")
}

func parseID(input, kind string) (string, bool) {
	input = strings.TrimSpace(input)
	// spotify:<kind>:ID
	if id, ok := strings.CutPrefix(input, "spotify:"+kind+":"); ok {
		return id, id != ""
	}

	// https://open.spotify.com/<kind>/ID or https://open.spotify.com/intl-XX/<kind>/ID
	if !strings.Contains(input, "open.spotify.com") {
		return "", false
	}
	parts := strings.Split(input, "/"+kind+"/")
	if len(parts) < 2 {
		return "", false
	}
	id := strings.Split(parts[len(parts)-1], "?")[0]
	id = strings.TrimRight(id, "/")
	return id, id != ""
}
