// Package ytdlp wraps the yt-dlp command line for stream resolution, mix listing
// and playlist import.
package ytdlp

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	goytdlp "github.com/lrstanley/go-ytdlp"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/domain/track"
)

// Config represents yt-dlp invocation configuration.
type Config struct {
	Executable string // Empty uses yt-dlp from PATH
	Proxy      string
}

// Client runs yt-dlp commands.
type Client struct {
	config Config
}

// New creates a new yt-dlp client.
func New(cfg Config) *Client {
	return &Client{config: cfg}
}

func (c *Client) command() *goytdlp.Command {
	cmd := goytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig()
	if c.config.Executable != "" {
		cmd.SetExecutable(c.config.Executable)
	}
	if c.config.Proxy != "" {
		cmd.Proxy(c.config.Proxy)
	}
	return cmd
}

// Resolve returns a direct audio stream URL for a watch page reference.
func (c *Client) Resolve(ctx context.Context, reference string) (string, error) {
	res, err := c.command().Run(ctx, "-f", "bestaudio/best", "--no-playlist", "--get-url", reference)
	if err != nil {
		return "", errors.Wrapf(err, "yt-dlp failed for %s", reference)
	}
	stream := firstLine(res.Stdout)
	if stream == "" {
		return "", errors.Newf("yt-dlp returned no stream for %s", reference)
	}
	return stream, nil
}

// mixURLs lists the mix playlist variants tried for a seed, in order.
func mixURLs(videoID string) []string {
	return []string{
		"https://music.youtube.com/watch?v=" + videoID + "&list=RDAMVM" + videoID,
		"https://www.youtube.com/watch?v=" + videoID + "&list=RD" + videoID,
	}
}

const mixPrintTemplate = "%(id)s\t%(title)s\t%(uploader)s\t%(duration_string)s"

// Mix lists up to limit entries of the auto-generated mix seeded by videoID,
// excluding the seed itself. An error is returned only when every variant failed.
func (c *Client) Mix(ctx context.Context, videoID string, limit int) ([]track.Track, error) {
	if videoID == "" {
		return nil, errors.New("seed video id is required")
	}
	if limit <= 0 {
		limit = 5
	}

	var lastErr error
	for _, u := range mixURLs(videoID) {
		res, err := c.command().
			FlatPlaylist().
			Print(mixPrintTemplate).
			PlaylistItems("1-" + strconv.Itoa(limit+1)).
			Run(ctx, u)
		if err != nil {
			lastErr = err
			zlog.Debug().Msgf("mix listing failed, trying next variant: url=%s error=%v", u, err)
			continue
		}
		tracks := parseEntries(res.Stdout, videoID)
		if len(tracks) > limit {
			tracks = tracks[:limit]
		}
		return tracks, nil
	}
	return nil, errors.Wrapf(lastErr, "mix unavailable for %s", videoID)
}

// parseEntries reads tab-separated id/title/uploader/duration lines, skipping the
// seed, malformed lines and repeated ids.
func parseEntries(out, seedID string) []track.Track {
	seen := map[string]bool{seedID: true}
	tracks := make([]track.Track, 0)
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(parts) < 4 {
			continue
		}
		id := strings.TrimSpace(parts[0])
		if id == "" || id == "NA" || seen[id] {
			continue
		}
		seen[id] = true

		t := track.Track{
			ID:        id,
			Title:     naToEmpty(parts[1]),
			Artist:    naToEmpty(parts[2]),
			Thumbnail: track.ThumbnailURL(id),
			URL:       track.WatchURL(id),
		}
		if d, err := track.ParseDuration(naToEmpty(parts[3])); err == nil {
			t.Duration = d
		}
		tracks = append(tracks, t)
	}
	return tracks
}

// naToEmpty maps yt-dlp's placeholder for missing fields to an empty string.
func naToEmpty(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" {
		return ""
	}
	return s
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
