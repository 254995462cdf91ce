package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/radiobox/internal/domain/listener"
	"github.com/osa030/radiobox/internal/domain/track"
)

// DuplicateTrackFilter checks for duplicate tracks in the queue or on air.
// Detects:
// - Exact video ID matches
// - Re-uploads of the same song (normalized title + same artist)
// Excludes:
// - Covers (same title but different artist)
type DuplicateTrackFilter struct {
	queueManager QueueManager
}

// QueueManager gives access to the playing track followed by the queued ones.
type QueueManager interface {
	GetAllTracks() []track.QueuedTrack
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(queueManager QueueManager) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{
		queueManager: queueManager,
	}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects songs already queued or playing, including re-uploads of the same song; covers are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// AppliesTo returns which requester types this filter applies to.
func (f *DuplicateTrackFilter) AppliesTo(requesterType track.RequesterType) bool {
	return requesterType == track.RequesterTypeUser
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(config map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, requested track.Track, l *listener.Session) Result {
	if f.queueManager == nil {
		return Accept()
	}

	for _, queued := range f.queueManager.GetAllTracks() {
		if queued.Track.ID == requested.ID || isSameSong(queued.Track, requested) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

// isSameSong reports whether two uploads carry the same song by the same artist.
func isSameSong(a, b track.Track) bool {
	titleA, titleB := normalizeTitle(a.Title), normalizeTitle(b.Title)
	if titleA == "" || titleA != titleB {
		return false
	}
	return isSameArtist(a, b)
}

// versionPatterns strip decorations such as "- 2011 Remaster", "(Remastered 2023)",
// "(Official Video)", "(Single Version)" and "(Radio Edit)".
var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),
	regexp.MustCompile(`\s*[\(\[][^\)\]]*remaster[^\)\]]*[\)\]]`),
	regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`),
	regexp.MustCompile(`\s*[\(\[][^\)\]]*(?:official|lyrics?|mv)[^\)\]]*[\)\]]`),
	regexp.MustCompile(`\s*\(.*?version\)`),
	regexp.MustCompile(`\s*\(.*?edit\)`),
	regexp.MustCompile(`\s*-?\s*radio\s+edit`),
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	channelSuffix     = regexp.MustCompile(`(?i)\s*(?:-\s*topic|vevo|official)\s*$`)
)

// normalizeTitle lowercases a title and removes version and upload decorations.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	normalized = whitespacePattern.ReplaceAllString(strings.TrimSpace(normalized), " ")
	return strings.TrimRight(normalized, " -")
}

// isSameArtist compares channel names with "- Topic"/"VEVO" suffixes removed.
func isSameArtist(a, b track.Track) bool {
	artistA := strings.ToLower(channelSuffix.ReplaceAllString(a.Artist, ""))
	artistB := strings.ToLower(channelSuffix.ReplaceAllString(b.Artist, ""))
	if artistA == "" || artistB == "" {
		return false
	}
	return strings.ReplaceAll(artistA, " ", "") == strings.ReplaceAll(artistB, " ", "")
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter(nil)
	})
}
