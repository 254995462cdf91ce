package resolver

import (
	"net/url"
	"regexp"
	"strings"
)

// Video ID shapes, tried in this order.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:[^#\s]*&)?v=)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtu\.be/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/(?:embed|shorts|live)/)([A-Za-z0-9_-]{11})`),
}

var bareIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID returns the video ID carried by a watch page, short link or embed URL.
func ExtractVideoID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// IsBareVideoID reports whether s looks like a bare 11-character video ID.
func IsBareVideoID(s string) bool {
	return bareIDPattern.MatchString(strings.TrimSpace(s))
}

// ExtractPlaylistID returns the list parameter of a playlist page URL.
// Watch URLs that merely carry a radio list (RD...) are not treated as playlists.
func ExtractPlaylistID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "youtube.com/") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	list := u.Query().Get("list")
	if list == "" || strings.HasPrefix(list, "RD") {
		return "", false
	}
	if u.Query().Get("v") != "" && !strings.HasSuffix(u.Path, "/playlist") {
		return "", false
	}
	return list, true
}

// IsURL reports whether the input looks like a link rather than a search phrase.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
