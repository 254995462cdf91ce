package radio

import (
	"regexp"
	"strings"
)

// Bracketed decorations that say nothing about the song itself.
var noisePattern = regexp.MustCompile(`(?i)\s*[\(\[【]\s*(?:official|lyrics?|lyric video|remix|audio|video|mv|m/v|hd|hq|4k|visuali[sz]er|color coded|explicit|clean|full version|music video)[^\)\]】]*[\)\]】]`)

// Bare trailing decorations outside brackets, e.g. "Song - Official Video".
var trailingNoisePattern = regexp.MustCompile(`(?i)\s*[-|]\s*(?:official\s+(?:music\s+)?(?:video|audio|lyric video)|lyrics?|audio)\s*$`)

var artistSuffixPattern = regexp.MustCompile(`(?i)\s*(?:-\s*topic|vevo)\s*$`)

var spacePattern = regexp.MustCompile(`\s+`)

// CleanTitle strips decorative noise phrases from a video title.
func CleanTitle(title string) string {
	s := noisePattern.ReplaceAllString(title, " ")
	s = trailingNoisePattern.ReplaceAllString(s, "")
	return collapse(s)
}

// CleanArtist strips channel suffixes such as "- Topic" and "VEVO".
func CleanArtist(artist string) string {
	return collapse(artistSuffixPattern.ReplaceAllString(artist, ""))
}

// FallbackQuery builds the keyword query used when similarity sources are unavailable.
func FallbackQuery(title, artist string) string {
	t := CleanTitle(title)
	a := CleanArtist(artist)
	// Titles often already lead with the artist
	if a != "" && strings.Contains(strings.ToLower(t), strings.ToLower(a)) {
		return t
	}
	return collapse(a + " " + t)
}

func collapse(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
