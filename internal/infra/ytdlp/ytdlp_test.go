package ytdlp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntries(t *testing.T) {
	out := "seed0000000\tSeed\tChan\t3:00\n" +
		"aaaaaaaaaaa\tFirst\tArtist A\t4:05\n" +
		"malformed line\n" +
		"bbbbbbbbbbb\tSecond\tNA\tNA\r\n" +
		"aaaaaaaaaaa\tFirst again\tArtist A\t4:05\n" +
		"NA\tNo id\tx\t1:00\n" +
		"\n"

	tracks := parseEntries(out, "seed0000000")
	require.Len(t, tracks, 2)

	assert.Equal(t, "aaaaaaaaaaa", tracks[0].ID)
	assert.Equal(t, "First", tracks[0].Title)
	assert.Equal(t, "Artist A", tracks[0].Artist)
	assert.Equal(t, 4*time.Minute+5*time.Second, tracks[0].Duration)
	assert.Equal(t, "https://www.youtube.com/watch?v=aaaaaaaaaaa", tracks[0].URL)

	assert.Equal(t, "bbbbbbbbbbb", tracks[1].ID)
	assert.Empty(t, tracks[1].Artist)
	assert.False(t, tracks[1].HasDuration())
}

func TestParseEntries_Empty(t *testing.T) {
	assert.Empty(t, parseEntries("", "x"))
}

func TestMixURLs(t *testing.T) {
	urls := mixURLs("dQw4w9WgXcQ")
	require.Len(t, urls, 2)
	assert.Equal(t, "https://music.youtube.com/watch?v=dQw4w9WgXcQ&list=RDAMVMdQw4w9WgXcQ", urls[0])
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=RDdQw4w9WgXcQ", urls[1])
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "https://stream/a", firstLine("\n  https://stream/a\nhttps://stream/b\n"))
	assert.Empty(t, firstLine("  \n"))
}

func TestClient_MixRequiresSeed(t *testing.T) {
	_, err := New(Config{}).Mix(context.Background(), "", 5)
	assert.Error(t, err)
}

func TestPlaylistImporter_RequiresID(t *testing.T) {
	_, err := NewPlaylistImporter().Import(context.Background(), "", 5)
	assert.Error(t, err)
}
