package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimilarTracks(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "track.getSimilar", r.URL.Query().Get("method"))
		assert.Equal(t, "Daft Punk", r.URL.Query().Get("artist"))
		assert.Equal(t, "One More Time", r.URL.Query().Get("track"))
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		response := `{
			"similartracks": {
				"track": [
					{"name": "Digital Love", "match": 1, "artist": {"name": "Daft Punk"}},
					{"name": "Music Sounds Better With You", "match": "0.83", "artist": {"name": "Stardust"}}
				]
			}
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"

	ctx := context.Background()
	similar, err := client.GetSimilarTracks(ctx, "One More Time", "Daft Punk", 2)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.Equal(t, "Digital Love", similar[0].Name)
	assert.Equal(t, "Stardust", similar[1].Artist)
	assert.InDelta(t, 0.83, similar[1].Match, 1e-9)

	// Second call is served from cache
	cached, err := client.GetSimilarTracks(ctx, "One More Time", "Daft Punk", 2)
	require.NoError(t, err)
	assert.Equal(t, similar, cached)
	assert.Equal(t, 1, calls)
}

func TestGetSimilarTracks_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": 6, "message": "Track not found"}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"

	_, err = client.GetSimilarTracks(context.Background(), "x", "y", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Track not found")
}

func TestGetSimilarTracks_HTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"

	_, err = client.GetSimilarTracks(context.Background(), "x", "y", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestGetSimilarTracks_RequiresNames(t *testing.T) {
	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	_, err = client.GetSimilarTracks(context.Background(), "", "artist", 5)
	assert.Error(t, err)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
