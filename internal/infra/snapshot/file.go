// Package snapshot persists the playback queue as a JSON file.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/radiobox/internal/domain/track"
)

// record is the on-disk shape of one queued track.
type record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Thumbnail   string `json:"thumbnail"`
	Duration    *int   `json:"duration"`
	URL         string `json:"url"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// File stores the queue at a fixed path.
type File struct {
	path string
}

// NewFile creates a snapshot file store.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the snapshot location.
func (f *File) Path() string {
	return f.path
}

// Load reads the snapshot. A missing file is an empty queue.
func (f *File) Load() ([]track.QueuedTrack, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read queue snapshot")
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "failed to parse queue snapshot %s", f.path)
	}

	result := make([]track.QueuedTrack, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		result = append(result, fromRecord(r))
	}
	return result, nil
}

// Save writes the snapshot through a temp file and rename so readers never see a partial file.
func (f *File) Save(tracks []track.QueuedTrack) error {
	records := make([]record, len(tracks))
	for i, qt := range tracks {
		records[i] = toRecord(qt)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode queue snapshot")
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return errors.Wrap(err, "failed to create temp snapshot")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write temp snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close temp snapshot")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to replace queue snapshot")
	}
	return nil
}

func toRecord(qt track.QueuedTrack) record {
	r := record{
		ID:          qt.Track.ID,
		Title:       qt.Track.Title,
		Artist:      qt.Track.Artist,
		Thumbnail:   qt.Track.Thumbnail,
		URL:         qt.Track.URL,
		RequestedBy: qt.Requester.Name,
	}
	if qt.Track.HasDuration() {
		secs := int(qt.Track.Duration / time.Second)
		r.Duration = &secs
	}
	return r
}

func fromRecord(r record) track.QueuedTrack {
	t := track.Track{
		ID:        r.ID,
		Title:     r.Title,
		Artist:    r.Artist,
		Thumbnail: r.Thumbnail,
		URL:       r.URL,
	}
	if r.Duration != nil && *r.Duration > 0 {
		t.Duration = time.Duration(*r.Duration) * time.Second
	}
	if t.URL == "" {
		t.URL = track.WatchURL(r.ID)
	}

	req := track.Requester{Name: r.RequestedBy, Type: track.RequesterTypeUser}
	if r.RequestedBy == track.RadioRequesterName {
		req = track.RadioRequester()
	}
	return track.QueuedTrack{Track: t, Requester: req}
}
