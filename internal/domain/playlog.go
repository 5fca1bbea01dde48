package domain

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// UnknownShow labels songs no slot or archive could account for.
const UnknownShow = "Unknown Show"

// PlayLogEntry is one raw "song played" record from a station feed.
type PlayLogEntry struct {
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Album        string `json:"album,omitempty"`
	RawTimestamp string `json:"timestamp"`
}

// ProcessedSong is a play-log entry with its show and play time resolved.
type ProcessedSong struct {
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	Album    string    `json:"album,omitempty"`
	ShowName string    `json:"showName"`
	ShowID   string    `json:"showId,omitempty"`
	PlayedAt time.Time `json:"playedAt"`
	GroupKey string    `json:"groupKey"`
}

// ShowGroup is the songs played during one airing of a show, newest first.
type ShowGroup struct {
	Key      string          `json:"key"`
	ShowName string          `json:"showName"`
	ShowID   string          `json:"showId,omitempty"`
	Songs    []ProcessedSong `json:"songs"`
}

// playLogRecord accepts the field spellings seen across the station's
// play-log endpoints.
type playLogRecord struct {
	Title     string `json:"title"`
	Song      string `json:"song"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	Timestamp string `json:"timestamp"`
	Time      string `json:"time"`
	PlayedAt  string `json:"played_at"`
}

func (r playLogRecord) entry() PlayLogEntry {
	return PlayLogEntry{
		Title:        strings.TrimSpace(firstNonEmpty(r.Title, r.Song)),
		Artist:       strings.TrimSpace(r.Artist),
		Album:        strings.TrimSpace(r.Album),
		RawTimestamp: strings.TrimSpace(firstNonEmpty(r.Timestamp, r.PlayedAt, r.Time)),
	}
}

type errorPayload struct {
	Error string `json:"error"`
}

// PlaylistPayload is the per-show playlist document.
type PlaylistPayload struct {
	ShowName   string         `json:"show_name"`
	Date       string         `json:"date"`
	PlaylistID any            `json:"playlist_id"`
	Songs      []playlistSong `json:"songs"`
	Error      string         `json:"error"`
}

type playlistSong struct {
	Time   string `json:"time"`
	Artist string `json:"artist"`
	Song   string `json:"song"`
	Album  string `json:"album"`
}

// ParsePlayLog decodes the play-log feed. The feed is either an array of
// entries or an object carrying "error", which means there is nothing to
// report and yields no entries.
func ParsePlayLog(data []byte) ([]PlayLogEntry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var e errorPayload
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode play log: %w", err)
		}
		if e.Error != "" {
			return nil, nil
		}
		return nil, fmt.Errorf("decode play log: unexpected object payload")
	}
	var records []playLogRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode play log: %w", err)
	}
	out := make([]PlayLogEntry, 0, len(records))
	for _, r := range records {
		out = append(out, r.entry())
	}
	return out, nil
}

// ParsePlaylist decodes a per-show playlist. An error-shaped or empty body is
// an empty playlist.
func ParsePlaylist(data []byte) (PlaylistPayload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return PlaylistPayload{}, nil
	}
	var p PlaylistPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return PlaylistPayload{}, fmt.Errorf("decode playlist: %w", err)
	}
	if p.Error != "" {
		return PlaylistPayload{}, nil
	}
	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
