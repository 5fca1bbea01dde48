package domain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"onair/internal/netx"
)

var toronto = mustLoadLocation("America/Toronto")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// at builds a station wall-clock time.
func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, toronto)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newMockNetClient(t *testing.T, handler http.HandlerFunc) (*netx.Client, string) {
	t.Helper()
	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)
	httpClient := s.Client()
	httpClient.Timeout = 2 * time.Second
	return netx.NewClientWithHTTPClient(httpClient, netx.Options{
		Retry: netx.RetryOptions{Retries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}), s.URL
}

// staticSchedule serves a fixed snapshot to resolvers and aggregators.
type staticSchedule struct {
	sched Schedule
	loc   *time.Location
	err   error
}

func (s *staticSchedule) Snapshot() Schedule       { return s.sched }
func (s *staticSchedule) Location() *time.Location { return s.loc }
func (s *staticSchedule) EnsureFresh(context.Context) (Schedule, error) {
	return s.sched, s.err
}

func newStatic(sched Schedule) *staticSchedule {
	if sched.FetchedAt.IsZero() {
		sched.FetchedAt = at(2025, time.September, 1, 0, 0)
	}
	return &staticSchedule{sched: sched, loc: toronto}
}

// fakeFetcher answers Fetch from canned bodies and errors keyed by URL.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
	// gate, when set, blocks every fetch until it is closed; entered is
	// signalled as each fetch starts waiting.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	f.calls[rawURL]++
	body, hasBody := f.bodies[rawURL]
	err := f.errs[rawURL]
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !hasBody {
		return nil, netx.ErrNotFound
	}
	return []byte(body), nil
}

func (f *fakeFetcher) count(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

const sundayScheduleXML = `<?xml version="1.0" encoding="UTF-8"?>
<schedule daystart="360">
  <show id="101">
    <name>Compas sur FM</name>
    <day>0</day>
    <day_str>Sunday</day_str>
    <time>360</time>
    <time_str>6:00 AM</time_str>
    <length>120</length>
    <alternates>0</alternates>
    <hosts>Jean</hosts>
  </show>
  <show id="102">
    <name>Africa Kabisa</name>
    <day>0</day>
    <day_str>Sunday</day_str>
    <time>960</time>
    <time_str>4:00 PM</time_str>
    <length>120</length>
    <alternates>0</alternates>
  </show>
</schedule>`

const archiveFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<archives season_start="2025-09-22">
  <show id="201">
    <name>Jazz Lab</name>
    <archive><url>https://example.org/a/jazz-0923.mp3</url><date>2025-09-23 12:00:00</date><size>1024</size></archive>
    <archive><url>https://example.org/a/jazz-rebroadcast-0924.mp3</url><date>2025-09-24 12:00:00</date></archive>
  </show>
</archives>`

func slot(id, name string, day, start, length int, alt AlternationCode) ShowSlot {
	return ShowSlot{ID: id, Name: name, Day: day, Start: start, Length: length, Alternates: alt}
}
