package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"onair/internal/netx"
)

type feedFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// WeekSchedule holds one bucket of slots per weekday, indexed by time.Weekday.
type WeekSchedule [7][]ShowSlot

// ScheduleStore owns the current schedule snapshot. Refresh replaces it
// wholesale; readers always see a complete snapshot.
type ScheduleStore struct {
	net         feedFetcher
	scheduleURL string
	archiveURL  string
	loc         *time.Location
	ttl         time.Duration
	log         zerolog.Logger
	now         func() time.Time

	mu      sync.RWMutex
	current Schedule

	refreshMu sync.Mutex
}

// ScheduleStoreOptions configures a ScheduleStore.
type ScheduleStoreOptions struct {
	ScheduleURL string
	// ArchiveURL is optional; without it the season start stays unknown.
	ArchiveURL string
	Location   *time.Location
	TTL        time.Duration
	Logger     zerolog.Logger
}

// NewScheduleStore creates an empty store backed by the shared HTTP client.
func NewScheduleStore(net feedFetcher, opts ScheduleStoreOptions) *ScheduleStore {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &ScheduleStore{
		net:         net,
		scheduleURL: opts.ScheduleURL,
		archiveURL:  opts.ArchiveURL,
		loc:         loc,
		ttl:         opts.TTL,
		log:         opts.Logger,
		now:         time.Now,
	}
}

// Location is the station time zone every slot is expressed in.
func (s *ScheduleStore) Location() *time.Location {
	return s.loc
}

// Snapshot returns the current schedule.
func (s *ScheduleStore) Snapshot() Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace installs a snapshot directly; used when the schedule comes from
// somewhere other than the feeds.
func (s *ScheduleStore) Replace(sched Schedule) {
	s.mu.Lock()
	s.current = sched
	s.mu.Unlock()
}

// Refresh fetches the schedule and archive feeds in parallel and swaps in the
// new snapshot once both are parsed. On any failure the previous snapshot is
// kept and the error returned.
func (s *ScheduleStore) Refresh(ctx context.Context) (Schedule, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	var (
		slots    []ShowSlot
		dayStart int
		archives []ArchiveShow
		season   time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := s.net.Fetch(gctx, s.scheduleURL)
		if err != nil {
			return fmt.Errorf("schedule feed: %w", err)
		}
		slots, dayStart, err = ParseScheduleFeed(data)
		return err
	})
	if s.archiveURL != "" {
		g.Go(func() error {
			data, err := s.net.Fetch(gctx, s.archiveURL)
			if errors.Is(err, netx.ErrNotFound) {
				s.log.Warn().Str("url", s.archiveURL).Msg("archive feed not found; season start unknown")
				return nil
			}
			if err != nil {
				return fmt.Errorf("archive feed: %w", err)
			}
			if len(data) == 0 {
				return nil
			}
			archives, season, err = ParseArchiveFeed(data, s.loc)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Msg("schedule refresh failed; keeping previous schedule")
		return s.Snapshot(), err
	}

	next := Schedule{
		Slots:       slots,
		DayStart:    dayStart,
		SeasonStart: season,
		Archives:    archives,
		FetchedAt:   s.now(),
	}
	s.Replace(next)
	s.log.Info().Int("slots", len(slots)).Int("archive_shows", len(archives)).
		Bool("season_known", !season.IsZero()).Msg("schedule refreshed")
	return next, nil
}

// EnsureFresh refreshes when nothing is loaded yet or the snapshot is older
// than the TTL. A failed refresh over stale data returns the stale snapshot
// along with the error.
func (s *ScheduleStore) EnsureFresh(ctx context.Context) (Schedule, error) {
	cur := s.Snapshot()
	if !cur.Empty() && (s.ttl <= 0 || s.now().Sub(cur.FetchedAt) < s.ttl) {
		return cur, nil
	}
	return s.Refresh(ctx)
}

// GroupByDay buckets the current schedule by calendar weekday.
func (s *ScheduleStore) GroupByDay() WeekSchedule {
	return GroupByDay(s.Snapshot())
}

// GroupByDay expands weekday-sentinel slots into Monday..Friday, files every
// slot under its effective day, and sorts each bucket by start time.
func GroupByDay(sched Schedule) WeekSchedule {
	var week WeekSchedule
	for _, slot := range sched.Slots {
		for _, d := range sched.EffectiveDays(slot) {
			week[d] = append(week[d], slot)
		}
	}
	for d := range week {
		sort.SliceStable(week[d], func(i, j int) bool { return week[d][i].Start < week[d][j].Start })
	}
	return week
}
