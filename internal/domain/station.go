package domain

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"onair/internal/cache"
	"onair/internal/notify"
)

// StationOptions collects everything a Station needs to talk to its feeds.
type StationOptions struct {
	ScheduleURL string
	ArchiveURL  string
	PlayLogURL  string
	PlaylistURL string
	Location    *time.Location
	ScheduleTTL time.Duration
	SongTTL     time.Duration
	Cache       cache.Cache
	WatchSpec   string
	Logger      zerolog.Logger
}

// Station is the public face of the engine: the schedule, the resolver, the
// song aggregator and the current-show watcher sharing one HTTP client.
type Station struct {
	Schedule   *ScheduleStore
	Resolver   *Resolver
	Aggregator *Aggregator
	Watcher    *Watcher
}

// NewStation wires the components together. Nothing is fetched until the
// first call that needs data.
func NewStation(net feedFetcher, opts StationOptions) *Station {
	store := NewScheduleStore(net, ScheduleStoreOptions{
		ScheduleURL: opts.ScheduleURL,
		ArchiveURL:  opts.ArchiveURL,
		Location:    opts.Location,
		TTL:         opts.ScheduleTTL,
		Logger:      opts.Logger.With().Str("component", "schedule").Logger(),
	})
	resolver := NewResolver(store)
	agg := NewAggregator(net, store, AggregatorOptions{
		PlayLogURL:  opts.PlayLogURL,
		PlaylistURL: opts.PlaylistURL,
		Cache:       opts.Cache,
		SongTTL:     opts.SongTTL,
		Logger:      opts.Logger.With().Str("component", "songs").Logger(),
	})
	watcher := NewWatcher(store, resolver, agg, opts.WatchSpec, opts.Logger.With().Str("component", "watcher").Logger())
	return &Station{Schedule: store, Resolver: resolver, Aggregator: agg, Watcher: watcher}
}

// SetClock replaces the wall clock of every component.
func (s *Station) SetClock(now func() time.Time) {
	s.Schedule.now = now
	s.Aggregator.now = now
	s.Watcher.now = now
}

// FetchSchedule refreshes the schedule and returns it bucketed by weekday.
// When the refresh fails the last good schedule is returned with the error.
func (s *Station) FetchSchedule(ctx context.Context) (WeekSchedule, error) {
	sched, err := s.Schedule.Refresh(ctx)
	return GroupByDay(sched), err
}

// FetchRecentlyPlayed returns the grouped song history; see
// Aggregator.FetchRecentlyPlayed.
func (s *Station) FetchRecentlyPlayed(ctx context.Context, force bool) ([]ShowGroup, error) {
	return s.Aggregator.FetchRecentlyPlayed(ctx, force)
}

// FetchPlaylist returns the songs of one airing of a show.
func (s *Station) FetchPlaylist(ctx context.Context, showName string, date time.Time) ([]ProcessedSong, error) {
	if _, err := s.Schedule.EnsureFresh(ctx); err != nil {
		s.Aggregator.log.Warn().Err(err).Msg("schedule unavailable; playlist shows will lack ids")
	}
	return s.Aggregator.FetchPlaylist(ctx, showName, date)
}

// FindShow looks a show up by name in the current schedule snapshot.
func (s *Station) FindShow(name string) (ShowSlot, bool) {
	return s.Schedule.Snapshot().FindByName(name)
}

// FindPreviousShow returns the slot that aired before currentShow today.
func (s *Station) FindPreviousShow(ctx context.Context, currentShow string) (PreviousShow, bool, error) {
	if _, err := s.Schedule.EnsureFresh(ctx); err != nil && s.Schedule.Snapshot().Empty() {
		return PreviousShow{}, false, err
	}
	prev, ok := s.Aggregator.FindPreviousShow(currentShow)
	return prev, ok, nil
}

// Archives lists the recorded episodes of a show.
func (s *Station) Archives(ctx context.Context, showName string) ([]Archive, error) {
	sched, err := s.Schedule.EnsureFresh(ctx)
	if err != nil && sched.Empty() {
		return nil, err
	}
	return sched.ArchivesFor(showName), nil
}

// Location is the station time zone.
func (s *Station) Location() *time.Location {
	return s.Schedule.Location()
}

// CurrentShow resolves what is on air now and notifies current-show
// subscribers if it changed.
func (s *Station) CurrentShow(ctx context.Context) CurrentShow {
	return s.Watcher.Check(ctx)
}

// LatestPlaylist returns the playlist of the show on air. When that show has
// logged nothing yet, the previous show's playlist is returned instead.
func (s *Station) LatestPlaylist(ctx context.Context) (PlaylistPage, error) {
	cur := s.CurrentShow(ctx)
	if !cur.OnAir {
		return PlaylistPage{Songs: []ProcessedSong{}}, nil
	}
	songs, err := s.Aggregator.FetchPlaylist(ctx, cur.Show.Name, cur.StartsAt)
	if err != nil {
		return PlaylistPage{}, err
	}
	page := PlaylistPage{Show: *cur.Show, Date: cur.StartsAt.Format("2006-01-02"), Songs: songs}
	if len(songs) > 0 {
		return page, nil
	}
	prev, ok := s.Aggregator.FindPreviousShow(cur.Show.Name)
	if !ok {
		return page, nil
	}
	date, _ := time.ParseInLocation("2006-01-02", prev.Date, s.Schedule.Location())
	songs, err = s.Aggregator.FetchPlaylist(ctx, prev.Slot.Name, date)
	if err != nil {
		return PlaylistPage{}, err
	}
	return PlaylistPage{Show: prev.Slot, Date: prev.Date, Songs: songs}, nil
}

// NewPager pages backwards through today's playlists starting before
// currentShow.
func (s *Station) NewPager(currentShow string) *Pager {
	return s.Aggregator.NewPager(currentShow)
}

// SubscribeCurrentShow registers fn for current-show changes. fn is called
// at once with the latest known value.
func (s *Station) SubscribeCurrentShow(fn func(CurrentShow)) notify.Subscription {
	return s.Watcher.Topic().Subscribe(fn)
}

// SubscribeSongHistory registers fn for song-history changes. fn is called at
// once with the latest known history.
func (s *Station) SubscribeSongHistory(fn func([]ShowGroup)) notify.Subscription {
	return s.Aggregator.History().Subscribe(fn)
}

// Start begins watching for show changes.
func (s *Station) Start(ctx context.Context) {
	s.Watcher.Start(ctx)
}

// Stop ends watching.
func (s *Station) Stop() {
	s.Watcher.Stop()
}
