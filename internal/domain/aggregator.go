package domain

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"onair/internal/cache"
	"onair/internal/netx"
	"onair/internal/notify"
	"onair/internal/util"
)

const (
	// DedupWindow is how close two identical consecutive plays must be to
	// collapse into one.
	DedupWindow = 10 * time.Minute
	// ArchiveMatchWindow is how long after an archive's start a song may
	// still be attributed to that archive's show.
	ArchiveMatchWindow = 4 * time.Hour

	recentCacheKey = "recent"
)

type scheduleProvider interface {
	scheduleSource
	EnsureFresh(ctx context.Context) (Schedule, error)
}

// AggregatorOptions configures an Aggregator.
type AggregatorOptions struct {
	PlayLogURL  string
	PlaylistURL string
	// Cache holds the aggregated history; defaults to an in-process cache.
	Cache   cache.Cache
	SongTTL time.Duration
	Logger  zerolog.Logger
}

// Aggregator turns raw play logs into deduplicated, show-grouped history.
type Aggregator struct {
	net         feedFetcher
	schedule    scheduleProvider
	playLogURL  string
	playlistURL string
	cache       cache.Cache
	songTTL     time.Duration
	history     *notify.Topic[[]ShowGroup]
	inFlight    atomic.Bool
	log         zerolog.Logger
	now         func() time.Time
}

// NewAggregator wires an Aggregator to the shared HTTP client and schedule.
func NewAggregator(net feedFetcher, schedule scheduleProvider, opts AggregatorOptions) *Aggregator {
	c := opts.Cache
	if c == nil {
		c = cache.NewMemory()
	}
	ttl := opts.SongTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Aggregator{
		net:         net,
		schedule:    schedule,
		playLogURL:  opts.PlayLogURL,
		playlistURL: opts.PlaylistURL,
		cache:       c,
		songTTL:     ttl,
		history:     notify.NewTopic[[]ShowGroup](nil),
		log:         opts.Logger,
		now:         time.Now,
	}
}

// History is the "song history changed" topic.
func (a *Aggregator) History() *notify.Topic[[]ShowGroup] {
	return a.history
}

// FetchRecentlyPlayed returns the grouped song history.
//
// Unless force is set, a cached result younger than the song TTL is returned
// as is. Only one aggregation runs at a time: a call made while another is in
// flight returns the last published history without fetching. A cancelled
// fetch yields an empty history, not an error.
func (a *Aggregator) FetchRecentlyPlayed(ctx context.Context, force bool) ([]ShowGroup, error) {
	if !a.inFlight.CompareAndSwap(false, true) {
		a.log.Debug().Msg("aggregation already in progress; skipping")
		return a.history.Current(), nil
	}
	defer a.inFlight.Store(false)

	if !force {
		var cached []ShowGroup
		ok, err := a.cache.Get(ctx, recentCacheKey, &cached)
		if err != nil {
			a.log.Warn().Err(err).Msg("song cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	if _, err := a.schedule.EnsureFresh(ctx); err != nil {
		if netx.IsAborted(err) {
			return []ShowGroup{}, nil
		}
		a.log.Warn().Err(err).Msg("schedule unavailable; resolving against last known schedule")
	}

	data, err := a.net.Fetch(ctx, a.playLogURL)
	switch {
	case netx.IsAborted(err):
		return []ShowGroup{}, nil
	case errors.Is(err, netx.ErrNotFound):
		data = nil
	case err != nil:
		a.log.Error().Err(err).Str("url", a.playLogURL).Msg("play log fetch failed")
		return nil, err
	}
	entries, err := ParsePlayLog(data)
	if err != nil {
		a.log.Error().Err(err).Msg("play log decode failed")
		return nil, err
	}

	groups := a.AggregateRecent(entries)
	if err := a.cache.Set(ctx, recentCacheKey, groups, a.songTTL); err != nil {
		a.log.Warn().Err(err).Msg("song cache write failed")
	}
	a.history.Publish(groups)
	return groups, nil
}

// AggregateRecent resolves, deduplicates and groups raw entries against the
// current schedule. Its output depends only on the entries, the schedule
// snapshot and the clock.
func (a *Aggregator) AggregateRecent(entries []PlayLogEntry) []ShowGroup {
	return aggregate(entries, a.schedule.Snapshot(), a.schedule.Location(), a.now(), a.log)
}

func aggregate(entries []PlayLogEntry, sched Schedule, loc *time.Location, now time.Time, log zerolog.Logger) []ShowGroup {
	kept := make([]ProcessedSong, 0, len(entries))
	for _, e := range entries {
		playedAt, err := util.ParsePlayedAt(e.RawTimestamp, loc)
		if err != nil {
			log.Warn().Str("raw", e.RawTimestamp).Str("title", e.Title).Msg("malformed play time; using now")
			playedAt = now
		}
		if playedAt.After(now) {
			continue
		}
		song := ProcessedSong{
			Title:    strings.TrimSpace(e.Title),
			Artist:   strings.TrimSpace(e.Artist),
			Album:    strings.TrimSpace(e.Album),
			PlayedAt: playedAt.In(loc),
		}
		attachShow(&song, sched)
		if n := len(kept); n > 0 && isRepeat(kept[n-1], song) {
			continue
		}
		kept = append(kept, song)
	}
	return groupSongs(kept)
}

// attachShow labels a song with the slot on air when it played, falling back
// to the nearest earlier archive recording within ArchiveMatchWindow.
func attachShow(song *ProcessedSong, sched Schedule) {
	if occ, ok := resolveIn(sched, song.PlayedAt); ok {
		song.ShowName = occ.Slot.Name
		song.ShowID = occ.Slot.ID
		song.GroupKey = occ.Key()
		return
	}
	var (
		best     time.Time
		bestShow ArchiveShow
	)
	for _, show := range sched.Archives {
		for _, ar := range show.Archives {
			s := ar.StartsAt
			if s.IsZero() || song.PlayedAt.Before(s) || !song.PlayedAt.Before(s.Add(ArchiveMatchWindow)) {
				continue
			}
			if best.IsZero() || s.After(best) {
				best, bestShow = s, show
			}
		}
	}
	if !best.IsZero() {
		song.ShowName = bestShow.Name
		song.ShowID = bestShow.ID
		song.GroupKey = "archive:" + strings.ToLower(bestShow.Name) + "@" + best.Format("2006-01-02T15:04")
		return
	}
	song.ShowName = UnknownShow
	song.GroupKey = "unknown"
}

// isRepeat reports whether cur re-announces prev: same title and artist,
// ignoring case, less than DedupWindow apart.
func isRepeat(prev, cur ProcessedSong) bool {
	if !strings.EqualFold(prev.Title, cur.Title) || !strings.EqualFold(prev.Artist, cur.Artist) {
		return false
	}
	d := cur.PlayedAt.Sub(prev.PlayedAt)
	if d < 0 {
		d = -d
	}
	return d < DedupWindow
}

func groupSongs(songs []ProcessedSong) []ShowGroup {
	index := make(map[string]int)
	groups := make([]ShowGroup, 0)
	for _, s := range songs {
		i, ok := index[s.GroupKey]
		if !ok {
			i = len(groups)
			index[s.GroupKey] = i
			groups = append(groups, ShowGroup{Key: s.GroupKey, ShowName: s.ShowName, ShowID: s.ShowID})
		}
		groups[i].Songs = append(groups[i].Songs, s)
	}
	for i := range groups {
		sortSongsDesc(groups[i].Songs)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Songs[0].PlayedAt, groups[j].Songs[0].PlayedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return groups[i].Key < groups[j].Key
	})
	return groups
}

func sortSongsDesc(songs []ProcessedSong) {
	sort.SliceStable(songs, func(i, j int) bool { return songs[i].PlayedAt.After(songs[j].PlayedAt) })
}

// FetchPlaylist returns the songs logged for one airing of a show.
//
// A missing playlist (404, an error-shaped body, or a cancelled fetch) is an
// empty list. Unreadable song times fall back to now; songs dated in the
// future are dropped.
func (a *Aggregator) FetchPlaylist(ctx context.Context, showName string, date time.Time) ([]ProcessedSong, error) {
	loc := a.schedule.Location()
	day := util.FormatDate(date.In(loc))
	u := strings.TrimRight(a.playlistURL, "/") + "/" + url.PathEscape(strings.TrimSpace(showName)) + "?date=" + url.QueryEscape(day)

	data, err := a.net.Fetch(ctx, u)
	switch {
	case netx.IsAborted(err), errors.Is(err, netx.ErrNotFound):
		return []ProcessedSong{}, nil
	case err != nil:
		a.log.Error().Err(err).Str("show", showName).Str("date", day).Msg("playlist fetch failed")
		return nil, err
	}
	payload, err := ParsePlaylist(data)
	if err != nil {
		a.log.Error().Err(err).Str("show", showName).Str("date", day).Msg("playlist decode failed")
		return nil, err
	}

	name := strings.TrimSpace(payload.ShowName)
	if name == "" {
		name = strings.TrimSpace(showName)
	}
	var showID string
	if slot, ok := a.schedule.Snapshot().FindByName(name); ok {
		showID = slot.ID
		name = slot.Name
	}
	key := showID
	if key == "" {
		key = strings.ToLower(name)
	}
	key += "@" + day

	now := a.now()
	songs := make([]ProcessedSong, 0, len(payload.Songs))
	for _, s := range payload.Songs {
		playedAt, err := util.ParseLogTimestamp(s.Time, loc)
		if err != nil {
			a.log.Warn().Str("raw", s.Time).Str("show", name).Msg("malformed playlist time; using now")
			playedAt = now.In(loc)
		}
		if playedAt.After(now) {
			continue
		}
		songs = append(songs, ProcessedSong{
			Title:    strings.TrimSpace(s.Song),
			Artist:   strings.TrimSpace(s.Artist),
			Album:    strings.TrimSpace(s.Album),
			ShowName: name,
			ShowID:   showID,
			PlayedAt: playedAt,
			GroupKey: key,
		})
	}
	sortSongsDesc(songs)
	return songs, nil
}
