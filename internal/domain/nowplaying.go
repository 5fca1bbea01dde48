package domain

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"onair/internal/notify"
)

const defaultWatchSpec = "@every 1m"

// CurrentShow is what the station is airing right now.
type CurrentShow struct {
	OnAir    bool      `json:"onAir"`
	Show     *ShowSlot `json:"show,omitempty"`
	StartsAt time.Time `json:"startsAt,omitempty"`
	EndsAt   time.Time `json:"endsAt,omitempty"`
	Key      string    `json:"key,omitempty"`
}

func currentFrom(occ Occurrence, ok bool) CurrentShow {
	if !ok {
		return CurrentShow{}
	}
	slot := occ.Slot
	return CurrentShow{OnAir: true, Show: &slot, StartsAt: occ.StartsAt, EndsAt: occ.EndsAt, Key: occ.Key()}
}

// Watcher polls the resolver on a cron schedule and publishes the current
// show whenever it changes. Each tick also gives the song history a chance
// to refresh once its cache has expired.
type Watcher struct {
	schedule scheduleProvider
	resolver *Resolver
	songs    *Aggregator
	topic    *notify.Topic[CurrentShow]
	spec     string
	log      zerolog.Logger
	now      func() time.Time

	// publishMu serializes resolve, compare and publish across callers.
	publishMu sync.Mutex

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewWatcher creates a stopped watcher. An empty spec polls every minute.
func NewWatcher(schedule scheduleProvider, resolver *Resolver, songs *Aggregator, spec string, log zerolog.Logger) *Watcher {
	if spec == "" {
		spec = defaultWatchSpec
	}
	return &Watcher{
		schedule: schedule,
		resolver: resolver,
		songs:    songs,
		topic:    notify.NewTopic(CurrentShow{}),
		spec:     spec,
		log:      log,
		now:      time.Now,
	}
}

// Topic is the "current show changed" topic.
func (w *Watcher) Topic() *notify.Topic[CurrentShow] {
	return w.topic
}

// Start runs one check immediately and then on every tick until Stop or ctx
// is done.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	c := cron.New()
	if _, err := c.AddFunc(w.spec, func() { w.runOnce(runCtx) }); err != nil {
		w.log.Warn().Err(err).Str("spec", w.spec).Msg("invalid watch spec; falling back to " + defaultWatchSpec)
		c = cron.New()
		_, _ = c.AddFunc(defaultWatchSpec, func() { w.runOnce(runCtx) })
	}
	w.Check(runCtx)
	c.Start()
	w.cron = c
}

// Stop halts polling and waits for a running tick to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	c, cancel := w.cron, w.cancel
	w.cron, w.cancel = nil, nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	w.Check(ctx)
	if w.songs == nil {
		return
	}
	if _, err := w.songs.FetchRecentlyPlayed(ctx, false); err != nil {
		w.log.Warn().Err(err).Msg("song history refresh failed")
	}
}

// Check resolves the current show, publishing it if it differs from the last
// one seen, and returns it.
func (w *Watcher) Check(ctx context.Context) CurrentShow {
	if _, err := w.schedule.EnsureFresh(ctx); err != nil {
		w.log.Warn().Err(err).Msg("schedule refresh failed")
	}
	w.publishMu.Lock()
	defer w.publishMu.Unlock()

	cur := currentFrom(w.resolver.ResolveOccurrence(w.now()))
	prev := w.topic.Current()
	if cur.OnAir != prev.OnAir || cur.Key != prev.Key {
		if cur.OnAir {
			w.log.Info().Str("show", cur.Show.Name).Time("starts_at", cur.StartsAt).Msg("now on air")
		} else {
			w.log.Info().Msg("nothing scheduled on air")
		}
		w.topic.Publish(cur)
	}
	return cur
}
