package domain

import (
	"context"
	"sync"
	"time"

	"onair/internal/util"
)

// PreviousShow is the slot that aired before another one on the same
// broadcast day.
type PreviousShow struct {
	Slot ShowSlot `json:"slot"`
	Date string   `json:"date"`
}

// FindPreviousShow returns the slot airing just before currentShow today.
//
// currentShow is looked up by name in today's active slots; when no slot
// carries that name, the slot whose window contains the current time stands
// in for it. The search never wraps into the previous day.
func (a *Aggregator) FindPreviousShow(currentShow string) (PreviousShow, bool) {
	now := a.now().In(a.schedule.Location())
	return findPreviousShow(a.schedule.Snapshot(), currentShow, now)
}

func findPreviousShow(sched Schedule, currentShow string, now time.Time) (PreviousShow, bool) {
	day := util.Midnight(now)
	slots := activeToday(sched, GroupByDay(sched)[day.Weekday()], day)

	idx := -1
	for i, slot := range slots {
		if slot.HasName(currentShow) {
			idx = i
			break
		}
	}
	if idx < 0 {
		minute := util.MinutesFromMidnight(now)
		for i, slot := range slots {
			if minute >= slot.Start && minute < slot.End() {
				idx = i
				break
			}
		}
	}
	if idx <= 0 {
		return PreviousShow{}, false
	}
	return PreviousShow{Slot: slots[idx-1], Date: util.FormatDate(day)}, true
}

// PlaylistPage is one show's playlist as returned by a Pager.
type PlaylistPage struct {
	Show  ShowSlot        `json:"show"`
	Date  string          `json:"date"`
	Songs []ProcessedSong `json:"songs"`
}

// Pager walks backwards through the day's shows one playlist at a time.
// Calls are serialized; once the first show of the day has been loaded the
// pager reports ReachedStart and stops fetching.
type Pager struct {
	agg *Aggregator

	mu           sync.Mutex
	current      string
	day          time.Time
	lastStart    int
	started      bool
	reachedStart bool
}

// NewPager starts paging from the show named currentShow.
func (a *Aggregator) NewPager(currentShow string) *Pager {
	return &Pager{
		agg:     a,
		current: currentShow,
		day:     util.Midnight(a.now().In(a.schedule.Location())),
	}
}

// Next loads the playlist of the show before the last one loaded. It returns
// false once there is nothing earlier in the day. A failed fetch leaves the
// pager where it was so the call can be retried.
func (p *Pager) Next(ctx context.Context) (PlaylistPage, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reachedStart {
		return PlaylistPage{}, false, nil
	}

	slot, ok := p.previousLocked()
	if !ok {
		p.reachedStart = true
		return PlaylistPage{}, false, nil
	}
	songs, err := p.agg.FetchPlaylist(ctx, slot.Name, p.day)
	if err != nil {
		return PlaylistPage{}, false, err
	}
	p.started = true
	p.current = slot.Name
	p.lastStart = slot.Start
	return PlaylistPage{Show: slot, Date: util.FormatDate(p.day), Songs: songs}, true, nil
}

// previousLocked finds the first step by name and later steps by start time,
// so a show airing twice in one day cannot send the pager in circles.
func (p *Pager) previousLocked() (ShowSlot, bool) {
	sched := p.agg.schedule.Snapshot()
	if !p.started {
		prev, ok := findPreviousShow(sched, p.current, p.clockLocked())
		return prev.Slot, ok
	}
	slots := activeToday(sched, GroupByDay(sched)[p.day.Weekday()], p.day)
	for i := len(slots) - 1; i >= 0; i-- {
		if slots[i].Start < p.lastStart {
			return slots[i], true
		}
	}
	return ShowSlot{}, false
}

// clockLocked is the aggregator clock pinned to the pager's day.
func (p *Pager) clockLocked() time.Time {
	now := p.agg.now().In(p.agg.schedule.Location())
	if util.Midnight(now).Equal(p.day) {
		return now
	}
	return util.AtMinute(p.day, util.MinutesPerDay-1)
}

// ReachedStart reports whether the pager has run out of earlier shows.
func (p *Pager) ReachedStart() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reachedStart
}
