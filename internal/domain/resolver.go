package domain

import (
	"sort"
	"time"

	"onair/internal/util"
)

type scheduleSource interface {
	Snapshot() Schedule
	Location() *time.Location
}

// Resolver maps an instant to the slot that was on air.
type Resolver struct {
	src scheduleSource
}

// NewResolver creates a Resolver reading the store's current snapshot on
// every call.
func NewResolver(src scheduleSource) *Resolver {
	return &Resolver{src: src}
}

// Resolve returns the slot airing at t, or false when nothing was scheduled.
func (r *Resolver) Resolve(t time.Time) (ShowSlot, bool) {
	occ, ok := r.ResolveOccurrence(t)
	return occ.Slot, ok
}

// ResolveOccurrence is Resolve with the concrete airing attached.
func (r *Resolver) ResolveOccurrence(t time.Time) (Occurrence, bool) {
	return resolveIn(r.src.Snapshot(), t.In(r.src.Location()))
}

// resolveIn finds the airing slot in sched at t, where t is already in
// station time.
//
// Slots starting today and slots from yesterday that run past midnight are
// both candidates. Candidates are grouped by the instant their airing began;
// the earliest group wins, and a group of several slots sharing one time is
// settled by their alternation codes against the season calendar.
func resolveIn(sched Schedule, t time.Time) (Occurrence, bool) {
	minute := util.MinutesFromMidnight(t)
	today := util.Midnight(t)
	yesterday := today.AddDate(0, 0, -1)

	var airing []Occurrence
	for _, slot := range sched.Slots {
		if slot.Length <= 0 {
			continue
		}
		if sched.StartsOn(slot, today.Weekday()) && minute >= slot.Start && minute < slot.End() {
			airing = append(airing, occurrenceOn(slot, today))
			continue
		}
		if slot.CrossesMidnight() && sched.StartsOn(slot, yesterday.Weekday()) && minute < slot.End()-util.MinutesPerDay {
			airing = append(airing, occurrenceOn(slot, yesterday))
		}
	}
	if len(airing) == 0 {
		return Occurrence{}, false
	}

	group := earliestGroup(airing)
	if len(group) == 1 || sched.SeasonStart.IsZero() {
		return group[0], true
	}
	for _, occ := range group {
		if occ.Slot.Alternates.ActiveIn(weeksSince(sched.SeasonStart, occ.StartsAt)) {
			return occ, true
		}
	}
	// Configuration gap: no sibling claims this week.
	return group[0], true
}

func occurrenceOn(slot ShowSlot, day time.Time) Occurrence {
	start := util.AtMinute(day, slot.Start)
	return Occurrence{
		Slot:     slot,
		StartsAt: start,
		EndsAt:   start.Add(time.Duration(slot.Length) * time.Minute),
	}
}

// earliestGroup returns the occurrences sharing the earliest start, in
// schedule feed order.
func earliestGroup(occs []Occurrence) []Occurrence {
	sort.SliceStable(occs, func(i, j int) bool { return occs[i].StartsAt.Before(occs[j].StartsAt) })
	end := 1
	for end < len(occs) && occs[end].StartsAt.Equal(occs[0].StartsAt) {
		end++
	}
	return occs[:end]
}

// weeksSince counts whole weeks between the slot's first airing on or after
// the season start and the airing that began at start. Airings before the
// season yield negative weeks.
func weeksSince(season, start time.Time) int {
	season = season.In(start.Location())
	first := util.Midnight(season)
	offset := util.Mod(int(start.Weekday())-int(first.Weekday()), 7)
	first = first.AddDate(0, 0, offset)
	if offset == 0 && util.MinutesFromMidnight(season) > util.MinutesFromMidnight(start) {
		// The season began after this weekday's slot time; the first airing
		// is a week later.
		first = first.AddDate(0, 0, 7)
	}
	return util.FloorDiv(util.DaysBetween(first, start), 7)
}

// activeToday filters a day's slots down to those airing on day, settling
// time-sharing siblings the way resolveIn does.
func activeToday(sched Schedule, slots []ShowSlot, day time.Time) []ShowSlot {
	out := make([]ShowSlot, 0, len(slots))
	for i := 0; i < len(slots); {
		j := i + 1
		for j < len(slots) && slots[j].Start == slots[i].Start {
			j++
		}
		group := slots[i:j]
		pick := group[0]
		if len(group) > 1 && !sched.SeasonStart.IsZero() {
			for _, slot := range group {
				if slot.Alternates.ActiveIn(weeksSince(sched.SeasonStart, util.AtMinute(day, slot.Start))) {
					pick = slot
					break
				}
			}
		}
		out = append(out, pick)
		i = j
	}
	return out
}
