package domain

import (
	"strings"
	"time"

	"onair/internal/util"
)

// WeekdaysSentinel as a slot day means "every weekday, Monday to Friday".
const WeekdaysSentinel = 7

// AlternationCode selects the calendar weeks a time-sharing slot is active.
type AlternationCode int

const (
	// AlternatesWeekly slots air every week.
	AlternatesWeekly AlternationCode = 0
	// AlternatesWeekA and AlternatesWeekB split a slot over a two-week cycle.
	AlternatesWeekA AlternationCode = 1
	AlternatesWeekB AlternationCode = 2
	// AlternatesCycle0..3 pick one week of a rolling four-week cycle.
	AlternatesCycle0 AlternationCode = 5
	AlternatesCycle1 AlternationCode = 6
	AlternatesCycle2 AlternationCode = 7
	AlternatesCycle3 AlternationCode = 8
)

// ActiveIn reports whether a slot with this code airs in the given week of
// the season. Codes outside the known set behave as weekly.
func (c AlternationCode) ActiveIn(weeksSince int) bool {
	switch c {
	case AlternatesWeekA:
		return util.Mod(weeksSince, 2) == 0
	case AlternatesWeekB:
		return util.Mod(weeksSince, 2) == 1
	case AlternatesCycle0, AlternatesCycle1, AlternatesCycle2, AlternatesCycle3:
		return util.Mod(weeksSince, 4) == int(c-AlternatesCycle0)
	default:
		return true
	}
}

// ShowSlot is one scheduled programming slot from the schedule feed.
type ShowSlot struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Day         int             `json:"day"`
	DayLabel    string          `json:"dayLabel,omitempty"`
	Start       int             `json:"start"`
	TimeLabel   string          `json:"timeLabel,omitempty"`
	Length      int             `json:"length"`
	Alternates  AlternationCode `json:"alternates"`
	Hosts       string          `json:"hosts,omitempty"`
	MultiHosts  string          `json:"multiHosts,omitempty"`
	Producers   string          `json:"producers,omitempty"`
	URL         string          `json:"url,omitempty"`
	Email       string          `json:"email,omitempty"`
	Description string          `json:"description,omitempty"`
}

// End is the slot's end in minutes after midnight; above 1440 when the slot
// crosses midnight.
func (s ShowSlot) End() int {
	return s.Start + s.Length
}

// CrossesMidnight reports whether the slot runs into the next calendar day.
func (s ShowSlot) CrossesMidnight() bool {
	return s.End() > util.MinutesPerDay
}

// HasName matches names case-insensitively.
func (s ShowSlot) HasName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(name))
}

// Archive is one recorded episode.
type Archive struct {
	URL      string    `json:"url"`
	Date     string    `json:"date"`
	Size     string    `json:"size,omitempty"`
	StartsAt time.Time `json:"startsAt,omitempty"`
}

// ArchiveShow groups the archived episodes of one show.
type ArchiveShow struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name"`
	Archives []Archive `json:"archives"`
}

// Schedule is an immutable snapshot of the station's weekly grid.
type Schedule struct {
	Slots []ShowSlot `json:"slots"`
	// DayStart is the broadcast-day boundary in minutes. Slots starting
	// earlier than it air on the calendar day after their nominal day.
	DayStart int `json:"dayStart"`
	// SeasonStart is zero until the archive feed has been read.
	SeasonStart time.Time     `json:"seasonStart,omitempty"`
	Archives    []ArchiveShow `json:"archives,omitempty"`
	FetchedAt   time.Time     `json:"fetchedAt"`
}

// Empty reports whether the schedule has never been loaded.
func (s Schedule) Empty() bool {
	return len(s.Slots) == 0 && s.FetchedAt.IsZero()
}

// EffectiveDays lists the calendar weekdays the slot starts on. Weekday
// sentinel slots air Monday to Friday as listed; only day-specific slots
// starting before the broadcast-day boundary move to the following day.
func (s Schedule) EffectiveDays(slot ShowSlot) []time.Weekday {
	if slot.Day == WeekdaysSentinel {
		days := make([]time.Weekday, 0, 5)
		for d := time.Monday; d <= time.Friday; d++ {
			days = append(days, d)
		}
		return days
	}
	shift := 0
	if slot.Start < s.DayStart {
		shift = 1
	}
	return []time.Weekday{time.Weekday(util.Mod(slot.Day+shift, 7))}
}

// StartsOn reports whether slot starts an airing on weekday d.
func (s Schedule) StartsOn(slot ShowSlot, d time.Weekday) bool {
	for _, eff := range s.EffectiveDays(slot) {
		if eff == d {
			return true
		}
	}
	return false
}

// FindByName returns the first slot whose name matches, case-insensitively.
func (s Schedule) FindByName(name string) (ShowSlot, bool) {
	for _, slot := range s.Slots {
		if slot.HasName(name) {
			return slot, true
		}
	}
	return ShowSlot{}, false
}

// ArchivesFor returns the archived episodes of a show, newest first as listed
// by the feed.
func (s Schedule) ArchivesFor(name string) []Archive {
	for _, a := range s.Archives {
		if strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(name)) {
			return a.Archives
		}
	}
	return nil
}

// Occurrence is one concrete airing of a slot.
type Occurrence struct {
	Slot     ShowSlot  `json:"slot"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
}

// Key identifies the airing; songs sharing a key belong to the same show group.
func (o Occurrence) Key() string {
	return o.Slot.ID + "@" + o.StartsAt.Format("2006-01-02T15:04")
}
