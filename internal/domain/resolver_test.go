package domain

import (
	"testing"
	"time"
)

func TestResolveMidnightCrossing(t *testing.T) {
	// Monday 23:30 for two hours.
	late := slot("late", "Late Night", 1, 1410, 120, AlternatesWeekly)
	r := NewResolver(newStatic(Schedule{Slots: []ShowSlot{late}}))

	for _, tc := range []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before start", at(2025, time.September, 22, 23, 29), false},
		{"start", at(2025, time.September, 22, 23, 30), true},
		{"after midnight", at(2025, time.September, 23, 0, 30), true},
		{"last minute", at(2025, time.September, 23, 1, 29), true},
		{"end is exclusive", at(2025, time.September, 23, 1, 30), false},
		{"next night is not monday", at(2025, time.September, 24, 0, 30), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			occ, ok := r.ResolveOccurrence(tc.at)
			if ok != tc.want {
				t.Fatalf("want ok=%v, got %v (%+v)", tc.want, ok, occ)
			}
			if ok && !occ.StartsAt.Equal(at(2025, time.September, 22, 23, 30)) {
				t.Fatalf("unexpected occurrence start: %v", occ.StartsAt)
			}
		})
	}
}

func TestResolveAlternationTwoWeekCycle(t *testing.T) {
	sched := Schedule{
		Slots: []ShowSlot{
			slot("a", "Week A", 1, 360, 120, AlternatesWeekA),
			slot("b", "Week B", 1, 360, 120, AlternatesWeekB),
		},
		SeasonStart: at(2025, time.September, 22, 0, 0),
	}
	r := NewResolver(newStatic(sched))

	cases := map[time.Time]string{
		at(2025, time.September, 22, 6, 30): "a",
		at(2025, time.September, 29, 6, 30): "b",
		at(2025, time.October, 6, 6, 30):    "a",
		// A week before the season counts as week -1.
		at(2025, time.September, 15, 6, 30): "b",
	}
	for when, want := range cases {
		got, ok := r.Resolve(when)
		if !ok || got.ID != want {
			t.Fatalf("%v: want %s, got %+v (ok=%v)", when, want, got, ok)
		}
	}
}

func TestResolveAlternationFourWeekCycle(t *testing.T) {
	sched := Schedule{
		Slots: []ShowSlot{
			slot("w0", "Cycle 0", 1, 360, 60, AlternatesCycle0),
			slot("w1", "Cycle 1", 1, 360, 60, AlternatesCycle1),
			slot("w2", "Cycle 2", 1, 360, 60, AlternatesCycle2),
			slot("w3", "Cycle 3", 1, 360, 60, AlternatesCycle3),
		},
		SeasonStart: at(2025, time.September, 22, 0, 0),
	}
	r := NewResolver(newStatic(sched))

	want := []string{"w0", "w1", "w2", "w3", "w0"}
	for week, id := range want {
		when := at(2025, time.September, 22, 6, 15).AddDate(0, 0, 7*week)
		got, ok := r.Resolve(when)
		if !ok || got.ID != id {
			t.Fatalf("week %d: want %s, got %+v", week, id, got)
		}
	}
}

func TestResolveSeasonStartingMidweek(t *testing.T) {
	// Season starts on a Wednesday; the first Monday airing is 2025-09-29.
	sched := Schedule{
		Slots: []ShowSlot{
			slot("a", "Week A", 1, 360, 120, AlternatesWeekA),
			slot("b", "Week B", 1, 360, 120, AlternatesWeekB),
		},
		SeasonStart: at(2025, time.September, 24, 0, 0),
	}
	r := NewResolver(newStatic(sched))
	if got, _ := r.Resolve(at(2025, time.September, 29, 7, 0)); got.ID != "a" {
		t.Fatalf("first airing after season start must be week 0, got %s", got.ID)
	}
	if got, _ := r.Resolve(at(2025, time.October, 6, 7, 0)); got.ID != "b" {
		t.Fatalf("second airing must be week 1, got %s", got.ID)
	}
}

func TestResolveDegradedWithoutSeasonStart(t *testing.T) {
	sched := Schedule{
		Slots: []ShowSlot{
			slot("a", "Week A", 1, 360, 120, AlternatesWeekA),
			slot("b", "Week B", 1, 360, 120, AlternatesWeekB),
		},
	}
	r := NewResolver(newStatic(sched))
	for _, when := range []time.Time{at(2025, time.September, 22, 6, 30), at(2025, time.September, 29, 6, 30)} {
		got, ok := r.Resolve(when)
		if !ok || got.ID != "a" {
			t.Fatalf("%v: want first candidate a, got %+v", when, got)
		}
	}
}

func TestResolveConfigurationGapFallsBackToFirst(t *testing.T) {
	sched := Schedule{
		Slots: []ShowSlot{
			slot("x", "Only Even", 1, 360, 60, AlternatesWeekA),
			slot("y", "Also Even", 1, 360, 60, AlternatesWeekA),
		},
		SeasonStart: at(2025, time.September, 22, 0, 0),
	}
	r := NewResolver(newStatic(sched))
	got, ok := r.Resolve(at(2025, time.September, 29, 6, 30))
	if !ok || got.ID != "x" {
		t.Fatalf("want x, got %+v", got)
	}
}

func TestResolveEarliestStartWins(t *testing.T) {
	// The long block started earlier than the short one nested inside it.
	sched := Schedule{Slots: []ShowSlot{
		slot("inner", "Inner", 2, 600, 30, AlternatesWeekly),
		slot("block", "Block", 2, 540, 180, AlternatesWeekly),
	}}
	r := NewResolver(newStatic(sched))
	got, ok := r.Resolve(at(2025, time.September, 23, 10, 10))
	if !ok || got.ID != "block" {
		t.Fatalf("want block, got %+v", got)
	}
}

func TestResolveWeekdaySentinelAndDayStart(t *testing.T) {
	sched := Schedule{
		DayStart: 360,
		Slots: []ShowSlot{
			slot("morning", "Morning", WeekdaysSentinel, 420, 60, AlternatesWeekly),
			slot("overnight", "Overnight", WeekdaysSentinel, 120, 60, AlternatesWeekly),
			// A day-specific 02:00 slot airs on the following calendar day.
			slot("late", "Late Friday", int(time.Friday), 180, 60, AlternatesWeekly),
		},
	}
	r := NewResolver(newStatic(sched))

	if got, ok := r.Resolve(at(2025, time.September, 24, 7, 30)); !ok || got.ID != "morning" {
		t.Fatalf("wednesday morning: got %+v ok=%v", got, ok)
	}
	if _, ok := r.Resolve(at(2025, time.September, 27, 7, 30)); ok {
		t.Fatal("saturday morning must be empty")
	}
	if got, ok := r.Resolve(at(2025, time.September, 22, 2, 30)); !ok || got.ID != "overnight" {
		t.Fatalf("monday 02:30: got %+v ok=%v", got, ok)
	}
	if got, ok := r.Resolve(at(2025, time.September, 26, 2, 30)); !ok || got.ID != "overnight" {
		t.Fatalf("friday 02:30: got %+v ok=%v", got, ok)
	}
	if _, ok := r.Resolve(at(2025, time.September, 27, 2, 30)); ok {
		t.Fatal("weekday slots never spill into saturday")
	}
	if got, ok := r.Resolve(at(2025, time.September, 27, 3, 30)); !ok || got.ID != "late" {
		t.Fatalf("friday's 03:00 slot airs saturday: got %+v ok=%v", got, ok)
	}
	if _, ok := r.Resolve(at(2025, time.September, 26, 3, 30)); ok {
		t.Fatal("friday's 03:00 slot does not air on friday itself")
	}
}

func TestResolveTotality(t *testing.T) {
	sched := Schedule{
		DayStart: 300,
		Slots: []ShowSlot{
			slot("1", "One", 0, 0, 90, AlternatesWeekly),
			slot("2", "Two", 3, 1380, 180, AlternatesWeekA),
			slot("3", "Three", 3, 1380, 180, AlternatesWeekB),
			slot("4", "Four", WeekdaysSentinel, 240, 45, AlternatesCycle2),
			slot("5", "Zero", 5, 600, 0, AlternatesWeekly),
			slot("6", "Unknown code", 6, 720, 60, AlternationCode(42)),
		},
		SeasonStart: at(2025, time.September, 22, 0, 0),
	}
	r := NewResolver(newStatic(sched))

	start := at(2025, time.September, 20, 0, 0)
	for i := 0; i < 14*24*4; i++ {
		when := start.Add(time.Duration(i) * 15 * time.Minute)
		occ, ok := r.ResolveOccurrence(when)
		if !ok {
			continue
		}
		if when.Before(occ.StartsAt) || !when.Before(occ.EndsAt) {
			t.Fatalf("%v resolved to %+v outside its window", when, occ)
		}
		if occ.Slot.ID == "5" {
			t.Fatal("zero-length slot must never resolve")
		}
	}
}

func TestResolveUsesStationTime(t *testing.T) {
	sched := Schedule{Slots: []ShowSlot{slot("k", "Africa Kabisa", 0, 960, 120, AlternatesWeekly)}}
	r := NewResolver(newStatic(sched))
	// 20:10 UTC is 16:10 EDT.
	got, ok := r.Resolve(time.Date(2025, time.September, 28, 20, 10, 0, 0, time.UTC))
	if !ok || got.Name != "Africa Kabisa" {
		t.Fatalf("want Africa Kabisa, got %+v", got)
	}
}

func TestActiveIn(t *testing.T) {
	cases := []struct {
		code  AlternationCode
		weeks int
		want  bool
	}{
		{AlternatesWeekly, 3, true},
		{AlternatesWeekA, 0, true},
		{AlternatesWeekA, 1, false},
		{AlternatesWeekB, -1, true},
		{AlternatesCycle0, 4, true},
		{AlternatesCycle3, -1, true},
		{AlternatesCycle1, 2, false},
		{AlternationCode(3), 1, true},
	}
	for _, tc := range cases {
		if got := tc.code.ActiveIn(tc.weeks); got != tc.want {
			t.Fatalf("code %d week %d: want %v, got %v", tc.code, tc.weeks, tc.want, got)
		}
	}
}
