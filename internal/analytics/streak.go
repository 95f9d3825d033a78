// Package analytics computes streaks, perfect-day runs and productivity aggregates over a
// habit dataset. Every function is pure: "today" and window anchors are always passed in.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// GapPolicy decides what a calendar day without an entry does to a running streak.
type GapPolicy string

const (
	// GapBreak ends a streak on any missing calendar day.
	GapBreak GapPolicy = "break"
	// GapSkip ignores missing days; only a recorded non-completion ends a streak.
	GapSkip GapPolicy = "skip"
)

// ParseGapPolicy validates a policy name. An empty name selects GapBreak.
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch GapPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", GapBreak:
		return GapBreak, nil
	case GapSkip:
		return GapSkip, nil
	}
	return "", fmt.Errorf("unknown streak gap policy %q (want break or skip)", s)
}

// Record is the streak state of one habit.
type Record struct {
	HabitID        string     `json:"habit_id"`
	CurrentStreak  int        `json:"current_streak"`
	BestStreak     int        `json:"best_streak"`
	CompletedToday bool       `json:"completed_today"`
	LastCompleted  *time.Time `json:"last_completed,omitempty"`
}

// normalize sorts entries by day and keeps the last entry recorded for each day.
func normalize(entries []habit.Entry) []habit.Entry {
	byDay := make(map[string]habit.Entry, len(entries))
	for _, e := range entries {
		e.Date = sheet.Day(e.Date)
		byDay[sheet.DayKey(e.Date)] = e
	}
	out := make([]habit.Entry, 0, len(byDay))
	for _, e := range byDay {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func consecutive(a, b time.Time) bool {
	return a.AddDate(0, 0, 1).Equal(b)
}

// Streak computes the current and best streak of one habit. The current streak counts back from
// the most recent entry; an incomplete entry dated today is not counted against it, since the
// day is still in progress.
func Streak(habitID string, entries []habit.Entry, today time.Time, policy GapPolicy) Record {
	rec := Record{HabitID: habitID}
	days := normalize(entries)
	if len(days) == 0 {
		return rec
	}
	today = sheet.Day(today)

	run := 0
	for i, e := range days {
		if policy == GapBreak && i > 0 && !consecutive(days[i-1].Date, e.Date) {
			run = 0
		}
		if e.Completed {
			run++
			d := e.Date
			rec.LastCompleted = &d
		} else {
			run = 0
		}
		if run > rec.BestStreak {
			rec.BestStreak = run
		}
	}

	last := len(days) - 1
	if days[last].Date.Equal(today) {
		rec.CompletedToday = days[last].Completed
		if !days[last].Completed {
			last--
		}
	}
	for i := last; i >= 0; i-- {
		if !days[i].Completed {
			break
		}
		if policy == GapBreak && i < last && !consecutive(days[i].Date, days[i+1].Date) {
			break
		}
		rec.CurrentStreak++
	}
	return rec
}

// Streaks computes a record for every given habit, in order.
func Streaks(ds *habit.Dataset, defs []habit.Definition, today time.Time, policy GapPolicy) []Record {
	grouped := groupByHabit(ds.Entries)
	out := make([]Record, 0, len(defs))
	for _, d := range defs {
		out = append(out, Streak(d.ID, grouped[d.ID], today, policy))
	}
	return out
}

func groupByHabit(entries []habit.Entry) map[string][]habit.Entry {
	out := map[string][]habit.Entry{}
	for _, e := range entries {
		out[e.HabitID] = append(out[e.HabitID], e)
	}
	return out
}
