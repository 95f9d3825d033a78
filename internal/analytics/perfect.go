package analytics

import (
	"sort"
	"time"

	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// PerfectDay reports whether every trackable habit was completed on a day.
type PerfectDay struct {
	Date    time.Time
	Perfect bool
}

// PerfectDays evaluates each day that has at least one entry for the given habits. A day is
// perfect when every trackable habit has a completed entry on it; a missing entry counts as not
// completed. Days are returned ascending. With no trackable habit nothing is perfect.
func PerfectDays(entries []habit.Entry, defs []habit.Definition) []PerfectDay {
	trackable := map[string]struct{}{}
	known := map[string]struct{}{}
	for _, d := range defs {
		known[d.ID] = struct{}{}
		if d.Kind.Trackable() {
			trackable[d.ID] = struct{}{}
		}
	}
	done := map[string]map[string]bool{}
	dates := map[string]time.Time{}
	for _, e := range entries {
		if _, ok := known[e.HabitID]; !ok {
			continue
		}
		d := sheet.Day(e.Date)
		k := sheet.DayKey(d)
		dates[k] = d
		if done[k] == nil {
			done[k] = map[string]bool{}
		}
		done[k][e.HabitID] = e.Completed
	}
	out := make([]PerfectDay, 0, len(dates))
	for k, d := range dates {
		perfect := len(trackable) > 0
		for id := range trackable {
			if !done[k][id] {
				perfect = false
				break
			}
		}
		out = append(out, PerfectDay{Date: d, Perfect: perfect})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// LongestPerfectStreak returns the longest run of consecutive perfect days. Under GapBreak a
// calendar day without any entry ends the run.
func LongestPerfectStreak(entries []habit.Entry, defs []habit.Definition, policy GapPolicy) int {
	days := PerfectDays(entries, defs)
	best, run := 0, 0
	for i, d := range days {
		if policy == GapBreak && i > 0 && !consecutive(days[i-1].Date, d.Date) {
			run = 0
		}
		if !d.Perfect {
			run = 0
			continue
		}
		run++
		if run > best {
			best = run
		}
	}
	return best
}
