package analytics

import (
	"math"
	"time"

	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// Summary is the headline block of the dashboard.
type Summary struct {
	TotalHabits       int     `json:"total_habits"`
	ActiveStreaks     int     `json:"active_streak_count"`
	LongestStreak     int     `json:"longest_streak"`
	PerfectDaysStreak int     `json:"longest_perfect_day_streak"`
	CompletedToday    int     `json:"completed_today_count"`
	CompletionRate    float64 `json:"completion_rate_percent"`
	Anchor            string  `json:"anchor,omitempty"`
}

// Summarize computes streak records for the active habits and rolls them up. Today is the
// anchor for completed-today and current streaks. The completion rate is taken over all active
// habits, Description habits included.
func Summarize(ds *habit.Dataset, today time.Time, policy GapPolicy) (Summary, []Record) {
	today = sheet.Day(today)
	records := Streaks(ds, ds.Habits, today, policy)
	s := Summary{
		TotalHabits:       len(ds.Habits),
		PerfectDaysStreak: LongestPerfectStreak(ds.Entries, ds.Habits, policy),
		Anchor:            sheet.DayKey(today),
	}
	for _, r := range records {
		if r.CurrentStreak > 0 {
			s.ActiveStreaks++
		}
		if r.BestStreak > s.LongestStreak {
			s.LongestStreak = r.BestStreak
		}
		if r.CompletedToday {
			s.CompletedToday++
		}
	}
	if s.TotalHabits > 0 {
		s.CompletionRate = math.Round(float64(s.CompletedToday)/float64(s.TotalHabits)*1000) / 10
	}
	return s, records
}

// Since reports how long ago a habit was last completed.
type Since struct {
	HabitID       string `json:"habit_id"`
	Name          string `json:"name"`
	Icon          string `json:"emoji"`
	IsPersonal    bool   `json:"is_personal"`
	DaysSinceLast *int   `json:"days_since_last"`
	LastCompleted string `json:"last_completed,omitempty"`
}

// DaysSince returns, per active trackable habit, the days between its last completion on or
// before anchor and anchor. Habits never completed have a nil count.
func DaysSince(ds *habit.Dataset, anchor time.Time) []Since {
	anchor = sheet.Day(anchor)
	grouped := groupByHabit(ds.Entries)
	out := []Since{}
	for _, d := range ds.Habits {
		if !d.Kind.Trackable() {
			continue
		}
		s := Since{HabitID: d.ID, Name: d.DisplayName, Icon: d.Icon, IsPersonal: d.IsPersonal}
		var last time.Time
		for _, e := range grouped[d.ID] {
			day := sheet.Day(e.Date)
			if e.Completed && !day.After(anchor) && day.After(last) {
				last = day
			}
		}
		if !last.IsZero() {
			n := int(anchor.Sub(last).Hours() / 24)
			s.DaysSinceLast = &n
			s.LastCompleted = sheet.DayKey(last)
		}
		out = append(out, s)
	}
	return out
}
