package analytics

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/habitloom-cli/internal/habit"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// entry builds an entry with completion derived from the default rules.
func entry(id string, kind habit.Kind, date, value string) habit.Entry {
	return habit.Entry{HabitID: id, Date: day(date), Value: value, Completed: habit.IsCompleted(value, kind)}
}

func TestStreakBinaryScenario(t *testing.T) {
	// Mon..Thu
	entries := []habit.Entry{
		entry("read", habit.KindBinary, "2024-03-04", "1"),
		entry("read", habit.KindBinary, "2024-03-05", "1"),
		entry("read", habit.KindBinary, "2024-03-06", "0"),
		entry("read", habit.KindBinary, "2024-03-07", "1"),
	}
	rec := Streak("read", entries, day("2024-03-07"), GapBreak)
	assert.Equal(t, 2, rec.BestStreak)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.True(t, rec.CompletedToday)
	require.NotNil(t, rec.LastCompleted)
	assert.Equal(t, day("2024-03-07"), *rec.LastCompleted)

	rec = Streak("read", entries, day("2024-03-08"), GapBreak)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.False(t, rec.CompletedToday)
}

func TestStreakTimeScenario(t *testing.T) {
	entries := []habit.Entry{
		entry("tech", habit.KindTime, "2024-03-04", "25"),
		entry("tech", habit.KindTime, "2024-03-05", "15"),
		entry("tech", habit.KindTime, "2024-03-06", "30"),
	}
	var completed []bool
	for _, e := range entries {
		completed = append(completed, e.Completed)
	}
	assert.Equal(t, []bool{true, false, true}, completed)

	rec := Streak("tech", entries, day("2024-03-06"), GapBreak)
	assert.Equal(t, 1, rec.BestStreak)
	assert.Equal(t, 1, rec.CurrentStreak)
}

func TestStreakEmpty(t *testing.T) {
	rec := Streak("x", nil, day("2024-03-06"), GapBreak)
	assert.Equal(t, Record{HabitID: "x"}, rec)
}

func TestStreakSkipsIncompleteToday(t *testing.T) {
	entries := []habit.Entry{
		entry("read", habit.KindBinary, "2024-03-04", "1"),
		entry("read", habit.KindBinary, "2024-03-05", "1"),
		entry("read", habit.KindBinary, "2024-03-06", "0"),
	}
	rec := Streak("read", entries, day("2024-03-06"), GapBreak)
	assert.Equal(t, 2, rec.CurrentStreak)
	assert.Equal(t, 2, rec.BestStreak)
	assert.False(t, rec.CompletedToday)

	// the same zero on a past day ends the streak
	rec = Streak("read", entries, day("2024-03-07"), GapBreak)
	assert.Equal(t, 0, rec.CurrentStreak)
}

func TestStreakGapPolicy(t *testing.T) {
	entries := []habit.Entry{
		entry("read", habit.KindBinary, "2024-03-04", "1"),
		entry("read", habit.KindBinary, "2024-03-05", "1"),
		entry("read", habit.KindBinary, "2024-03-07", "1"),
	}
	rec := Streak("read", entries, day("2024-03-07"), GapBreak)
	assert.Equal(t, 2, rec.BestStreak)
	assert.Equal(t, 1, rec.CurrentStreak)

	rec = Streak("read", entries, day("2024-03-07"), GapSkip)
	assert.Equal(t, 3, rec.BestStreak)
	assert.Equal(t, 3, rec.CurrentStreak)
}

func TestStreakDuplicateDayLastWins(t *testing.T) {
	entries := []habit.Entry{
		entry("read", habit.KindBinary, "2024-03-05", "1"),
		entry("read", habit.KindBinary, "2024-03-04", "1"),
		entry("read", habit.KindBinary, "2024-03-05", "0"),
	}
	rec := Streak("read", entries, day("2024-03-10"), GapBreak)
	assert.Equal(t, 1, rec.BestStreak)
	assert.Equal(t, 0, rec.CurrentStreak)
}

// Every history over six days, where each day is missing, incomplete or complete, must keep the
// current streak within the best streak.
func TestStreakCurrentNeverExceedsBest(t *testing.T) {
	const n = 6
	start := day("2024-01-01")
	total := 1
	for i := 0; i < n; i++ {
		total *= 3
	}
	for combo := 0; combo < total; combo++ {
		var entries []habit.Entry
		c := combo
		for i := 0; i < n; i++ {
			switch c % 3 {
			case 1:
				entries = append(entries, habit.Entry{HabitID: "h", Date: start.AddDate(0, 0, i), Value: "0"})
			case 2:
				entries = append(entries, habit.Entry{HabitID: "h", Date: start.AddDate(0, 0, i), Value: "1", Completed: true})
			}
			c /= 3
		}
		for _, policy := range []GapPolicy{GapBreak, GapSkip} {
			for _, today := range []time.Time{start.AddDate(0, 0, n-1), start.AddDate(0, 0, n+3)} {
				rec := Streak("h", entries, today, policy)
				if rec.CurrentStreak > rec.BestStreak {
					t.Fatalf("combo %d policy %s: current %d > best %d", combo, policy, rec.CurrentStreak, rec.BestStreak)
				}
				if rec.CurrentStreak < 0 || rec.BestStreak < 0 {
					t.Fatalf("combo %d: negative streak", combo)
				}
			}
		}
	}
}

func TestParseGapPolicy(t *testing.T) {
	p, err := ParseGapPolicy("")
	require.NoError(t, err)
	assert.Equal(t, GapBreak, p)
	p, err = ParseGapPolicy("SKIP")
	require.NoError(t, err)
	assert.Equal(t, GapSkip, p)
	_, err = ParseGapPolicy("fill")
	assert.Error(t, err)
}

var (
	readDef  = habit.Definition{ID: "read", Header: "Read", DisplayName: "Reading", Kind: habit.KindBinary, Active: true, SortOrder: 0}
	techDef  = habit.Definition{ID: "tech", Header: "Tech", DisplayName: "Tech", Kind: habit.KindTime, Active: true, SortOrder: 1}
	notesDef = habit.Definition{ID: "notes", Header: "Notes", DisplayName: "Notes", Kind: habit.KindDescription, Active: true, SortOrder: 2}
)

func TestLongestPerfectStreak(t *testing.T) {
	defs := []habit.Definition{readDef, techDef, notesDef}
	entries := []habit.Entry{
		entry("read", habit.KindBinary, "2024-03-01", "1"),
		entry("tech", habit.KindTime, "2024-03-01", "30"),
		entry("notes", habit.KindDescription, "2024-03-01", "fine"),
		entry("read", habit.KindBinary, "2024-03-02", "1"),
		entry("tech", habit.KindTime, "2024-03-02", "45"),
		entry("read", habit.KindBinary, "2024-03-03", "0"),
		entry("tech", habit.KindTime, "2024-03-03", "45"),
		entry("read", habit.KindBinary, "2024-03-04", "1"),
		entry("tech", habit.KindTime, "2024-03-04", "25"),
		entry("read", habit.KindBinary, "2024-03-05", "1"),
	}
	assert.Equal(t, 2, LongestPerfectStreak(entries, defs, GapBreak))

	days := PerfectDays(entries, defs)
	require.Len(t, days, 5)
	assert.True(t, days[0].Perfect)
	assert.False(t, days[2].Perfect)
	assert.False(t, days[4].Perfect, "a missing entry is not a completion")
}

func TestLongestPerfectStreakGaps(t *testing.T) {
	defs := []habit.Definition{readDef}
	entries := []habit.Entry{
		entry("read", habit.KindBinary, "2024-03-01", "1"),
		entry("read", habit.KindBinary, "2024-03-02", "1"),
		entry("read", habit.KindBinary, "2024-03-04", "1"),
	}
	assert.Equal(t, 2, LongestPerfectStreak(entries, defs, GapBreak))
	assert.Equal(t, 3, LongestPerfectStreak(entries, defs, GapSkip))
}

func TestLongestPerfectStreakWithoutTrackableHabits(t *testing.T) {
	entries := []habit.Entry{
		entry("notes", habit.KindDescription, "2024-03-01", "fine"),
		entry("notes", habit.KindDescription, "2024-03-02", "ok"),
	}
	assert.Equal(t, 0, LongestPerfectStreak(entries, []habit.Definition{notesDef}, GapBreak))
	assert.Equal(t, 0, LongestPerfectStreak(entries, nil, GapSkip))
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 0.0, PercentChange(0, 0))
	assert.Equal(t, 100.0, PercentChange(10, 0))
	assert.Equal(t, -50.0, PercentChange(5, 10))
	assert.Equal(t, 50.0, PercentChange(15, 10))
}

func chartDataset() *habit.Dataset {
	guitar := habit.Definition{ID: "guitar", Header: "Gitara", DisplayName: "Guitar", Kind: habit.KindTime, Active: true, SortOrder: 3}
	entries := []habit.Entry{
		entry("tech", habit.KindTime, "2024-03-01", "30"),
		entry("guitar", habit.KindTime, "2024-03-01", "15"),
		entry("tech", habit.KindTime, "2024-03-02", "60"),
		// 2024-03-03 has no row at all
		entry("tech", habit.KindTime, "2024-03-04", "0"),
		entry("read", habit.KindBinary, "2024-03-05", "1"),
		entry("tech", habit.KindTime, "2024-03-06", "20"),
		entry("guitar", habit.KindTime, "2024-03-07", "40"),
	}
	return habit.WithDays([]habit.Definition{readDef, techDef, notesDef, guitar}, entries)
}

func TestChartNullDays(t *testing.T) {
	ds := chartDataset()
	data := Chart(ds, ChartOptions{
		Window:     7,
		Anchor:     day("2024-03-07"),
		Categories: []CategoryRule{{Keyword: "guitar", Category: "Music"}},
		Colors:     map[string]string{"Music": "#111111"},
	})
	require.Len(t, data.Days, 7)
	assert.Equal(t, []string{"Tech", "Music"}, data.Categories)
	assert.Equal(t, map[string]string{"Tech": DefaultPalette[0], "Music": "#111111"}, data.Colors)
	assert.Equal(t, "2024-03-07", data.Anchor)

	first := data.Days[0]
	assert.Equal(t, day("2024-03-01"), first.Date)
	require.NotNil(t, first.Total)
	assert.Equal(t, 45.0, *first.Total)
	assert.Equal(t, map[string]float64{"Tech": 30, "Music": 15}, first.Values)

	assert.Nil(t, data.Days[2].Total, "no source row")
	require.NotNil(t, data.Days[3].Total, "explicit zero")
	assert.Equal(t, 0.0, *data.Days[3].Total)
	require.NotNil(t, data.Days[4].Total, "row without time values")
	assert.Equal(t, 0.0, *data.Days[4].Total)
}

func TestChartDefaultsToLatestDay(t *testing.T) {
	data := Chart(chartDataset(), ChartOptions{Window: 3})
	require.Len(t, data.Days, 3)
	assert.Equal(t, day("2024-03-07"), data.Days[2].Date)
	assert.Equal(t, []string{"Tech", "Guitar"}, data.Categories)
}

func TestChartWithoutTimeHabits(t *testing.T) {
	ds := habit.WithDays([]habit.Definition{readDef}, []habit.Entry{entry("read", habit.KindBinary, "2024-03-01", "1")})
	data := Chart(ds, ChartOptions{Window: 7, Anchor: day("2024-03-02")})
	require.Len(t, data.Days, 7)
	assert.Empty(t, data.Categories)
	assert.Equal(t, "2024-03-02", data.Anchor)

	require.NotNil(t, data.Days[5].Total, "day with a row")
	assert.Equal(t, 0.0, *data.Days[5].Total)
	assert.Empty(t, data.Days[5].Values)
	assert.Nil(t, data.Days[6].Total, "day without a row")

	b, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"categories":[]`)
}

func TestChartDayJSON(t *testing.T) {
	total := 45.0
	b, err := json.Marshal(ChartDay{Date: day("2024-03-01"), Values: map[string]float64{"Tech": 45}, Total: &total})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-03-01","day":"Fri","Tech":45,"total":45}`, string(b))

	b, err = json.Marshal(ChartDay{Date: day("2024-03-03")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-03-03","day":"Sun","total":null}`, string(b))
}

func TestComputeKPIs(t *testing.T) {
	entries := []habit.Entry{
		entry("tech", habit.KindTime, "2024-03-01", "30"),
		entry("tech", habit.KindTime, "2024-03-02", "30"),
		entry("tech", habit.KindTime, "2024-03-08", "60"),
		entry("tech", habit.KindTime, "2024-03-09", "120"),
		entry("tech", habit.KindTime, "2024-03-10", "0"),
	}
	ds := habit.WithDays([]habit.Definition{techDef}, entries)
	k := ComputeKPIs(ds, day("2024-03-14"))
	assert.Equal(t, KPIs{
		AvgDaily:         60,
		MaxDaily:         120,
		TotalHours:       3,
		AvgDailyChange:   100,
		MaxDailyChange:   300,
		TotalHoursChange: 200,
		Anchor:           "2024-03-14",
	}, k)

	empty := ComputeKPIs(habit.Empty(), day("2024-03-14"))
	assert.Equal(t, 0.0, empty.AvgDaily)
	assert.Equal(t, 0.0, empty.AvgDailyChange)
}

func TestLatestDate(t *testing.T) {
	now := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, day("2025-01-02"), LatestDate(habit.Empty(), now))
	assert.Equal(t, day("2024-03-07"), LatestDate(chartDataset(), now))
}

func TestDaysSince(t *testing.T) {
	gaming := habit.Definition{ID: "gaming", Header: "Gaming", DisplayName: "Gaming", Kind: habit.KindBinary, Active: true, SortOrder: 5}
	entries := []habit.Entry{
		entry("read", habit.KindBinary, "2024-03-10", "1"),
		entry("read", habit.KindBinary, "2024-03-12", "0"),
		entry("read", habit.KindBinary, "2024-03-20", "1"),
		entry("gaming", habit.KindBinary, "2024-03-11", "0"),
	}
	ds := habit.WithDays([]habit.Definition{readDef, notesDef, gaming}, entries)
	got := DaysSince(ds, day("2024-03-14"))
	require.Len(t, got, 2)
	assert.Equal(t, "read", got[0].HabitID)
	require.NotNil(t, got[0].DaysSinceLast)
	assert.Equal(t, 4, *got[0].DaysSinceLast)
	assert.Equal(t, "2024-03-10", got[0].LastCompleted)
	assert.Nil(t, got[1].DaysSinceLast)
}

func TestSummarize(t *testing.T) {
	entries := []habit.Entry{
		entry("read", habit.KindBinary, "2024-03-01", "1"),
		entry("tech", habit.KindTime, "2024-03-01", "30"),
		entry("read", habit.KindBinary, "2024-03-02", "1"),
		entry("tech", habit.KindTime, "2024-03-02", "5"),
		entry("notes", habit.KindDescription, "2024-03-02", "meh"),
	}
	ds := habit.WithDays([]habit.Definition{readDef, techDef, notesDef}, entries)
	s, records := Summarize(ds, day("2024-03-02"), GapBreak)
	require.Len(t, records, 3)
	assert.Equal(t, Summary{
		TotalHabits:       3,
		ActiveStreaks:     2,
		LongestStreak:     2,
		PerfectDaysStreak: 1,
		CompletedToday:    1,
		CompletionRate:    33.3,
		Anchor:            "2024-03-02",
	}, s)
	for _, r := range records {
		assert.LessOrEqual(t, r.CurrentStreak, r.BestStreak, fmt.Sprint(r.HabitID))
	}
}

func TestSummarizeRateCountsDescriptionHabits(t *testing.T) {
	entries := []habit.Entry{
		entry("read", habit.KindBinary, "2024-03-02", "1"),
		entry("notes", habit.KindDescription, "2024-03-02", "fine"),
	}
	ds := habit.WithDays([]habit.Definition{readDef, notesDef}, entries)
	s, _ := Summarize(ds, day("2024-03-02"), GapBreak)
	assert.Equal(t, 2, s.TotalHabits)
	assert.Equal(t, 1, s.CompletedToday)
	assert.Equal(t, 50.0, s.CompletionRate)

	empty, _ := Summarize(habit.Empty(), day("2024-03-02"), GapBreak)
	assert.Equal(t, 0.0, empty.CompletionRate)
}
