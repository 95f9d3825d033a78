package analytics

import (
	"math"
	"time"

	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// KPIs compares productivity of the 7 days ending at the anchor with the 7 days before.
type KPIs struct {
	AvgDaily         float64 `json:"avg_daily_productivity"`
	MaxDaily         float64 `json:"max_daily_productivity"`
	TotalHours       float64 `json:"total_productive_hours"`
	AvgDailyChange   float64 `json:"avg_daily_productivity_change"`
	MaxDailyChange   float64 `json:"max_daily_productivity_change"`
	TotalHoursChange float64 `json:"total_productive_hours_change"`
	Anchor           string  `json:"anchor,omitempty"`
}

type windowStats struct {
	avg, max, hours float64
}

func statsOf(totals []*float64) windowStats {
	var (
		s    windowStats
		sum  float64
		days int
	)
	for _, t := range totals {
		if t == nil {
			continue
		}
		days++
		sum += *t
		if *t > s.max {
			s.max = *t
		}
	}
	if days > 0 {
		s.avg = sum / float64(days)
	}
	s.hours = sum / 60
	return s
}

// ComputeKPIs derives average and maximum daily minutes and total hours. Averages only count
// days that have a source row.
func ComputeKPIs(ds *habit.Dataset, anchor time.Time) KPIs {
	anchor = sheet.Day(anchor)
	cur := statsOf(dailyTotals(ds, anchor.AddDate(0, 0, -6), 7))
	prev := statsOf(dailyTotals(ds, anchor.AddDate(0, 0, -13), 7))
	return KPIs{
		AvgDaily:         round1(cur.avg),
		MaxDaily:         round1(cur.max),
		TotalHours:       round1(cur.hours),
		AvgDailyChange:   round1(PercentChange(cur.avg, prev.avg)),
		MaxDailyChange:   round1(PercentChange(cur.max, prev.max)),
		TotalHoursChange: round1(PercentChange(cur.hours, prev.hours)),
		Anchor:           sheet.DayKey(anchor),
	}
}

// PercentChange returns the relative change from prev to cur in percent. A change from zero is
// 0 when cur is also zero and 100 otherwise.
func PercentChange(cur, prev float64) float64 {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return 100
	}
	return (cur - prev) / prev * 100
}

// LatestDate is the anchor for windowed analytics: the most recent day present in the data, or
// the day of now when the dataset is empty.
func LatestDate(ds *habit.Dataset, now time.Time) time.Time {
	if d, ok := ds.Latest(); ok {
		return d
	}
	return sheet.Day(now)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
