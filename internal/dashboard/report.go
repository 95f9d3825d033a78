package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/habitloom-cli/internal/analytics"
	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// Report renders a plain-text markdown digest of the dashboard.
func (s *Service) Report(ctx context.Context, anchor time.Time) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ds, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	at := s.anchor(ds, anchor)
	today := s.Today()
	sum, records := analytics.Summarize(ds, today, s.opt.GapPolicy)
	kpis := analytics.ComputeKPIs(ds, at)
	since := analytics.DaysSince(ds, at)
	return renderReport(ds, sum, records, kpis, since, at), nil
}

func renderReport(ds *habit.Dataset, sum analytics.Summary, records []analytics.Record, k analytics.KPIs, since []analytics.Since, at time.Time) string {
	var b strings.Builder
	b.WriteString("[HABIT SUMMARY]\n")
	if len(ds.Sources) > 0 {
		b.WriteString(fmt.Sprintf("Sources: %s\n", strings.Join(ds.Sources, ", ")))
	}
	days := ds.Days()
	if len(days) > 0 {
		b.WriteString(fmt.Sprintf("Days: %d (%s .. %s)\n", len(days), sheet.DayKey(days[0]), sheet.DayKey(days[len(days)-1])))
	} else {
		b.WriteString("Days: 0\n")
	}
	hidden := len(ds.All) - len(ds.Habits)
	if hidden > 0 {
		b.WriteString(fmt.Sprintf("Habits: %d active, %d hidden\n", len(ds.Habits), hidden))
	} else {
		b.WriteString(fmt.Sprintf("Habits: %d\n", len(ds.Habits)))
	}
	b.WriteString(fmt.Sprintf("Completed today: %d (%.1f%%)\n", sum.CompletedToday, sum.CompletionRate))
	b.WriteString(fmt.Sprintf("Active streaks: %d, longest streak: %d, longest perfect-day run: %d\n\n",
		sum.ActiveStreaks, sum.LongestStreak, sum.PerfectDaysStreak))

	b.WriteString("[HABITS]\n")
	if len(ds.Habits) == 0 {
		b.WriteString("- none\n")
	}
	for i, d := range ds.Habits {
		r := records[i]
		b.WriteString(fmt.Sprintf("- %s %s: %s", d.Icon, safeName(d.DisplayName), d.Kind))
		if d.IsPersonal {
			b.WriteString(" (personal)")
		}
		if d.Kind.Trackable() {
			b.WriteString(fmt.Sprintf(" | current %d, best %d", r.CurrentStreak, r.BestStreak))
			if r.LastCompleted != nil {
				b.WriteString(fmt.Sprintf(", last done %s", sheet.DayKey(*r.LastCompleted)))
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("[PRODUCTIVITY] 7 days ending %s\n", sheet.DayKey(at)))
	b.WriteString(fmt.Sprintf("- avg daily: %.1f min (%s)\n", k.AvgDaily, signed(k.AvgDailyChange)))
	b.WriteString(fmt.Sprintf("- best day: %.1f min (%s)\n", k.MaxDaily, signed(k.MaxDailyChange)))
	b.WriteString(fmt.Sprintf("- total: %.1f h (%s)\n", k.TotalHours, signed(k.TotalHoursChange)))

	var stale []string
	for _, s := range since {
		if s.DaysSinceLast != nil && *s.DaysSinceLast >= 3 {
			stale = append(stale, fmt.Sprintf("%s (%dd)", safeName(s.Name), *s.DaysSinceLast))
		}
	}
	if len(stale) > 0 {
		b.WriteString(fmt.Sprintf("\n[NEEDS ATTENTION]\n- %s\n", strings.Join(stale, ", ")))
	}
	if len(ds.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range ds.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

func signed(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.1f%%", pct)
	}
	return fmt.Sprintf("%.1f%%", pct)
}

// safeName keeps names on one line.
func safeName(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
