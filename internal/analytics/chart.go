package analytics

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// CategoryRule maps habits whose display name contains Keyword (case-insensitive) to Category.
type CategoryRule struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
}

// DefaultPalette colors chart categories that have no configured color, in category order.
var DefaultPalette = []string{
	"#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6", "#ec4899", "#14b8a6", "#f97316",
}

// ChartOptions configures Chart.
type ChartOptions struct {
	// Window is the number of days ending at Anchor. Defaults to 7.
	Window int
	// Anchor is the last day of the window. Zero means the latest day in the data.
	Anchor     time.Time
	Categories []CategoryRule
	Colors     map[string]string
}

// ChartDay is one day of a productivity chart. Total is nil when no source row exists for the
// day and 0 when the row exists but records no time.
type ChartDay struct {
	Date   time.Time
	Values map[string]float64
	Total  *float64
}

// MarshalJSON flattens category values next to the date fields, the shape chart libraries expect.
func (d ChartDay) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Values)+3)
	for k, v := range d.Values {
		m[k] = v
	}
	m["date"] = sheet.DayKey(d.Date)
	m["day"] = d.Date.Weekday().String()[:3]
	m["total"] = d.Total
	return json.Marshal(m)
}

// ChartData is a windowed productivity series of Time habits grouped by category.
type ChartData struct {
	Days       []ChartDay        `json:"chart_data"`
	Categories []string          `json:"categories"`
	Colors     map[string]string `json:"category_colors"`
	Window     int               `json:"window"`
	Anchor     string            `json:"anchor,omitempty"`
}

// CategoryOf returns the chart category of a habit name: the first matching rule, else the name.
func CategoryOf(name string, rules []CategoryRule) string {
	lower := strings.ToLower(name)
	for _, r := range rules {
		if r.Keyword != "" && strings.Contains(lower, strings.ToLower(r.Keyword)) {
			return r.Category
		}
	}
	return name
}

// Chart sums the minutes of active Time habits per category for each day of the window. The
// series always covers the whole window, even when no Time habit exists.
func Chart(ds *habit.Dataset, opt ChartOptions) ChartData {
	window := opt.Window
	if window <= 0 {
		window = 7
	}
	out := ChartData{Days: []ChartDay{}, Categories: []string{}, Colors: map[string]string{}, Window: window}

	var timed []habit.Definition
	for _, d := range ds.Habits {
		if d.Kind == habit.KindTime {
			timed = append(timed, d)
		}
	}
	anchor := opt.Anchor
	if anchor.IsZero() {
		anchor = LatestDate(ds, time.Now())
	}
	anchor = sheet.Day(anchor)
	out.Anchor = sheet.DayKey(anchor)

	category := make(map[string]string, len(timed))
	for _, d := range timed {
		c := CategoryOf(d.DisplayName, opt.Categories)
		category[d.ID] = c
		if _, ok := out.Colors[c]; ok {
			continue
		}
		color := colorFor(opt.Colors, c)
		if color == "" {
			color = d.Color
		}
		if color == "" {
			color = DefaultPalette[len(out.Categories)%len(DefaultPalette)]
		}
		out.Categories = append(out.Categories, c)
		out.Colors[c] = color
	}

	minutes := minutesByDay(ds, category)
	for i := window - 1; i >= 0; i-- {
		day := anchor.AddDate(0, 0, -i)
		cd := ChartDay{Date: day}
		if ds.HasDay(day) {
			cd.Values = make(map[string]float64, len(out.Categories))
			for _, c := range out.Categories {
				cd.Values[c] = 0
			}
			total := 0.0
			for _, d := range timed {
				m := minutes[d.ID][sheet.DayKey(day)]
				cd.Values[category[d.ID]] += m
				total += m
			}
			cd.Total = &total
		}
		out.Days = append(out.Days, cd)
	}
	return out
}

// colorFor looks a category up case-insensitively; config loaders may lowercase map keys.
func colorFor(colors map[string]string, category string) string {
	if c, ok := colors[category]; ok {
		return c
	}
	for k, c := range colors {
		if strings.EqualFold(k, category) {
			return c
		}
	}
	return ""
}

// minutesByDay indexes the numeric values of the given habits by habit id and day key. Later
// entries for the same day replace earlier ones.
func minutesByDay(ds *habit.Dataset, habits map[string]string) map[string]map[string]float64 {
	out := map[string]map[string]float64{}
	for _, e := range ds.Entries {
		if _, ok := habits[e.HabitID]; !ok {
			continue
		}
		m, ok := ds.Minutes(e)
		if !ok {
			continue
		}
		if out[e.HabitID] == nil {
			out[e.HabitID] = map[string]float64{}
		}
		out[e.HabitID][sheet.DayKey(e.Date)] = m
	}
	return out
}

// dailyTotals returns the summed Time minutes for n days starting at from. A day without a
// source row is nil.
func dailyTotals(ds *habit.Dataset, from time.Time, n int) []*float64 {
	timed := map[string]string{}
	for _, d := range ds.Habits {
		if d.Kind == habit.KindTime {
			timed[d.ID] = d.DisplayName
		}
	}
	minutes := minutesByDay(ds, timed)
	out := make([]*float64, n)
	for i := 0; i < n; i++ {
		day := from.AddDate(0, 0, i)
		if !ds.HasDay(day) {
			continue
		}
		total := 0.0
		for id := range timed {
			total += minutes[id][sheet.DayKey(day)]
		}
		out[i] = &total
	}
	return out
}
