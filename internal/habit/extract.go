package habit

import (
	"sort"
	"time"

	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// Extract produces one entry per non-null cell of every given habit. Entries are grouped by
// habit in definition order and follow row order within a habit.
func Extract(t *sheet.Table, defs []Definition, rules Rules) []Entry {
	rules = rules.withDefaults()
	var out []Entry
	for _, d := range defs {
		for _, row := range t.Rows {
			v := row.Value(d.Header)
			if sheet.IsNull(v) {
				continue
			}
			out = append(out, Entry{
				HabitID:   d.ID,
				Date:      sheet.Day(row.Date),
				Value:     v,
				Completed: rules.IsCompleted(v, d.Kind),
			})
		}
	}
	return out
}


// Dataset is everything the analytics engines need from one load of the sources.
type Dataset struct {
	// Habits are the active habits in display order.
	Habits []Definition
	// All includes deactivated habits.
	All     []Definition
	Entries []Entry
	// Created are default overrides for habits seen for the first time.
	Created  map[string]Override
	Warnings []string
	Skipped  int
	// Sources names the tables the dataset was built from.
	Sources []string

	rules Rules
	days  map[string]time.Time
}

// Minutes returns the numeric value of an entry, read with the separators the dataset was
// built with.
func (ds *Dataset) Minutes(e Entry) (float64, bool) {
	return ds.rules.Number(e.Value)
}

// BuildOptions configures Build.
type BuildOptions struct {
	Rules         Rules
	SystemColumns []string
}

// Build merges the tables, classifies and reconciles their columns against saved overrides and
// extracts entries for every known habit.
func Build(tables []*sheet.Table, saved map[string]Override, opt BuildOptions) *Dataset {
	rules := opt.Rules.withDefaults()
	system := opt.SystemColumns
	if system == nil {
		system = DefaultSystemColumns
	}
	merged := sheet.Merge(tables...)
	cols, warnings := Columns(merged, rules, system)
	rec := Reconcile(cols, saved)
	ds := &Dataset{
		Habits:   rec.Active,
		All:      rec.All,
		Created:  rec.Created,
		Warnings: append(append(append([]string{}, merged.Warnings...), warnings...), rec.Warnings...),
		Skipped:  merged.Skipped,
		Entries:  Extract(merged, rec.All, rules),
		rules:    rules,
		days:     map[string]time.Time{},
	}
	for _, t := range tables {
		if t != nil {
			ds.Sources = append(ds.Sources, t.Name)
		}
	}
	for _, row := range merged.Rows {
		d := sheet.Day(row.Date)
		ds.days[sheet.DayKey(d)] = d
	}
	return ds
}

// Empty returns a dataset with no habits and no days.
func Empty() *Dataset {
	return &Dataset{Created: map[string]Override{}, days: map[string]time.Time{}}
}

// HasDay reports whether any source row exists for the day.
func (ds *Dataset) HasDay(t time.Time) bool {
	_, ok := ds.days[sheet.DayKey(t)]
	return ok
}

// Days returns every day with a source row, ascending.
func (ds *Dataset) Days() []time.Time {
	out := make([]time.Time, 0, len(ds.days))
	for _, d := range ds.days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Latest returns the most recent day with a source row.
func (ds *Dataset) Latest() (time.Time, bool) {
	var latest time.Time
	for _, d := range ds.days {
		if d.After(latest) {
			latest = d
		}
	}
	return latest, !latest.IsZero()
}

// EntriesFor returns the entries of one habit in source order.
func (ds *Dataset) EntriesFor(id string) []Entry {
	var out []Entry
	for _, e := range ds.Entries {
		if e.HabitID == id {
			out = append(out, e)
		}
	}
	return out
}

// Find looks up a habit, active or not, by id.
func (ds *Dataset) Find(id string) (Definition, bool) {
	for _, d := range ds.All {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// WithDays returns a dataset over the given habits and entries whose row days are the entry
// dates. It is meant for callers that assemble entries without a source table.
func WithDays(defs []Definition, entries []Entry) *Dataset {
	ds := Empty()
	ds.All = append(ds.All, defs...)
	SortDefinitions(ds.All)
	for _, d := range ds.All {
		if d.Active {
			ds.Habits = append(ds.Habits, d)
		}
	}
	ds.Entries = entries
	for _, e := range entries {
		d := sheet.Day(e.Date)
		ds.days[sheet.DayKey(d)] = d
	}
	return ds
}
