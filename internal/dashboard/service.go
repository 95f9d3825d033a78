// Package dashboard is the presentation facade: it loads sources and overrides, runs the
// inference and analytics engines and returns payloads for the HTTP API and the CLI.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/habitloom-cli/internal/analytics"
	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/overrides"
	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// Options configures a Service.
type Options struct {
	Rules         habit.Rules
	SystemColumns []string
	GapPolicy     analytics.GapPolicy
	Categories    []analytics.CategoryRule
	Colors        map[string]string
	// Timeout bounds each call. Zero means 30 seconds.
	Timeout time.Duration
}

// Service answers dashboard queries. Every call re-reads the sources; nothing is cached.
type Service struct {
	source sheet.Source
	store  overrides.Store
	opt    Options
	log    *zap.Logger
	now    func() time.Time
}

// New builds a Service. A nil logger discards logs.
func New(source sheet.Source, store overrides.Store, opt Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 30 * time.Second
	}
	if opt.GapPolicy == "" {
		opt.GapPolicy = analytics.GapBreak
	}
	return &Service{source: source, store: store, opt: opt, log: log, now: time.Now}
}

// SetClock replaces the wall clock used for "today".
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Today returns the current calendar day.
func (s *Service) Today() time.Time { return sheet.Day(s.now()) }

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opt.Timeout)
}

// Load reads the sources and overrides and builds the dataset. Missing sources yield an empty
// dataset. Overrides for habits seen for the first time are persisted; failing to persist them
// is logged and does not fail the read.
func (s *Service) Load(ctx context.Context) (*habit.Dataset, error) {
	tables, err := s.source.Load(ctx)
	if err != nil {
		if errors.Is(err, sheet.ErrNoSource) {
			s.log.Info("no habit source found")
			return habit.Empty(), nil
		}
		return habit.Empty(), fmt.Errorf("load sources: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return habit.Empty(), err
	}

	saved, err := s.store.Load(ctx)
	storeOK := err == nil
	if err != nil {
		s.log.Warn("override store unavailable, using defaults", zap.Error(err))
		saved = map[string]habit.Override{}
	}

	ds := habit.Build(tables, saved, habit.BuildOptions{Rules: s.opt.Rules, SystemColumns: s.opt.SystemColumns})
	for _, w := range ds.Warnings {
		s.log.Warn("source warning", zap.String("detail", w))
	}
	if err := ctx.Err(); err != nil {
		return habit.Empty(), err
	}

	if len(ds.Created) > 0 && storeOK {
		if err := s.store.Save(ctx, overrides.Merge(saved, ds.Created)); err != nil {
			s.log.Warn("could not persist new habit overrides", zap.Int("habits", len(ds.Created)), zap.Error(err))
		} else {
			s.log.Info("registered new habits", zap.Int("habits", len(ds.Created)))
		}
	}
	s.log.Debug("dataset built",
		zap.Strings("sources", ds.Sources),
		zap.Int("habits", len(ds.Habits)),
		zap.Int("entries", len(ds.Entries)))
	return ds, nil
}

// HabitView is a habit with its streak state, as listed on the dashboard.
type HabitView struct {
	habit.Definition
	analytics.Record
}

// ListHabits returns the active habits in display order with their streaks. With
// includeInactive, hidden habits are listed too.
func (s *Service) ListHabits(ctx context.Context, includeInactive bool) ([]HabitView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ds, err := s.Load(ctx)
	if err != nil {
		return []HabitView{}, err
	}
	defs := ds.Habits
	if includeInactive {
		defs = ds.All
	}
	records := analytics.Streaks(ds, defs, s.Today(), s.opt.GapPolicy)
	out := make([]HabitView, 0, len(defs))
	for i, d := range defs {
		out = append(out, HabitView{Definition: d, Record: records[i]})
	}
	return out, nil
}

// Summary returns the headline numbers for today.
func (s *Service) Summary(ctx context.Context) (analytics.Summary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ds, err := s.Load(ctx)
	if err != nil {
		return analytics.Summary{}, err
	}
	sum, _ := analytics.Summarize(ds, s.Today(), s.opt.GapPolicy)
	return sum, nil
}

func (s *Service) anchor(ds *habit.Dataset, anchor time.Time) time.Time {
	if !anchor.IsZero() {
		return sheet.Day(anchor)
	}
	return analytics.LatestDate(ds, s.now())
}

// Chart returns the productivity series of window days ending at anchor. A zero anchor means
// the latest day in the data.
func (s *Service) Chart(ctx context.Context, window int, anchor time.Time) (analytics.ChartData, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ds, err := s.Load(ctx)
	if err != nil {
		return analytics.Chart(habit.Empty(), analytics.ChartOptions{Window: window}), err
	}
	return analytics.Chart(ds, analytics.ChartOptions{
		Window:     window,
		Anchor:     s.anchor(ds, anchor),
		Categories: s.opt.Categories,
		Colors:     s.opt.Colors,
	}), nil
}

// KPIs returns week-over-week productivity metrics.
func (s *Service) KPIs(ctx context.Context, anchor time.Time) (analytics.KPIs, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ds, err := s.Load(ctx)
	if err != nil {
		return analytics.KPIs{}, err
	}
	return analytics.ComputeKPIs(ds, s.anchor(ds, anchor)), nil
}

// DaysSince reports days since each trackable habit was last completed.
func (s *Service) DaysSince(ctx context.Context, anchor time.Time) ([]analytics.Since, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ds, err := s.Load(ctx)
	if err != nil {
		return []analytics.Since{}, err
	}
	return analytics.DaysSince(ds, s.anchor(ds, anchor)), nil
}

// UpdateHabit applies a patch to a habit's override and persists it.
func (s *Service) UpdateHabit(ctx context.Context, id string, p habit.Patch) (habit.Definition, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ds, err := s.Load(ctx)
	if err != nil {
		return habit.Definition{}, err
	}
	def, ok := ds.Find(id)
	if !ok {
		return habit.Definition{}, fmt.Errorf("%w: %s", habit.ErrNotFound, id)
	}
	saved, err := s.store.Load(ctx)
	if err != nil {
		return habit.Definition{}, err
	}
	cur, ok := saved[id]
	if !ok {
		cur = def.Override()
	}
	next := cur.Apply(p)
	all := overrides.Merge(saved, map[string]habit.Override{id: next})
	if err := s.store.Save(ctx, all); err != nil {
		return habit.Definition{}, err
	}
	s.log.Info("habit updated", zap.String("id", id), zap.String("name", next.DisplayName), zap.Bool("active", next.Active))

	updated, _ := habit.Resolve(habit.Column{Header: def.Header, Kind: def.Kind}, all)
	return updated, nil
}

// DeleteHabit hides a habit. Its entries stay in the sources.
func (s *Service) DeleteHabit(ctx context.Context, id string) (habit.Definition, error) {
	off := false
	return s.UpdateHabit(ctx, id, habit.Patch{Active: &off})
}

// RestoreHabit shows a hidden habit again.
func (s *Service) RestoreHabit(ctx context.Context, id string) (habit.Definition, error) {
	on := true
	return s.UpdateHabit(ctx, id, habit.Patch{Active: &on})
}

// RefreshResult summarizes a forced re-parse.
type RefreshResult struct {
	Sources  []string `json:"sources"`
	Habits   int      `json:"habits"`
	Hidden   int      `json:"hidden"`
	Days     int      `json:"days"`
	Entries  int      `json:"entries"`
	Created  int      `json:"new_habits"`
	Skipped  int      `json:"skipped_rows"`
	Warnings []string `json:"warnings"`
}

// Refresh re-reads the sources, registers new habits and reports what was found.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ds, err := s.Load(ctx)
	if err != nil {
		return RefreshResult{Warnings: []string{}}, err
	}
	res := RefreshResult{
		Sources:  ds.Sources,
		Habits:   len(ds.Habits),
		Hidden:   len(ds.All) - len(ds.Habits),
		Days:     len(ds.Days()),
		Entries:  len(ds.Entries),
		Created:  len(ds.Created),
		Skipped:  ds.Skipped,
		Warnings: ds.Warnings,
	}
	if res.Sources == nil {
		res.Sources = []string{}
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	return res, nil
}
