package habit

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// identityNamespace scopes habit ids; changing it would orphan every saved override.
var identityNamespace = uuid.MustParse("6f1c2a7e-3b5d-4c8e-9a0f-2d4b6e8a1c3f")

// DefaultIcon is used when no keyword matches a habit name.
const DefaultIcon = "📝"

// DefaultSystemColumns are bookkeeping columns that never describe a habit.
var DefaultSystemColumns = []string{"Data", "Date", "WEEKDAY", "Weekday", "Razem", "Total"}

// IdentityOf derives the stable id of a habit column from its raw header. Only surrounding
// whitespace is ignored; any other edit to the header yields a new identity.
func IdentityOf(header string) string {
	return uuid.NewSHA1(identityNamespace, []byte(strings.TrimSpace(header))).String()
}

const lockGlyph = "🔒"

var personalTag = regexp.MustCompile(`(?i)\s*[\(\[]\s*personal\s*[\)\]]\s*`)

// PersonalMarker strips personal markers from a header and reports whether one was present.
// A header is personal when it carries the lock glyph or the word "personal"; the glyph and a
// bracketed "(personal)" tag are removed from the display name.
func PersonalMarker(header string) (string, bool) {
	name := strings.TrimSpace(header)
	personal := strings.Contains(name, lockGlyph) || strings.Contains(strings.ToLower(name), "personal")
	name = strings.ReplaceAll(name, lockGlyph, "")
	name = personalTag.ReplaceAllString(name, " ")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		name = strings.TrimSpace(header)
	}
	return name, personal
}

// iconKeywords is ordered: the first keyword contained in the lowercased name wins.
var iconKeywords = []struct {
	keyword string
	icon    string
}{
	{"workout", "💪"},
	{"tech", "💻"}, {"praca", "💻"}, {"work", "💻"}, {"code", "💻"}, {"coding", "💻"},
	{"youtube", "🎥"}, {"video", "🎥"},
	{"czytanie", "📚"}, {"reading", "📚"}, {"read", "📚"}, {"book", "📚"},
	{"gitara", "🎸"}, {"guitar", "🎸"}, {"music", "🎵"},
	{"inne", "🔧"}, {"other", "🔧"}, {"misc", "🔧"},
	{"sport", "🏃"}, {"fitness", "🏃"}, {"exercise", "🏃"},
	{"clean", "🧹"},
	{"suplementy", "💊"}, {"supplements", "💊"}, {"vitamins", "💊"},
	{"ynab", "💰"}, {"money", "💰"}, {"budget", "💰"}, {"finance", "💰"},
	{"anki", "🧠"}, {"study", "🧠"}, {"learning", "🧠"},
	{"pamiętnik", "✒️"}, {"diary", "✒️"}, {"journal", "✒️"},
	{"plan", "📝"}, {"todo", "📝"},
	{"porn", "🚫"},
	{"9gag", "📱"}, {"scrolling", "📱"}, {"social", "📱"},
	{"gaming", "🎮"}, {"game", "🎮"},
	{"cronometer", "⌚"}, {"calories", "⌚"},
	{"food", "🍽️"},
	{"accessories", "💍"}, {"jewelry", "💍"},
}

// IconFor picks an icon for a habit name from the keyword table.
func IconFor(name string) string {
	lower := strings.ToLower(name)
	for _, k := range iconKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.icon
		}
	}
	return DefaultIcon
}

// Column is a classified source column ready for reconciliation.
type Column struct {
	Header string
	Index  int
	Sample []string
	Kind   Kind
}

// Resolve builds the definition of one column. When saved holds an override for the column's
// identity, presentation fields come from it; otherwise a default override is derived from the
// header and created reports true. Kind always comes from classification.
func Resolve(col Column, saved map[string]Override) (def Definition, created bool) {
	id := IdentityOf(col.Header)
	ov, ok := saved[id]
	if !ok {
		name, personal := PersonalMarker(col.Header)
		ov = Override{
			DisplayName: name,
			Icon:        IconFor(name),
			SortOrder:   col.Index,
			IsPersonal:  personal,
			Active:      true,
		}
		created = true
	}
	if strings.TrimSpace(ov.DisplayName) == "" {
		ov.DisplayName, _ = PersonalMarker(col.Header)
	}
	return Definition{
		ID:          id,
		Header:      strings.TrimSpace(col.Header),
		DisplayName: ov.DisplayName,
		Icon:        ov.Icon,
		Color:       ov.Color,
		Kind:        col.Kind,
		Active:      ov.Active,
		SortOrder:   ov.SortOrder,
		IsPersonal:  ov.IsPersonal,
	}, created
}

// Reconciliation is the outcome of matching source columns against saved overrides.
type Reconciliation struct {
	// All holds every resolved habit, inactive ones included, in display order.
	All []Definition
	// Active is All without deactivated habits.
	Active []Definition
	// Created holds default overrides for columns seen for the first time. Callers persist them.
	Created  map[string]Override
	Warnings []string
}

// Reconcile resolves every column against the saved overrides. It never mutates saved.
func Reconcile(cols []Column, saved map[string]Override) Reconciliation {
	rec := Reconciliation{Created: map[string]Override{}}
	seen := map[string]string{}
	for _, c := range cols {
		def, created := Resolve(c, saved)
		if prev, dup := seen[def.ID]; dup {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("column %q duplicates %q, ignored", c.Header, prev))
			continue
		}
		seen[def.ID] = c.Header
		if created {
			rec.Created[def.ID] = def.Override()
		}
		rec.All = append(rec.All, def)
	}
	SortDefinitions(rec.All)
	for _, d := range rec.All {
		if d.Active {
			rec.Active = append(rec.Active, d)
		}
	}
	return rec
}

// SortDefinitions orders definitions by sort order, then display name, then header.
func SortDefinitions(defs []Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].SortOrder != defs[j].SortOrder {
			return defs[i].SortOrder < defs[j].SortOrder
		}
		if defs[i].DisplayName != defs[j].DisplayName {
			return defs[i].DisplayName < defs[j].DisplayName
		}
		return defs[i].Header < defs[j].Header
	})
}

// IsSystemColumn reports whether a header is bookkeeping rather than a habit: blank headers,
// spreadsheet placeholders like "Unnamed: 3", and any of the given system names.
func IsSystemColumn(header string, system []string) bool {
	h := strings.TrimSpace(header)
	if h == "" || strings.HasPrefix(h, "Unnamed") {
		return true
	}
	for _, s := range system {
		if strings.EqualFold(h, strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

// Columns classifies the habit columns of a table. System columns and columns without a single
// non-null value are left out. A column that cannot be classified is reported as a warning and
// skipped without affecting the others.
func Columns(t *sheet.Table, rules Rules, system []string) ([]Column, []string) {
	rules = rules.withDefaults()
	var (
		cols     []Column
		warnings []string
	)
	for i, h := range t.Columns {
		if IsSystemColumn(h, system) {
			continue
		}
		col, ok, err := classifyColumn(t, h, i, rules)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		if ok {
			cols = append(cols, col)
		}
	}
	return cols, warnings
}

func classifyColumn(t *sheet.Table, header string, index int, rules Rules) (col Column, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("column %q: classification failed: %v", header, r)
		}
	}()
	values := make([]string, 0, rules.SampleSize)
	for _, row := range t.Rows {
		if v := row.Value(header); !sheet.IsNull(v) {
			values = append(values, v)
			if len(values) == rules.SampleSize {
				break
			}
		}
	}
	if len(values) == 0 {
		return Column{}, false, nil
	}
	sample := Sample(values, rules.SampleSize)
	return Column{Header: header, Index: index, Sample: sample, Kind: rules.Classify(sample)}, true, nil
}
