// Package habit turns habit spreadsheets into typed habit definitions and daily entries.
package habit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// Kind is the semantic type of a habit column.
type Kind string

const (
	KindBinary      Kind = "binary"
	KindTime        Kind = "time"
	KindDescription Kind = "description"
)

// Trackable reports whether the kind has completion semantics.
func (k Kind) Trackable() bool { return k == KindBinary || k == KindTime }

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindBinary:
		return KindBinary, nil
	case KindTime:
		return KindTime, nil
	case KindDescription:
		return KindDescription, nil
	}
	return "", fmt.Errorf("unknown habit kind %q", s)
}

// ErrNotFound is returned when a habit id is unknown to the current sources.
var ErrNotFound = errors.New("habit not found")

// Definition is a habit as presented to the dashboard: immutable identity and kind merged with
// the user's presentation override.
type Definition struct {
	ID          string `json:"id"`
	Header      string `json:"header"`
	DisplayName string `json:"name"`
	Icon        string `json:"emoji"`
	Color       string `json:"color,omitempty"`
	Kind        Kind   `json:"habit_type"`
	Active      bool   `json:"active"`
	SortOrder   int    `json:"order"`
	IsPersonal  bool   `json:"is_personal"`
}

// Override returns the presentation layer of the definition.
func (d Definition) Override() Override {
	return Override{
		DisplayName: d.DisplayName,
		Icon:        d.Icon,
		Color:       d.Color,
		SortOrder:   d.SortOrder,
		IsPersonal:  d.IsPersonal,
		Active:      d.Active,
	}
}

// Override is the persisted, user-editable part of a habit. Kind is deliberately absent: it
// always comes from the column classifier.
type Override struct {
	DisplayName string `json:"name" yaml:"name"`
	Icon        string `json:"emoji" yaml:"emoji"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
	SortOrder   int    `json:"order" yaml:"order"`
	IsPersonal  bool   `json:"is_personal" yaml:"is_personal"`
	Active      bool   `json:"active" yaml:"active"`
}

// Patch is a partial update of an Override. Nil fields are left unchanged.
type Patch struct {
	DisplayName *string `json:"name,omitempty"`
	Icon        *string `json:"emoji,omitempty"`
	Color       *string `json:"color,omitempty"`
	SortOrder   *int    `json:"order,omitempty"`
	IsPersonal  *bool   `json:"is_personal,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// Apply returns o with the non-nil fields of p applied.
func (o Override) Apply(p Patch) Override {
	if p.DisplayName != nil {
		if name := strings.TrimSpace(*p.DisplayName); name != "" {
			o.DisplayName = name
		}
	}
	if p.Icon != nil {
		o.Icon = *p.Icon
	}
	if p.Color != nil {
		o.Color = *p.Color
	}
	if p.SortOrder != nil {
		o.SortOrder = *p.SortOrder
	}
	if p.IsPersonal != nil {
		o.IsPersonal = *p.IsPersonal
	}
	if p.Active != nil {
		o.Active = *p.Active
	}
	return o
}

// Entry is one recorded observation of a habit on a calendar day. Value is the raw cell text.
type Entry struct {
	HabitID   string    `json:"habit_id"`
	Date      time.Time `json:"date"`
	Value     string    `json:"value,omitempty"`
	Completed bool      `json:"completed"`
}

// Rules holds the thresholds used by classification and completion.
type Rules struct {
	// SampleSize is the number of non-null values sampled per column.
	SampleSize int
	// TimeMinimum is the smallest maximum value that marks a numeric column as Time.
	TimeMinimum float64
	// CompletionMinutes is the Time value at which a day counts as completed.
	CompletionMinutes float64
	// Number separators for numeric cells. Zero values auto-detect per cell.
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// Number coerces a cell value using the configured separators.
func (r Rules) Number(value string) (float64, bool) {
	return sheet.ParseNumeric(value, sheet.Options{
		DecimalSeparator:   r.DecimalSeparator,
		ThousandsSeparator: r.ThousandsSeparator,
	})
}

// DefaultRules returns the standard thresholds: sample 10 values, Time when max >= 5,
// completed at 20 minutes.
func DefaultRules() Rules {
	return Rules{SampleSize: 10, TimeMinimum: 5, CompletionMinutes: 20}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.SampleSize <= 0 {
		r.SampleSize = d.SampleSize
	}
	if r.TimeMinimum <= 0 {
		r.TimeMinimum = d.TimeMinimum
	}
	if r.CompletionMinutes <= 0 {
		r.CompletionMinutes = d.CompletionMinutes
	}
	return r
}
