package habit

import (
	"strings"

	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// Sample returns up to n non-null values from a column, in column order.
func Sample(values []string, n int) []string {
	if n <= 0 {
		n = DefaultRules().SampleSize
	}
	out := make([]string, 0, n)
	for _, v := range values {
		if sheet.IsNull(v) {
			continue
		}
		out = append(out, strings.TrimSpace(v))
		if len(out) == n {
			break
		}
	}
	return out
}

// Classify assigns a kind to a column sample using the default thresholds.
func Classify(sample []string) Kind {
	return DefaultRules().Classify(sample)
}

// Classify assigns a kind to a column sample. Numeric samples whose distinct values are a subset
// of {0,1} are Binary; numeric samples reaching TimeMinimum are Time; other numeric samples fall
// back to Binary. Samples without any number are Description, empty samples Binary.
// The result depends only on the set of values, not their order.
func (r Rules) Classify(sample []string) Kind {
	r = r.withDefaults()
	var (
		numeric  int
		text     int
		maxVal   float64
		onlyBits = true
	)
	for _, v := range sample {
		if sheet.IsNull(v) {
			continue
		}
		x, ok := r.Number(v)
		if !ok {
			text++
			continue
		}
		if numeric == 0 || x > maxVal {
			maxVal = x
		}
		numeric++
		if x != 0 && x != 1 {
			onlyBits = false
		}
	}
	switch {
	case numeric > 0 && onlyBits:
		return KindBinary
	case numeric > 0 && maxVal >= r.TimeMinimum:
		return KindTime
	case numeric > 0:
		return KindBinary
	case text > 0:
		return KindDescription
	}
	return KindBinary
}

// IsCompleted applies the default completion rules.
func IsCompleted(value string, kind Kind) bool {
	return DefaultRules().IsCompleted(value, kind)
}

// IsCompleted reports whether a cell value counts as a completed day for a habit of the given
// kind. Null values are never completed; Description habits never complete.
func (r Rules) IsCompleted(value string, kind Kind) bool {
	if sheet.IsNull(value) {
		return false
	}
	r = r.withDefaults()
	x, ok := r.Number(value)
	if !ok {
		return false
	}
	switch kind {
	case KindBinary:
		return x == 1.0
	case KindTime:
		return x >= r.CompletionMinutes
	}
	return false
}
