package sheet

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// nullMarkers are cell values treated as absent, compared case-insensitively.
var nullMarkers = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

// IsNull reports whether a raw cell value is one of the common null markers.
func IsNull(s string) bool {
	_, ok := nullMarkers[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseNumeric coerces a raw cell value to a float. Decimal and thousands separators are
// auto-detected unless fixed in opt; a trailing percent sign is ignored.
func ParseNumeric(s string, opt Options) (float64, bool) {
	if IsNull(s) {
		return 0, false
	}
	raw := strings.ReplaceAll(strings.TrimSpace(s), "%", "")
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\u00A0", " "))
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	switch {
	case dec == 0 && thou == '.':
		dec = ','
	case dec == 0 && thou != 0:
		dec = '.'
	}
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{
	"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05",
	"2006/01/02", "02/01/2006", "01/02/2006", "02.01.2006", "2.1.2006", "02-01-2006",
	"1/2/2006 15:04", "1/2/2006 15:04:05", "Jan 2, 2006", "2 Jan 2006",
}

// excelEpoch is day zero of the 1900 date system (accounting for the fictitious 1900-02-29).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses a day from the common textual layouts or from an Excel serial number.
// The result is the calendar day at UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return Day(t), true
		}
	}
	// xlsx stores dates as serial numbers unless the cell is text
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 1 && f < 2958466 {
		return Day(excelEpoch.AddDate(0, 0, int(math.Floor(f)))), true
	}
	return time.Time{}, false
}

// Day truncates t to its calendar day at UTC midnight, keeping the wall-clock date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey formats a day as YYYY-MM-DD.
func DayKey(t time.Time) string { return t.Format("2006-01-02") }
