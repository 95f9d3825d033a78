package sheet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoSource indicates that no habit spreadsheet could be found. Callers treat it as an empty
// data set rather than a failure.
var ErrNoSource = errors.New("no source table found")

// ErrUnsupported indicates a spreadsheet format that cannot be read.
var ErrUnsupported = errors.New("unsupported spreadsheet format")

// Options controls how source tables are read.
type Options struct {
	// Delimiter for CSV. If 0, picked from the file extension (',' or '\t').
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// XLSX sheet selection. SheetIndex is 1-based; both empty means the first sheet.
	SheetName  string
	SheetIndex int
	// DateColumn names the column holding the day. Empty means the first column.
	DateColumn string
	// MaxRows limits data rows read per table; 0 means unlimited.
	MaxRows int
}

// DefaultOptions returns reasonable defaults for habit spreadsheets.
func DefaultOptions() Options {
	return Options{MaxRows: 100000}
}

// Table is one habit spreadsheet: a date per row plus raw cell text per habit column.
type Table struct {
	Name       string
	DateColumn string
	// Columns lists non-date headers in sheet order.
	Columns []string
	Rows    []Row
	// Skipped counts rows dropped because their date could not be parsed.
	Skipped  int
	Warnings []string
}

// Row is a single day of a table. Cells maps header to trimmed raw text; a missing key or an
// empty value is a null cell.
type Row struct {
	Line  int
	Date  time.Time
	Cells map[string]string
}

// Value returns the raw cell text for a column.
func (r Row) Value(column string) string {
	return r.Cells[column]
}

// RowError describes a row that was skipped because its date was malformed.
type RowError struct {
	Table string
	Line  int
	Value string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s line %d: unparseable date %q", e.Table, e.Line, e.Value)
}

// Merge concatenates tables in order. Columns are the union of all headers in order of first
// appearance; the date column of the first table names the result.
func Merge(tables ...*Table) *Table {
	out := &Table{}
	seen := map[string]struct{}{}
	var names []string
	for _, t := range tables {
		if t == nil {
			continue
		}
		names = append(names, t.Name)
		if out.DateColumn == "" {
			out.DateColumn = t.DateColumn
		}
		for _, c := range t.Columns {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out.Columns = append(out.Columns, c)
		}
		out.Rows = append(out.Rows, t.Rows...)
		out.Skipped += t.Skipped
		out.Warnings = append(out.Warnings, t.Warnings...)
	}
	out.Name = strings.Join(names, " + ")
	return out
}

// ReadFile selects a reader by file extension.
func ReadFile(path string, opt Options) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return ReadCSV(path, opt)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, opt)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
}

// builder turns header + records into a Table. It is shared by the CSV and XLSX readers.
type builder struct {
	t       *Table
	cols    []string
	dateIdx int
	maxRows int
	opt     Options
}

func newBuilder(name string, header []string, opt Options) *builder {
	b := &builder{t: &Table{Name: name}, cols: make([]string, len(header)), opt: opt}
	b.maxRows = opt.MaxRows
	if b.maxRows <= 0 {
		b.maxRows = int(^uint(0) >> 1)
	}
	b.dateIdx = 0
	if want := strings.TrimSpace(opt.DateColumn); want != "" {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				b.dateIdx = i
				break
			}
		}
	}
	used := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == b.dateIdx {
			b.t.DateColumn = h
			continue
		}
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		// duplicate headers get a numeric suffix so both columns survive
		if n, ok := used[h]; ok {
			used[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			used[h] = 0
		}
		b.cols[i] = h
		b.t.Columns = append(b.t.Columns, h)
	}
	return b
}

func (b *builder) add(line int, rec []string) {
	if len(b.t.Rows)+b.t.Skipped >= b.maxRows {
		return
	}
	raw := ""
	if b.dateIdx < len(rec) {
		raw = strings.TrimSpace(rec[b.dateIdx])
	}
	if IsNull(raw) {
		return
	}
	day, ok := ParseDate(raw)
	if !ok {
		b.t.Skipped++
		if len(b.t.Warnings) < 20 {
			b.t.Warnings = append(b.t.Warnings, (&RowError{Table: b.t.Name, Line: line, Value: raw}).Error())
		}
		return
	}
	row := Row{Line: line, Date: day, Cells: make(map[string]string, len(b.t.Columns))}
	for i, name := range b.cols {
		if name == "" || i >= len(rec) {
			continue
		}
		v := strings.TrimSpace(rec[i])
		if IsNull(v) {
			continue
		}
		row.Cells[name] = v
	}
	b.t.Rows = append(b.t.Rows, row)
}

func (b *builder) table() *Table {
	if b.t.Skipped > 0 {
		b.t.Warnings = append(b.t.Warnings, fmt.Sprintf("skipped %d rows with malformed dates", b.t.Skipped))
	}
	return b.t
}
