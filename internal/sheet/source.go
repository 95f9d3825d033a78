package sheet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Source supplies the habit tables for one computation.
type Source interface {
	Load(ctx context.Context) ([]*Table, error)
}

// DirSource discovers spreadsheets in a directory. Files are read concurrently and returned in
// sorted path order so merging is deterministic.
type DirSource struct {
	Dir     string
	Options Options
}

var supportedExt = map[string]bool{".xlsx": true, ".xlsm": true, ".csv": true, ".tsv": true}

// IsSpreadsheet reports whether a file name looks like a habit spreadsheet DirSource would pick up.
func IsSpreadsheet(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	return supportedExt[ext] || ext == ".xls"
}

// Files lists candidate spreadsheets in the directory, sorted by name. Excel lock files (~$*)
// and hidden files are ignored.
func (s DirSource) Files() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsSpreadsheet(e.Name()) {
			files = append(files, filepath.Join(s.Dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Load reads every spreadsheet in the directory. It returns ErrNoSource when none exist.
// A file that cannot be read, such as a legacy .xls workbook or a half-saved .xlsx, yields an
// empty table carrying a warning so the remaining files still load.
func (s DirSource) Load(ctx context.Context) ([]*Table, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoSource
	}
	tables := make([]*Table, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if strings.EqualFold(filepath.Ext(f), ".xls") {
				tables[i] = unreadable(f, "legacy .xls workbooks are not supported, save as .xlsx")
				return nil
			}
			t, err := ReadFile(f, s.Options)
			if err != nil {
				tables[i] = unreadable(f, err.Error())
				return nil
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

func unreadable(path, reason string) *Table {
	name := filepath.Base(path)
	return &Table{Name: name, Warnings: []string{fmt.Sprintf("%s: %s", name, reason)}}
}

// StaticSource serves tables already held in memory.
type StaticSource []*Table

func (s StaticSource) Load(ctx context.Context) ([]*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, ErrNoSource
	}
	return []*Table(s), nil
}
