// Package overrides persists the user-editable presentation layer of habits, keyed by habit id.
package overrides

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/utils"
)

// Store loads and saves the full override map. Load on a fresh store returns an empty map.
type Store interface {
	Load(ctx context.Context) (map[string]habit.Override, error)
	Save(ctx context.Context, all map[string]habit.Override) error
}

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return "persistence error"
	}
	if e.Path != "" {
		return fmt.Sprintf("override store %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("override store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err came from an override store.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Open returns the store for a backend name: "json" (default) or "sqlite".
func Open(ctx context.Context, backend, path string) (Store, error) {
	switch backend {
	case "", "json":
		return NewFileStore(path), nil
	case "sqlite":
		s, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown override store %q (want json or sqlite)", backend)
}

// Merge returns a copy of base with every entry of add applied on top.
func Merge(base, add map[string]habit.Override) map[string]habit.Override {
	out := make(map[string]habit.Override, len(base)+len(add))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range add {
		out[k] = v
	}
	return out
}

// FileStore keeps overrides in a single JSON document, the same shape the dashboard edits:
// {"<habit id>": {"name": ..., "emoji": ..., "active": ...}}.
type FileStore struct {
	path string
}

// NewFileStore returns a JSON store at path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: utils.ExpandHome(path)}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (map[string]habit.Override, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]habit.Override{}, nil
		}
		return nil, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	out := map[string]habit.Override{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, &PersistenceError{Op: "load", Path: s.path, Err: fmt.Errorf("parse overrides: %w", err)}
	}
	return out, nil
}

func (s *FileStore) Save(ctx context.Context, all map[string]habit.Override) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if all == nil {
		all = map[string]habit.Override{}
	}
	b, err := utils.PrettyJSON(all)
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if err := utils.SafeWriteFile(s.path, b); err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

// Memory is an in-process store, used by tests and dry runs.
type Memory struct {
	mu   sync.Mutex
	data map[string]habit.Override
	// Saves counts successful Save calls.
	Saves int
}

// NewMemory returns a memory store seeded with a copy of initial.
func NewMemory(initial map[string]habit.Override) *Memory {
	return &Memory{data: Merge(nil, initial)}
}

func (m *Memory) Load(ctx context.Context) (map[string]habit.Override, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Merge(nil, m.data), nil
}

func (m *Memory) Save(ctx context.Context, all map[string]habit.Override) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = Merge(nil, all)
	m.Saves++
	return nil
}
