package overrides

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/utils"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore keeps overrides in a habit_overrides table.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite override store: path is required")
	}
	path = utils.ExpandHome(path)
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, &PersistenceError{Op: "open", Path: path, Err: err}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Path: path, Err: err}
	}
	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, &PersistenceError{Op: "open", Path: path, Err: err}
	}
	return &SQLiteStore{path: path, db: db}, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load(ctx context.Context) (map[string]habit.Override, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT habit_id, name, emoji, color, sort_order, is_personal, active FROM habit_overrides`)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	defer rows.Close()
	out := map[string]habit.Override{}
	for rows.Next() {
		var (
			id string
			o  habit.Override
		)
		if err := rows.Scan(&id, &o.DisplayName, &o.Icon, &o.Color, &o.SortOrder, &o.IsPersonal, &o.Active); err != nil {
			return nil, &PersistenceError{Op: "load", Path: s.path, Err: err}
		}
		out[id] = o
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	return out, nil
}

// Save replaces the stored set with all in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, all map[string]habit.Override) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM habit_overrides`); err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO habit_overrides (habit_id, name, emoji, color, sort_order, is_personal, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	defer stmt.Close()
	for id, o := range all {
		if _, err := stmt.ExecContext(ctx, id, o.DisplayName, o.Icon, o.Color, o.SortOrder, o.IsPersonal, o.Active); err != nil {
			return &PersistenceError{Op: "save", Path: s.path, Err: fmt.Errorf("habit %s: %w", id, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}
