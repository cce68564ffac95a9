package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type migration struct {
	id   string
	body string
}

type Migrator struct {
	db  *sql.DB
	fs  fs.FS
	now func() time.Time
}

func NewMigrator(db *sql.DB, migrations fs.FS) *Migrator {
	return &Migrator{db: db, fs: migrations, now: time.Now}
}

// Up applies every migration not yet recorded in schema_migrations, in
// file name order. Servers starting together may both call Up; the
// record row is claimed before the body runs so each file applies once.
func (m *Migrator) Up(ctx context.Context) error {
	if m.db == nil {
		return fmt.Errorf("db is required")
	}
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	plan, err := m.pending(ctx)
	if err != nil {
		return err
	}
	for _, mg := range plan {
		if err := m.apply(ctx, mg); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		id TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) pending(ctx context.Context) ([]migration, error) {
	files, err := fs.Glob(m.fs, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Strings(files)

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	plan := make([]migration, 0, len(files))
	for _, file := range files {
		id := filepath.Base(file)
		if applied[id] {
			continue
		}
		content, err := fs.ReadFile(m.fs, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		plan = append(plan, migration{id: id, body: stripLineComments(string(content))})
	}
	return plan, nil
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema_migrations: %w", err)
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, mg migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", mg.id, err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (id, applied_at) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, mg.id, m.now().UTC())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", mg.id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// claimed by a concurrent Up
		_ = tx.Rollback()
		return nil
	}

	if strings.TrimSpace(mg.body) != "" {
		if _, err := tx.ExecContext(ctx, mg.body); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", mg.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", mg.id, err)
	}
	return nil
}

func stripLineComments(sqlText string) string {
	lines := strings.Split(sqlText, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
