package storage

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMigratorWithMock(t *testing.T, migrationFS fs.FS) (*Migrator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newRepoSQLMock(t)
	return NewMigrator(db, migrationFS), mock
}

func TestMigratorUpRequiresDB(t *testing.T) {
	m := NewMigrator(nil, fstest.MapFS{})
	err := m.Up(context.Background())
	if err == nil || !strings.Contains(err.Error(), "db is required") {
		t.Fatalf("expected db required error, got %v", err)
	}
}

func TestMigratorUpNoMigrations(t *testing.T) {
	m, mock := newMigratorWithMock(t, fstest.MapFS{})

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("Up() no migrations: %v", err)
	}
}

func TestMigratorUpAppliesPendingInOrder(t *testing.T) {
	migrationFS := fstest.MapFS{
		"migrations/0002_apply.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE demo_table (id INT);\n")},
		"migrations/0001_already.sql": &fstest.MapFile{Data: []byte("CREATE TABLE already_table (id INT);\n")},
		"migrations/0003_comment.sql": &fstest.MapFile{Data: []byte("-- comment only\n  -- still comment\n")},
	}
	m, mock := newMigratorWithMock(t, migrationFS)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id FROM schema_migrations`).WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow("0001_already.sql"),
	)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("0002_apply.sql", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`CREATE TABLE demo_table`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("0003_comment.sql", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("Up() error: %v", err)
	}
}

func TestMigratorSkipsMigrationClaimedConcurrently(t *testing.T) {
	migrationFS := fstest.MapFS{
		"migrations/0001_init.sql": &fstest.MapFile{Data: []byte("CREATE TABLE raced (id INT);")},
	}
	m, mock := newMigratorWithMock(t, migrationFS)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id FROM schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO schema_migrations .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs("0001_init.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("Up() error: %v", err)
	}
}

func TestMigratorUpExecErrorRollsBack(t *testing.T) {
	migrationFS := fstest.MapFS{
		"migrations/0001_fail.sql": &fstest.MapFile{Data: []byte("CREATE TABLE broken_table (id INT);")},
	}
	m, mock := newMigratorWithMock(t, migrationFS)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id FROM schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("0001_fail.sql", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`CREATE TABLE broken_table`).WillReturnError(errors.New("exec boom"))
	mock.ExpectRollback()

	err := m.Up(context.Background())
	if err == nil || !strings.Contains(err.Error(), "exec migration 0001_fail.sql") {
		t.Fatalf("expected exec migration error, got %v", err)
	}
}

func TestMigratorErrors(t *testing.T) {
	t.Run("ensureTable exec error", func(t *testing.T) {
		m, mock := newMigratorWithMock(t, fstest.MapFS{})

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnError(errors.New("create failed"))
		err := m.ensureTable(context.Background())
		if err == nil || !strings.Contains(err.Error(), "create schema_migrations") {
			t.Fatalf("expected ensureTable error, got %v", err)
		}
	})

	t.Run("appliedMigrations scan error", func(t *testing.T) {
		m, mock := newMigratorWithMock(t, fstest.MapFS{})

		rows := sqlmock.NewRows([]string{"id", "extra"}).AddRow("0001", "x")
		mock.ExpectQuery(`SELECT id FROM schema_migrations`).WillReturnRows(rows)
		_, err := m.appliedMigrations(context.Background())
		if err == nil || !strings.Contains(err.Error(), "scan schema_migrations") {
			t.Fatalf("expected appliedMigrations scan error, got %v", err)
		}
	})

	t.Run("record error rolls back", func(t *testing.T) {
		m, mock := newMigratorWithMock(t, fstest.MapFS{})

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("0001.sql", sqlmock.AnyArg()).WillReturnError(errors.New("insert failed"))
		mock.ExpectRollback()

		err := m.apply(context.Background(), migration{id: "0001.sql", body: "CREATE TABLE t (id INT)"})
		if err == nil || !strings.Contains(err.Error(), "record migration 0001.sql") {
			t.Fatalf("expected record error, got %v", err)
		}
	})

	t.Run("commit error", func(t *testing.T) {
		m, mock := newMigratorWithMock(t, fstest.MapFS{})

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("0002.sql", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`CREATE TABLE t2`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit().WillReturnError(errors.New("commit failed"))

		err := m.apply(context.Background(), migration{id: "0002.sql", body: "CREATE TABLE t2 (id INT)"})
		if err == nil || !strings.Contains(err.Error(), "commit migration 0002.sql") {
			t.Fatalf("expected commit error, got %v", err)
		}
	})
}

func TestStripLineComments(t *testing.T) {
	input := strings.Join([]string{
		"-- top comment",
		"CREATE TABLE x (id INT);",
		"  -- indented comment",
		"INSERT INTO x VALUES (1);",
	}, "\n")

	out := stripLineComments(input)
	if strings.Contains(out, "--") {
		t.Fatalf("expected line comments removed, got %q", out)
	}
	if !strings.Contains(out, "CREATE TABLE x") || !strings.Contains(out, "INSERT INTO x") {
		t.Fatalf("expected SQL statements preserved, got %q", out)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob embedded migrations: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	content, err := fs.ReadFile(migrationsFS, "migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	if !strings.Contains(string(content), "current_uses <= max_uses") {
		t.Fatalf("expected use-limit constraint in init migration")
	}
	for _, file := range files {
		if name := filepath.Base(file); name == "" || name == "." || name == "/" {
			t.Fatalf("invalid migration basename for %q", file)
		}
	}
}
