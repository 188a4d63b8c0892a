package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	webhookengine "github.com/goliatone/go-webhook-engine"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestRegister_DefaultSourceLabel(t *testing.T) {
	var labels []string
	_, err := Register(context.Background(), func(_ context.Context, _ string, sourceLabel string, _ fs.FS) error {
		labels = append(labels, sourceLabel)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, label := range labels {
		if label != "go-webhook-engine" {
			t.Fatalf("expected go-webhook-engine source label, got %q", label)
		}
	}
}

func TestCoreSchemaMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := webhookengine.GetCoreMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_webhook_engine_core_schema.up.sql",
		"data/sql/migrations/00001_webhook_engine_core_schema.down.sql",
		"data/sql/migrations/sqlite/00001_webhook_engine_core_schema.up.sql",
		"data/sql/migrations/sqlite/00001_webhook_engine_core_schema.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteCoreSchemaMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-webhook-core-schema?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := webhookengine.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"00001_webhook_engine_core_schema.up.sql",
	); err != nil {
		t.Fatalf("apply core schema migration up: %v", err)
	}

	requiredTables := []string{
		"processed_webhook_events",
		"webhook_retries",
	}
	for _, tableName := range requiredTables {
		var count int
		if err := db.QueryRowContext(
			context.Background(),
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
			tableName,
		).Scan(&count); err != nil {
			t.Fatalf("query sqlite_master for %s: %v", tableName, err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist after up migration", tableName)
		}
	}

	if _, err := db.ExecContext(
		context.Background(),
		`INSERT INTO processed_webhook_events
			(id, event_id, event_type, processed_at, successful, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"row_1",
		"evt_1",
		"order.created",
		"2026-01-01T00:00:00Z",
		1,
		"",
		"2026-01-01T00:00:00Z",
		"2026-01-01T00:00:00Z",
	); err != nil {
		t.Fatalf("insert processed event: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		`INSERT INTO processed_webhook_events
			(id, event_id, event_type, processed_at, successful, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"row_2",
		"evt_1",
		"order.created",
		"2026-01-01T00:00:01Z",
		1,
		"",
		"2026-01-01T00:00:01Z",
		"2026-01-01T00:00:01Z",
	); err == nil {
		t.Fatalf("expected event_id uniqueness violation on processed_webhook_events")
	}

	if _, err := db.ExecContext(
		context.Background(),
		`INSERT INTO webhook_retries
			(id, event_id, event_type, payload, signature, attempt_number, max_retries, status, next_retry_at, last_error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"retry_1",
		"evt_1",
		"order.created",
		[]byte(`{"id":"evt_1"}`),
		"sig_1",
		1,
		5,
		"pending",
		"2026-01-01T00:01:00Z",
		"",
		"2026-01-01T00:00:00Z",
		"2026-01-01T00:00:00Z",
	); err != nil {
		t.Fatalf("insert retry row: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		`INSERT INTO webhook_retries
			(id, event_id, event_type, payload, signature, attempt_number, max_retries, status, next_retry_at, last_error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"retry_2",
		"evt_1",
		"order.created",
		[]byte(`{"id":"evt_1"}`),
		"sig_1",
		2,
		5,
		"pending",
		"2026-01-01T00:02:00Z",
		"",
		"2026-01-01T00:00:00Z",
		"2026-01-01T00:00:00Z",
	); err == nil {
		t.Fatalf("expected event_id uniqueness violation on webhook_retries")
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"00001_webhook_engine_core_schema.down.sql",
	); err != nil {
		t.Fatalf("apply core schema migration down: %v", err)
	}

	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN (?, ?)`,
		"processed_webhook_events",
		"webhook_retries",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected engine tables to be dropped after down migration, found %d", count)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
