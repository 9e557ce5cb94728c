package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

func TestOpen_CreatesNestedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "var", "lib", "gw.db")
	db, err := Open(context.Background(), config.DatabaseConfig{Path: path, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if _, err := db.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	if info.IsDir() {
		t.Fatal("database path is a directory")
	}
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup
	ctx := context.Background()

	for pragma, want := range map[string]string{
		"foreign_keys": "1",
		"journal_mode": "wal",
		"busy_timeout": "5000",
	} {
		var got string
		if err := db.QueryRowContext(ctx, "PRAGMA "+pragma).Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", pragma, err)
		}
		if got != want {
			t.Errorf("PRAGMA %s = %q, want %q", pragma, got, want)
		}
	}
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want a single writer", got)
	}
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(context.Background(), config.DatabaseConfig{Path: memoryPath})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	db := openTestDB(t)
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on a closed database should fail")
	}

	var never DB
	if err := never.Close(); err != nil {
		t.Errorf("Close() on an unopened DB error = %v", err)
	}
}

func TestWithTx(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY)"); err != nil {
		t.Fatal(err)
	}
	insert := func(k string) func(tx *sql.Tx) error {
		return func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO kv (k) VALUES (?)", k)
			return err
		}
	}

	if err := db.withTx(ctx, insert("kept")); err != nil {
		t.Fatalf("withTx() error = %v", err)
	}
	boom := errors.New("boom")
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := insert("discarded")(tx); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("withTx() error = %v, want boom", err)
	}

	var keys []string
	rows, err := db.QueryContext(ctx, "SELECT k FROM kv")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			t.Fatal(err)
		}
		keys = append(keys, k)
	}
	if len(keys) != 1 || keys[0] != "kept" {
		t.Errorf("rows = %v, want only the committed one", keys)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{}); err == nil {
		t.Error("Open() with empty path should fail")
	}
}

func TestDSN(t *testing.T) {
	got := dsn(config.DatabaseConfig{Path: "/var/lib/gw.db", BusyTimeout: 5, WALMode: true})
	want := "file:/var/lib/gw.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL"
	if got != want {
		t.Errorf("dsn() = %q, want %q", got, want)
	}
	if got := dsn(config.DatabaseConfig{Path: "x.db"}); got != "file:x.db?_busy_timeout=0&_foreign_keys=on" {
		t.Errorf("dsn() without WAL = %q", got)
	}
}

func TestBackupTo(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE t (id INTEGER); INSERT INTO t VALUES (7)"); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "backups", "gw.db")
	if err := db.BackupTo(ctx, dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}
	if err := db.BackupTo(ctx, dest); !errors.Is(err, ErrBackupExists) {
		t.Errorf("second BackupTo() error = %v, want ErrBackupExists", err)
	}

	copied, err := Open(ctx, config.DatabaseConfig{Path: dest, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer copied.Close() //nolint:errcheck // Test cleanup

	var id int
	if err := copied.QueryRowContext(ctx, "SELECT id FROM t").Scan(&id); err != nil || id != 7 {
		t.Errorf("backup row = %d, err = %v; want 7", id, err)
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	return db
}
