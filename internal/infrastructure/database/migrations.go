package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strings"
	"time"
)

// ErrUnknownMigration means the database has a migration applied that the
// running binary does not ship, usually after a downgrade.
var ErrUnknownMigration = errors.New("database: applied migration not found in this build")

// Migration is one schema change loaded from a pair of SQL files.
type Migration struct {
	// Version is the YYYYMMDD_HHMMSS filename prefix.
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// migrationFile matches YYYYMMDD_HHMMSS_name.up.sql and .down.sql.
var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

type migrationFileInfo struct {
	version string
	name    string
	up      bool
}

func parseMigrationFile(filename string) (migrationFileInfo, bool) {
	m := migrationFile.FindStringSubmatch(filename)
	if m == nil {
		return migrationFileInfo{}, false
	}
	return migrationFileInfo{version: m[1], name: m[2], up: m[3] == "up"}, true
}

// Migrate applies the migrations in src that schema_migrations does not
// list yet, oldest first, one transaction each. A failure leaves earlier
// migrations committed; re-running continues from the failed one.
func (db *DB) Migrate(ctx context.Context, src fs.FS) error {
	applied, pending, err := db.MigrationStatus(ctx, src)
	if err != nil {
		return err
	}

	known, err := loadMigrations(src)
	if err != nil {
		return err
	}
	for _, rec := range applied {
		if !slices.ContainsFunc(known, func(m Migration) bool { return m.Version == rec.Version }) {
			return fmt.Errorf("%w: %s", ErrUnknownMigration, rec.Version)
		}
	}

	for _, m := range pending {
		err := db.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.Version, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the most recently applied migration. It fails when
// that migration has no .down.sql file.
func (db *DB) MigrateDown(ctx context.Context, src fs.FS) error {
	applied, _, err := db.MigrationStatus(ctx, src)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1].Version

	known, err := loadMigrations(src)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(known, func(m Migration) bool { return m.Version == latest })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownMigration, latest)
	}
	m := known[i]
	if strings.TrimSpace(m.DownSQL) == "" {
		return fmt.Errorf("migration %s_%s cannot be reverted: no down SQL", m.Version, m.Name)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("reverting %s: %w", m.Version, err)
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
		return err
	})
}

// MigrationStatus lists applied migrations from the database and the
// migrations in src that are not applied yet.
func (db *DB) MigrationStatus(ctx context.Context, src fs.FS) (applied []MigrationRecord, pending []Migration, err error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return nil, nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	if applied, err = db.appliedMigrations(ctx); err != nil {
		return nil, nil, err
	}
	known, err := loadMigrations(src)
	if err != nil {
		return nil, nil, err
	}

	for _, m := range known {
		if !slices.ContainsFunc(applied, func(r MigrationRecord) bool { return r.Version == m.Version }) {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	var out []MigrationRecord
	for rows.Next() {
		var (
			rec MigrationRecord
			at  string
		)
		if err := rows.Scan(&rec.Version, &at); err != nil {
			return nil, fmt.Errorf("reading schema_migrations: %w", err)
		}
		rec.AppliedAt, _ = time.Parse(time.RFC3339, at) //nolint:errcheck // written by Migrate
		out = append(out, rec)
	}
	return out, rows.Err()
}

// loadMigrations pairs the up and down files at the root of src, sorted by
// version. Other files are ignored and a nil src has no migrations.
func loadMigrations(src fs.FS) ([]Migration, error) {
	if src == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		info, ok := parseMigrationFile(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		body, err := fs.ReadFile(src, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		m := byVersion[info.version]
		if m == nil {
			m = &Migration{Version: info.version, Name: info.name}
			byVersion[info.version] = m
		}
		if info.up {
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s has a down file but no up file", m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}
