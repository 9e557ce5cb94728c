package thing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for thing persistence operations.
type Repository interface {
	// List retrieves all things in insertion order.
	List(ctx context.Context) ([]Record, error)

	// GetByID retrieves a thing by ID.
	// Returns ErrNotFound if the thing does not exist.
	GetByID(ctx context.Context, id string) (*Record, error)

	// Create inserts a new thing.
	// Returns ErrExists for a duplicate ID and ErrUnknownPlacement when
	// the placement does not exist.
	Create(ctx context.Context, rec *Record) error

	// Delete removes a thing by ID.
	// Returns ErrNotFound if the thing does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateState replaces the stored state of a thing.
	UpdateState(ctx context.Context, id string, state map[string]any, at time.Time) error
}

// ErrUnknownPlacement is returned when a record references a placement
// that does not exist.
var ErrUnknownPlacement = errors.New("thing: unknown placement")

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const thingColumns = `id, platform, type, name, placement_id, config, state,
	state_updated_at, created_at, updated_at`

// List retrieves all things ordered by rowid, which is insertion order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+thingColumns+" FROM things ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("querying things: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thing: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating things: %w", err)
	}
	return records, nil
}

// GetByID retrieves a thing by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+thingColumns+" FROM things WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying thing by id: %w", err)
	}
	return rec, nil
}

// Create inserts a new thing.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	configJSON, err := marshalMap(rec.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	stateJSON, err := marshalMap(rec.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO things (`+thingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Platform,
		rec.Type,
		rec.Name,
		nullableString(rec.PlacementID),
		configJSON,
		stateJSON,
		nullableTime(rec.StateUpdatedAt),
		rec.CreatedAt.Format(time.RFC3339),
		rec.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		switch {
		case isConstraintError(err, "UNIQUE"):
			return ErrExists
		case isConstraintError(err, "FOREIGN KEY"):
			return ErrUnknownPlacement
		}
		return fmt.Errorf("inserting thing: %w", err)
	}
	return nil
}

// Delete removes a thing by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM things WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting thing: %w", err)
	}
	return requireAffected(result)
}

// UpdateState replaces the stored state. The event that carries the
// state always holds the full state, so no merge is needed here.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state map[string]any, at time.Time) error {
	stateJSON, err := marshalMap(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	ts := at.UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, `
		UPDATE things
		SET state = ?, state_updated_at = ?, updated_at = ?
		WHERE id = ?`,
		stateJSON, ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("updating thing state: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*Record, error) {
	var rec Record
	var placementID, stateUpdatedAt sql.NullString
	var configJSON, stateJSON, createdAt, updatedAt string

	err := s.Scan(
		&rec.ID,
		&rec.Platform,
		&rec.Type,
		&rec.Name,
		&placementID,
		&configJSON,
		&stateJSON,
		&stateUpdatedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if placementID.Valid {
		rec.PlacementID = &placementID.String
	}
	if stateUpdatedAt.Valid {
		if t, err := time.Parse(time.RFC3339, stateUpdatedAt.String); err == nil {
			rec.StateUpdatedAt = &t
		}
	}

	var parseErr error
	if rec.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt); parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	if rec.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt); parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	if err := json.Unmarshal([]byte(configJSON), &rec.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}

	return &rec, nil
}

func marshalMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// isConstraintError checks for a SQLite constraint violation of the given kind.
func isConstraintError(err error, kind string) bool {
	return err != nil && strings.Contains(err.Error(), kind+" constraint failed")
}
