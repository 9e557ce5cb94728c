package placement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for placement persistence operations.
type Repository interface {
	List(ctx context.Context) ([]Placement, error)
	GetByID(ctx context.Context, id string) (*Placement, error)
	Create(ctx context.Context, p *Placement) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed placement repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all placements in insertion order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Placement, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, created_at FROM placements ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("querying placements: %w", err)
	}
	defer rows.Close()

	placements := []Placement{}
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		placements = append(placements, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating placements: %w", err)
	}
	return placements, nil
}

// GetByID returns ErrNotFound when the placement does not exist.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Placement, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM placements WHERE id = ?", id)
	p, err := scanPlacement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Create inserts a new placement.
func (r *SQLiteRepository) Create(ctx context.Context, p *Placement) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	const query = `INSERT INTO placements (id, name, created_at) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrExists
		}
		return fmt.Errorf("inserting placement %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes a placement. Things that referenced it keep existing
// with no placement.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM placements WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting placement %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlacement(s scanner) (*Placement, error) {
	var p Placement
	var createdAt string
	if err := s.Scan(&p.ID, &p.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning placement: %w", err)
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	p.CreatedAt = t
	return &p, nil
}
