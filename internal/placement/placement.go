// Package placement stores the named locations things are grouped by.
//
// Placements are referenced weakly: deleting one never deletes its
// things, the things simply report no placement afterwards.
package placement

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a placement ID does not exist.
	ErrNotFound = errors.New("placement: not found")

	// ErrExists is returned when creating a placement whose ID is taken.
	ErrExists = errors.New("placement: already exists")

	// ErrInvalid is returned when placement validation fails.
	ErrInvalid = errors.New("placement: invalid")
)

const maxNameLength = 100

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Placement is a named location, typically a room.
type Placement struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Validate checks the ID format and name length.
func (p *Placement) Validate() error {
	if !idPattern.MatchString(p.ID) {
		return fmt.Errorf("%w: id %q must be 1-128 characters of letters, digits, '.', '_', ':' or '-'", ErrInvalid, p.ID)
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalid)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalid, maxNameLength)
	}
	return nil
}
