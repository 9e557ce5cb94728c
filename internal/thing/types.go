package thing

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"time"
)

// Record is the persisted description of a thing.
type Record struct {
	ID             string         `json:"id" yaml:"id"`
	Platform       string         `json:"platform" yaml:"platform"`
	Type           string         `json:"type" yaml:"type"`
	Name           string         `json:"name" yaml:"name"`
	PlacementID    *string        `json:"placement" yaml:"placement,omitempty"`
	Config         map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	State          map[string]any `json:"state" yaml:"-"`
	StateUpdatedAt *time.Time     `json:"state_updated_at,omitempty" yaml:"-"`
	CreatedAt      time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time      `json:"updated_at" yaml:"-"`
}

// Placement returns the placement ID, or "" when the thing has none.
func (r *Record) Placement() string {
	if r.PlacementID == nil {
		return ""
	}
	return *r.PlacementID
}

// DeepCopy returns a copy that shares no maps or pointers with r.
// State and config values are JSON-shaped, so a copy of the top-level
// map plus nested maps and slices is sufficient.
func (r *Record) DeepCopy() Record {
	cp := *r
	if r.PlacementID != nil {
		p := *r.PlacementID
		cp.PlacementID = &p
	}
	if r.StateUpdatedAt != nil {
		t := *r.StateUpdatedAt
		cp.StateUpdatedAt = &t
	}
	cp.Config = CopyState(r.Config)
	cp.State = CopyState(r.State)
	return cp
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Validate checks the fields every record needs.
func (r *Record) Validate() error {
	if !idPattern.MatchString(r.ID) {
		return fmt.Errorf("%w: id %q must be 1-128 characters of letters, digits, '.', '_', ':' or '-'", ErrInvalidRecord, r.ID)
	}
	if r.Platform == "" {
		return fmt.Errorf("%w: platform is required", ErrInvalidRecord)
	}
	if r.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidRecord)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	if r.PlacementID != nil && *r.PlacementID == "" {
		return fmt.Errorf("%w: placement must be omitted or non-empty", ErrInvalidRecord)
	}
	return nil
}

// Thing is a live device built by an integration.
//
// Implementations need no locking of their own for Do: the Directory
// never calls Do concurrently on the same thing.
type Thing interface {
	ID() string
	Actions() []string
	State() map[string]any
	Do(ctx context.Context, action string, params map[string]any) error
}

// Observing is implemented by live things that accept state reported
// from outside the gateway, for example by a protocol bridge.
type Observing interface {
	Observe(state map[string]any)
}

// Builder constructs a live Thing from its record.
type Builder interface {
	Build(ctx context.Context, rec Record) (Thing, error)
}

// Command is an action to run on a thing.
type Command struct {
	ID        string
	Action    string
	Params    map[string]any
	Principal string
}

// CopyState returns a copy of a JSON-shaped map. Nested maps and
// slices are copied as well. A nil map copies to nil.
func CopyState(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyState(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// MergeState applies patch on top of base and returns the result.
// Neither argument is modified.
func MergeState(base, patch map[string]any) map[string]any {
	out := CopyState(base)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	maps.Copy(out, CopyState(patch))
	return out
}
