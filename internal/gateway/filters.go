package gateway

import "github.com/nerrad567/gray-logic-gateway/internal/thing"

// Filters restricts ListThings. Keys are attribute names, values are
// compared with string equality, and every recognised key must match.
// Unrecognised keys are ignored.
type Filters map[string]string

// Recognised filter keys.
const (
	FilterID        = "id"
	FilterName      = "name"
	FilterPlatform  = "platform"
	FilterType      = "type"
	FilterPlacement = "placement"
)

var filterFields = map[string]func(*thing.Record) string{
	FilterID:        func(r *thing.Record) string { return r.ID },
	FilterName:      func(r *thing.Record) string { return r.Name },
	FilterPlatform:  func(r *thing.Record) string { return r.Platform },
	FilterType:      func(r *thing.Record) string { return r.Type },
	FilterPlacement: func(r *thing.Record) string { return r.Placement() },
}

// Match reports whether rec satisfies every recognised filter.
func (f Filters) Match(rec *thing.Record) bool {
	for key, want := range f {
		field, ok := filterFields[key]
		if !ok {
			continue
		}
		if field(rec) != want {
			return false
		}
	}
	return true
}
