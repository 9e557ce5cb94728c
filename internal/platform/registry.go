// Package platform maps (platform, thing type) pairs to the builders that
// construct live things.
//
// Integrations install their builders at startup and uninstall them on
// teardown. The gateway resolves a builder whenever it needs to reach a
// live thing; a thing whose pair has no builder is unreachable.
//
// There is no package-level registry. The composition root owns one
// Registry and passes it to whoever needs it.
package platform

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-gateway/internal/thing"
)

// ErrKeyNotFound is returned by Remove when no builder is registered.
var ErrKeyNotFound = errors.New("platform: key not found")

// Key identifies a builder.
type Key struct {
	Platform  string `json:"platform"`
	ThingType string `json:"type"`
}

func (k Key) String() string {
	return k.Platform + "/" + k.ThingType
}

// BuilderFunc adapts a function to thing.Builder.
type BuilderFunc func(ctx context.Context, rec thing.Record) (thing.Thing, error)

// Build implements thing.Builder.
func (f BuilderFunc) Build(ctx context.Context, rec thing.Record) (thing.Thing, error) {
	return f(ctx, rec)
}

// Integration is a family of drivers sharing a platform name.
type Integration interface {
	Name() string
	Builders() map[Key]thing.Builder
}

// Logger is the subset of logging.Logger the registry needs.
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// registration is what Resolve hands out. Each Register or Install makes
// a new one, so the thing directory can tell a replaced builder from the
// one that built a live thing even when the builders compare equal.
type registration struct {
	thing.Builder
}

// Registry holds at most one builder per Key.
//
// Thread Safety:
//   - Resolve and Keys take the read lock; many may run at once.
//   - Register, Remove, Install and Uninstall take the write lock.
type Registry struct {
	mu       sync.RWMutex
	builders map[Key]*registration
	logger   Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[Key]*registration),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Register stores b under (platformName, thingType), replacing any
// builder already there. It panics if b is nil, as http.Handle does.
func (r *Registry) Register(platformName, thingType string, b thing.Builder) {
	if b == nil {
		panic("platform: nil builder for " + Key{platformName, thingType}.String())
	}

	k := Key{Platform: platformName, ThingType: thingType}

	r.mu.Lock()
	_, replaced := r.builders[k]
	r.builders[k] = &registration{Builder: b}
	r.mu.Unlock()

	if replaced {
		r.logger.Debug("builder replaced", "key", k.String())
	}
}

// Resolve returns the builder for (platformName, thingType), or def when
// none is registered. It never fails. A registered builder comes back
// wrapped in a handle that is the same for every Resolve until the key is
// registered again; Unwrap recovers the builder itself.
func (r *Registry) Resolve(platformName, thingType string, def thing.Builder) thing.Builder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if reg, ok := r.builders[Key{Platform: platformName, ThingType: thingType}]; ok {
		return reg
	}
	return def
}

// Unwrap returns the builder behind a handle from Resolve. Anything else
// is returned unchanged.
func Unwrap(b thing.Builder) thing.Builder {
	if reg, ok := b.(*registration); ok {
		return reg.Builder
	}
	return b
}

// Remove deletes the builder for (platformName, thingType). It returns
// ErrKeyNotFound when none is registered.
func (r *Registry) Remove(platformName, thingType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(Key{Platform: platformName, ThingType: thingType})
}

func (r *Registry) removeLocked(k Key) error {
	if _, ok := r.builders[k]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, k)
	}
	delete(r.builders, k)
	return nil
}

// Keys returns every registered key, sorted by platform then type.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	keys := make([]Key, 0, len(r.builders))
	for k := range r.builders {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	slices.SortFunc(keys, func(a, b Key) int {
		if c := strings.Compare(a.Platform, b.Platform); c != 0 {
			return c
		}
		return strings.Compare(a.ThingType, b.ThingType)
	})
	return keys
}

// Len returns the number of registered builders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.builders)
}

// Install registers every builder of in.
func (r *Registry) Install(in Integration) {
	builders := in.Builders()

	r.mu.Lock()
	for k, b := range builders {
		if b == nil {
			continue
		}
		r.builders[k] = &registration{Builder: b}
	}
	r.mu.Unlock()

	r.logger.Info("integration installed", "integration", in.Name(), "builders", len(builders))
}

// Uninstall removes every builder of in. Keys that were already removed
// are reported together as ErrKeyNotFound; the rest are still removed.
func (r *Registry) Uninstall(in Integration) error {
	var errs []error

	r.mu.Lock()
	for k := range in.Builders() {
		if err := r.removeLocked(k); err != nil {
			errs = append(errs, err)
		}
	}
	r.mu.Unlock()

	r.logger.Info("integration uninstalled", "integration", in.Name())
	return errors.Join(errs...)
}
