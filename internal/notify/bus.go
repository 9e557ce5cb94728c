package notify

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// Logger is the subset of logging.Logger the bus needs.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

var (
	// ErrNilObserver is returned when subscribing a nil observer.
	ErrNilObserver = errors.New("notify: nil observer")

	// ErrNotComparable is returned when an observer cannot be compared
	// with ==, which the bus needs to deduplicate and remove it.
	ErrNotComparable = errors.New("notify: observer is not comparable")
)

// Observer receives published events.
//
// Observers are identified by equality, so implementations should be
// pointer types. Use Named to adapt a plain function.
type Observer interface {
	Notify(ctx context.Context, e Event) error
}

// Observable is the subscribe-only view of a Bus handed to non-owners.
type Observable interface {
	Subscribe(o Observer) error
	Unsubscribe(o Observer)
}

// NamedObserver wraps a function so it can be subscribed and later
// unsubscribed by pointer identity.
type NamedObserver struct {
	name string
	fn   func(ctx context.Context, e Event) error
}

// Named adapts fn into an Observer. The name appears in delivery failure logs.
func Named(name string, fn func(ctx context.Context, e Event) error) *NamedObserver {
	return &NamedObserver{name: name, fn: fn}
}

// Notify implements Observer.
func (n *NamedObserver) Notify(ctx context.Context, e Event) error {
	return n.fn(ctx, e)
}

// String returns the observer's name.
func (n *NamedObserver) String() string {
	return n.name
}

// Stats is a point-in-time snapshot of bus activity.
type Stats struct {
	Observers int    `json:"observers"`
	Published uint64 `json:"published"`
	Failures  uint64 `json:"failures"`
}

// Bus is a synchronous observer registry.
//
// Thread Safety:
//   - Subscribe and Unsubscribe take the write lock and replace the
//     observer slice rather than mutating it.
//   - Publish copies the slice header under the read lock and delivers
//     outside any lock, so observers may (un)subscribe from Notify.
type Bus struct {
	mu        sync.RWMutex
	observers []Observer
	logger    Logger

	published atomic.Uint64
	failures  atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{logger: noopLogger{}}
}

// SetLogger sets the logger used for delivery failures.
func (b *Bus) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

// Subscribe registers o for all future publications. Subscribing an
// observer that is already registered is a no-op.
func (b *Bus) Subscribe(o Observer) error {
	if o == nil {
		return ErrNilObserver
	}
	if !isComparable(o) {
		return fmt.Errorf("%w: %T", ErrNotComparable, o)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.indexOf(o) >= 0 {
		return nil
	}

	next := make([]Observer, len(b.observers), len(b.observers)+1)
	copy(next, b.observers)
	b.observers = append(next, o)
	return nil
}

// Unsubscribe removes o. Removing an observer that is not registered is
// a no-op.
func (b *Bus) Unsubscribe(o Observer) {
	if o == nil || !isComparable(o) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(o)
	if i < 0 {
		return
	}

	next := make([]Observer, 0, len(b.observers)-1)
	next = append(next, b.observers[:i]...)
	next = append(next, b.observers[i+1:]...)
	b.observers = next
}

// isComparable checks the dynamic value, not just its type: a struct with an
// interface field is a comparable type but panics on == when that field
// holds a func or map.
func isComparable(o Observer) bool {
	return reflect.ValueOf(o).Comparable()
}

// indexOf must be called with mu held.
func (b *Bus) indexOf(o Observer) int {
	for i, existing := range b.observers {
		if existing == o {
			return i
		}
	}
	return -1
}

// Publish delivers e to every observer subscribed at the time of the
// call, in subscription order, and returns the number of observers that
// failed. Failures never stop delivery to later observers.
func (b *Bus) Publish(ctx context.Context, e Event) int {
	b.mu.RLock()
	snapshot := b.observers
	logger := b.logger
	b.mu.RUnlock()

	b.published.Add(1)

	failed := 0
	for _, o := range snapshot {
		if err := deliver(ctx, o, e); err != nil {
			failed++
			b.failures.Add(1)
			logger.Error("observer failed",
				"observer", observerName(o),
				"event", e.Type,
				"thing_id", e.ThingID,
				"error", err,
			)
		}
	}

	logger.Debug("event published", "event", e.Type, "thing_id", e.ThingID, "observers", len(snapshot))
	return failed
}

// deliver calls o.Notify and converts a panic into an error.
func deliver(ctx context.Context, o Observer, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return o.Notify(ctx, e)
}

func observerName(o Observer) string {
	if s, ok := o.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", o)
}

// Len returns the number of subscribed observers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	return Stats{
		Observers: b.Len(),
		Published: b.published.Load(),
		Failures:  b.failures.Load(),
	}
}
