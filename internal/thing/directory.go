package thing

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/notify"
)

// Logger defines the logging interface used by the Directory.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// entry is one thing in the directory.
type entry struct {
	// mu serialises building, actions and state updates on this thing.
	// Lock order: entry.mu before Directory.mu, never the reverse.
	mu sync.Mutex

	record  Record  // guarded by Directory.mu
	live    Thing   // guarded by mu
	builtBy Builder // builder that produced live; guarded by mu
}

// Directory holds every known thing in insertion order.
//
// Thread Safety:
//   - Get, List and Len take the read lock only.
//   - Execute and UpdateState hold the target thing's own mutex for the
//     whole operation, including event delivery, so observers see the
//     state changes of one thing in the order they happened. Observers
//     must not call Execute or UpdateState for the same thing.
type Directory struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry

	bus    *notify.Bus
	logger Logger
	now    func() time.Time
}

// NewDirectory creates an empty directory with its own notification bus.
func NewDirectory() *Directory {
	return &Directory{
		entries: make(map[string]*entry),
		bus:     notify.NewBus(),
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the directory and its bus.
func (d *Directory) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
	d.bus.SetLogger(logger)
}

// Events returns the subscribe-only view of the directory's bus.
func (d *Directory) Events() notify.Observable {
	return d.bus
}

// BusStats reports notification bus activity.
func (d *Directory) BusStats() notify.Stats {
	return d.bus.Stats()
}

// Load adds every record, in order. It stops at the first invalid or
// duplicate record.
func (d *Directory) Load(records []Record) error {
	for i := range records {
		if err := d.Add(records[i]); err != nil {
			return fmt.Errorf("loading thing %q: %w", records[i].ID, err)
		}
	}
	d.logger.Info("thing directory loaded", "count", len(records))
	return nil
}

// Add appends a record. The live thing is built on first use.
func (d *Directory) Add(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries[rec.ID]; ok {
		return ErrExists
	}
	d.entries[rec.ID] = &entry{record: rec.DeepCopy()}
	d.order = append(d.order, rec.ID)
	return nil
}

// Get returns a copy of the record for id.
func (d *Directory) Get(id string) (Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return e.record.DeepCopy(), nil
}

// List returns copies of all records in insertion order.
func (d *Directory) List() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Record, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.entries[id].record.DeepCopy())
	}
	return out
}

// Len returns the number of things.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

func (d *Directory) lookup(id string) *entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entries[id]
}

// Actions returns the actions the live thing offers, building it with b
// if needed.
func (d *Directory) Actions(ctx context.Context, id string, b Builder) ([]string, error) {
	e := d.lookup(id)
	if e == nil {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	live, err := d.ensureLive(ctx, e, b)
	if err != nil {
		return nil, err
	}
	return slices.Clone(live.Actions()), nil
}

// Execute runs cmd on the thing, building it with b if needed, and
// publishes exactly one state change event on success. It returns the
// thing's state after the action.
func (d *Directory) Execute(ctx context.Context, id string, b Builder, cmd Command) (map[string]any, error) {
	e := d.lookup(id)
	if e == nil {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	live, err := d.ensureLive(ctx, e, b)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(live.Actions(), cmd.Action) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, cmd.Action)
	}

	if err := live.Do(ctx, cmd.Action, CopyState(cmd.Params)); err != nil {
		return nil, err
	}

	at := d.now().UTC()
	state := CopyState(live.State())
	rec := d.setState(e, state, at)

	d.bus.Publish(ctx, notify.Event{
		Type:      notify.EventStateChanged,
		ThingID:   id,
		Platform:  rec.Platform,
		ThingType: rec.Type,
		Action:    cmd.Action,
		Params:    CopyState(cmd.Params),
		State:     CopyState(state),
		Principal: cmd.Principal,
		CommandID: cmd.ID,
		Source:    notify.SourceCommand,
		Timestamp: at,
	})

	d.logger.Debug("thing action executed", "thing_id", id, "action", cmd.Action, "command_id", cmd.ID)
	return state, nil
}

// UpdateState merges a state report from an integration into the
// thing's state and publishes a state change event. source names the
// reporter, usually the platform.
func (d *Directory) UpdateState(ctx context.Context, id, source string, patch map[string]any) error {
	e := d.lookup(id)
	if e == nil {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if obs, ok := e.live.(Observing); ok {
		obs.Observe(CopyState(patch))
	}

	d.mu.RLock()
	merged := MergeState(e.record.State, patch)
	d.mu.RUnlock()

	at := d.now().UTC()
	rec := d.setState(e, merged, at)

	d.bus.Publish(ctx, notify.Event{
		Type:      notify.EventStateChanged,
		ThingID:   id,
		Platform:  rec.Platform,
		ThingType: rec.Type,
		State:     CopyState(merged),
		Source:    source,
		Timestamp: at,
	})
	return nil
}

// ensureLive returns the live thing for e, building it with b when there
// is none yet or when b is not the builder that produced the current one.
// A rebuilt thing gets the last known state. Must be called with e.mu held.
func (d *Directory) ensureLive(ctx context.Context, e *entry, b Builder) (Thing, error) {
	if e.live != nil && (b == nil || sameBuilder(e.builtBy, b)) {
		return e.live, nil
	}
	if b == nil {
		return nil, ErrNoBuilder
	}
	replacing := e.live != nil

	d.mu.RLock()
	rec := e.record.DeepCopy()
	d.mu.RUnlock()

	live, err := b.Build(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("building thing %q: %w", rec.ID, err)
	}

	// Restore the last known state into things that accept it.
	if obs, ok := live.(Observing); ok && len(rec.State) > 0 {
		obs.Observe(rec.State)
	}

	e.live, e.builtBy = live, b
	d.logger.Debug("live thing built", "thing_id", rec.ID, "platform", rec.Platform, "type", rec.Type,
		"replaced", replacing)
	return live, nil
}

// sameBuilder reports whether a and b are the same builder. Builders whose
// dynamic values cannot be compared, such as bare funcs, are assumed to be
// unchanged; platform.Registry hands out comparable handles.
func sameBuilder(a, b Builder) bool {
	if a == nil || b == nil {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if !va.Comparable() || !vb.Comparable() {
		return true
	}
	return a == b
}

// setState replaces the record's state and returns a copy of the
// updated record. Must be called with e.mu held.
func (d *Directory) setState(e *entry, state map[string]any, at time.Time) Record {
	d.mu.Lock()
	defer d.mu.Unlock()

	e.record.State = CopyState(state)
	e.record.StateUpdatedAt = &at
	return e.record.DeepCopy()
}
