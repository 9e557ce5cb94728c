package thing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-gateway/internal/notify"
)

// eventLog collects published events.
type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) Notify(_ context.Context, e notify.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) all() []notify.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]notify.Event(nil), l.events...)
}

func newTestDirectory(t *testing.T, records ...Record) (*Directory, *eventLog) {
	t.Helper()
	d := NewDirectory()
	if err := d.Load(records); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	log := &eventLog{}
	if err := d.Events().Subscribe(log); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	return d, log
}

func TestDirectory_ListPreservesInsertionOrder(t *testing.T) {
	d, _ := newTestDirectory(t,
		lampRecord("c", ""), lampRecord("a", "R1"), lampRecord("b", "R1"))

	got := d.List()
	if len(got) != 3 {
		t.Fatalf("List() len = %d, want 3", len(got))
	}
	for i, want := range []string{"c", "a", "b"} {
		if got[i].ID != want {
			t.Errorf("List()[%d] = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestDirectory_AddRejectsDuplicatesAndInvalid(t *testing.T) {
	d, _ := newTestDirectory(t, lampRecord("a", ""))

	if err := d.Add(lampRecord("a", "")); !errors.Is(err, ErrExists) {
		t.Errorf("Add(duplicate) error = %v, want ErrExists", err)
	}
	if err := d.Add(Record{ID: "x"}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Add(invalid) error = %v, want ErrInvalidRecord", err)
	}
	if err := d.Load([]Record{lampRecord("z", ""), lampRecord("a", "")}); !errors.Is(err, ErrExists) {
		t.Errorf("Load(duplicate) error = %v, want ErrExists", err)
	}
}

func TestDirectory_GetReturnsCopy(t *testing.T) {
	d, _ := newTestDirectory(t, lampRecord("a", "R1"))

	rec, err := d.Get("a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	*rec.PlacementID = "mutated"

	again, _ := d.Get("a")
	if again.Placement() != "R1" {
		t.Errorf("Placement() = %q, caller mutation leaked into directory", again.Placement())
	}

	if _, err := d.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDirectory_ExecutePublishesOneEvent(t *testing.T) {
	d, log := newTestDirectory(t, lampRecord("Th1", ""))
	b := newLampBuilder()

	state, err := d.Execute(context.Background(), "Th1", b, Command{
		ID: "cmd-1", Action: "on", Params: map[string]any{}, Principal: "admin",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if state["on"] != true {
		t.Errorf("state = %v, want on=true", state)
	}

	events := log.all()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	e := events[0]
	if e.Type != notify.EventStateChanged || e.ThingID != "Th1" || e.Action != "on" ||
		e.CommandID != "cmd-1" || e.Principal != "admin" || e.Source != notify.SourceCommand {
		t.Errorf("event = %+v", e)
	}
	if e.Platform != "mock" || e.ThingType != "lamp" {
		t.Errorf("event platform/type = %q/%q", e.Platform, e.ThingType)
	}

	rec, _ := d.Get("Th1")
	if rec.State["on"] != true || rec.StateUpdatedAt == nil {
		t.Errorf("record state = %v (updated %v)", rec.State, rec.StateUpdatedAt)
	}
}

func TestDirectory_ExecuteBuildsOnce(t *testing.T) {
	d, _ := newTestDirectory(t, lampRecord("Th1", ""))
	b := newLampBuilder()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := d.Execute(ctx, "Th1", b, Command{Action: "toggle"}); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	if b.builds != 1 {
		t.Errorf("builds = %d, want 1", b.builds)
	}
}

func TestDirectory_ExecuteRebuildsWithReplacementBuilder(t *testing.T) {
	d, _ := newTestDirectory(t, lampRecord("Th1", ""))
	ctx := context.Background()

	first := newLampBuilder()
	if _, err := d.Execute(ctx, "Th1", first, Command{Action: "on"}); err != nil {
		t.Fatalf("Execute(first) error = %v", err)
	}

	second := newLampBuilder()
	state, err := d.Execute(ctx, "Th1", second, Command{Action: "toggle"})
	if err != nil {
		t.Fatalf("Execute(second) error = %v", err)
	}
	if first.builds != 1 || second.builds != 1 {
		t.Errorf("builds = %d/%d, want the replacement to build once", first.builds, second.builds)
	}
	// The rebuilt lamp starts from the stored state, so toggle turns it off.
	if state["on"] != false {
		t.Errorf("state = %v, want on=false", state)
	}
	if first.lamp("Th1").calls.Load() != 1 {
		t.Error("the replaced lamp should not serve later commands")
	}

	if _, err := d.Execute(ctx, "Th1", second, Command{Action: "on"}); err != nil {
		t.Fatal(err)
	}
	if second.builds != 1 {
		t.Errorf("builds = %d, want the live lamp reused", second.builds)
	}
}

func TestSameBuilder(t *testing.T) {
	a, b := newLampBuilder(), newLampBuilder()
	fn := funcBuilder(func(context.Context, Record) (Thing, error) { return nil, nil })

	for _, tt := range []struct {
		name string
		x, y Builder
		want bool
	}{
		{"same pointer", a, a, true},
		{"different pointers", a, b, false},
		{"different types", a, fn, false},
		{"funcs cannot be told apart", fn, fn, true},
		{"nil", nil, a, false},
	} {
		if got := sameBuilder(tt.x, tt.y); got != tt.want {
			t.Errorf("%s: sameBuilder() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

type funcBuilder func(context.Context, Record) (Thing, error)

func (f funcBuilder) Build(ctx context.Context, rec Record) (Thing, error) { return f(ctx, rec) }

func TestDirectory_ExecuteErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		d, _ := newTestDirectory(t)
		if _, err := d.Execute(ctx, "nope", newLampBuilder(), Command{Action: "on"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("no builder", func(t *testing.T) {
		d, _ := newTestDirectory(t, lampRecord("Th1", ""))
		if _, err := d.Execute(ctx, "Th1", nil, Command{Action: "on"}); !errors.Is(err, ErrNoBuilder) {
			t.Errorf("error = %v, want ErrNoBuilder", err)
		}
	})

	t.Run("build failure", func(t *testing.T) {
		d, _ := newTestDirectory(t, lampRecord("Th1", ""))
		b := newLampBuilder()
		b.fail = true
		_, err := d.Execute(ctx, "Th1", b, Command{Action: "on"})
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want build error", err)
		}
	})

	tests := []struct {
		name   string
		cmd    Command
		locked bool
		want   error
	}{
		{"unsupported action", Command{Action: "explode"}, false, ErrUnsupportedAction},
		{"invalid params", Command{Action: "on", Params: map[string]any{"bad": 1}}, false, ErrInvalidParams},
		{"forbidden", Command{Action: "on"}, true, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, log := newTestDirectory(t, lampRecord("Th1", ""))
			b := newLampBuilder()
			b.locked = tt.locked

			if _, err := d.Execute(ctx, "Th1", b, tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if n := len(log.all()); n != 0 {
				t.Errorf("failed command published %d events", n)
			}
		})
	}
}

func TestDirectory_ExecuteSerialisesPerThing(t *testing.T) {
	d, _ := newTestDirectory(t, lampRecord("Th1", ""), lampRecord("Th2", ""))
	b := newLampBuilder()
	ctx := context.Background()

	// Build both lamps, then make Th1 block inside Do.
	for _, id := range []string{"Th1", "Th2"} {
		if _, err := d.Execute(ctx, id, b, Command{Action: "off"}); err != nil {
			t.Fatal(err)
		}
	}
	hold := make(chan struct{})
	b.lamp("Th1").hold = hold

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Execute(ctx, "Th1", b, Command{Action: "toggle"})
		}()
	}

	// An unrelated thing is not blocked by Th1.
	if _, err := d.Execute(ctx, "Th2", b, Command{Action: "on"}); err != nil {
		t.Fatalf("Execute(Th2) error = %v", err)
	}

	close(hold)
	wg.Wait()

	lamp := b.lamp("Th1")
	if lamp.overlap.Load() {
		t.Error("actions on the same thing overlapped")
	}
	if got := lamp.calls.Load(); got != 6 {
		t.Errorf("Th1 calls = %d, want 6", got)
	}
}

func TestDirectory_UpdateStateMergesAndPublishes(t *testing.T) {
	rec := lampRecord("Th1", "")
	rec.State = map[string]any{"on": false, "level": 10.0}
	d, log := newTestDirectory(t, rec)
	b := newLampBuilder()
	ctx := context.Background()

	if _, err := d.Actions(ctx, "Th1", b); err != nil {
		t.Fatal(err)
	}
	lamp := b.lamp("Th1")
	if lamp.observed["level"] != 10.0 {
		t.Errorf("stored state not restored into live thing: %v", lamp.observed)
	}

	if err := d.UpdateState(ctx, "Th1", "mqtt", map[string]any{"on": true}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	got, _ := d.Get("Th1")
	if got.State["on"] != true || got.State["level"] != 10.0 {
		t.Errorf("merged state = %v", got.State)
	}
	if !lamp.on {
		t.Error("live thing should observe reported state")
	}

	events := log.all()
	if len(events) != 1 || events[0].Source != "mqtt" || events[0].Action != "" {
		t.Errorf("events = %+v", events)
	}

	if err := d.UpdateState(ctx, "missing", "mqtt", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateState(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDirectory_Actions(t *testing.T) {
	d, _ := newTestDirectory(t, lampRecord("Th1", ""))

	actions, err := d.Actions(context.Background(), "Th1", newLampBuilder())
	if err != nil {
		t.Fatalf("Actions() error = %v", err)
	}
	if len(actions) != 3 {
		t.Errorf("Actions() = %v", actions)
	}
}
