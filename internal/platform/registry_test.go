package platform

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-gateway/internal/thing"
)

// namedBuilder is comparable so tests can check identity.
type namedBuilder struct{ name string }

func (b *namedBuilder) Build(context.Context, thing.Record) (thing.Thing, error) {
	return nil, errors.New(b.name)
}

type fakeIntegration struct {
	name     string
	builders map[Key]thing.Builder
}

func (f fakeIntegration) Name() string                    { return f.name }
func (f fakeIntegration) Builders() map[Key]thing.Builder { return f.builders }

func TestRegistry_RegisterResolve(t *testing.T) {
	r := NewRegistry()
	b := &namedBuilder{"lamp"}

	r.Register("mock", "lamp", b)

	if got := Unwrap(r.Resolve("mock", "lamp", nil)); got != thing.Builder(b) {
		t.Errorf("Resolve(mock, lamp) = %v, want %v", got, b)
	}
	if got := r.Resolve("mock", "switch", nil); got != nil {
		t.Errorf("Resolve(mock, switch) = %v, want nil", got)
	}
	if got := r.Resolve("zigbee", "lamp", nil); got != nil {
		t.Errorf("Resolve(zigbee, lamp) = %v, want nil", got)
	}
}

func TestRegistry_ResolveReturnsDefault(t *testing.T) {
	r := NewRegistry()
	def := &namedBuilder{"default"}

	if got := r.Resolve("mock", "lamp", def); got != thing.Builder(def) {
		t.Errorf("Resolve() = %v, want default", got)
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	first, second := &namedBuilder{"first"}, &namedBuilder{"second"}

	r.Register("mock", "lamp", first)
	r.Register("mock", "lamp", second)

	if got := Unwrap(r.Resolve("mock", "lamp", nil)); got != thing.Builder(second) {
		t.Errorf("Resolve() = %v, want second", got)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_ResolveHandleIdentity(t *testing.T) {
	r := NewRegistry()
	b := &namedBuilder{"lamp"}

	r.Register("mock", "lamp", b)
	h1 := r.Resolve("mock", "lamp", nil)
	h2 := r.Resolve("mock", "lamp", nil)
	if h1 != h2 {
		t.Error("Resolve should return the same handle until the key is registered again")
	}

	// The same builder registered again is still a new registration.
	r.Register("mock", "lamp", b)
	h3 := r.Resolve("mock", "lamp", nil)
	if h3 == h1 {
		t.Error("re-registering should produce a new handle")
	}
	if Unwrap(h3) != thing.Builder(b) {
		t.Errorf("Unwrap(handle) = %v, want %v", Unwrap(h3), b)
	}

	plain := &namedBuilder{"plain"}
	if Unwrap(plain) != thing.Builder(plain) {
		t.Error("Unwrap should return non-handles unchanged")
	}
}

func TestRegistry_RegisterNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register(nil) should panic")
		}
	}()
	NewRegistry().Register("mock", "lamp", nil)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	def := &namedBuilder{"default"}
	r.Register("mock", "lamp", &namedBuilder{"lamp"})

	if err := r.Remove("mock", "lamp"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := r.Resolve("mock", "lamp", def); got != thing.Builder(def) {
		t.Errorf("Resolve() after Remove = %v, want default", got)
	}

	err := r.Remove("mock", "lamp")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("second Remove() error = %v, want ErrKeyNotFound", err)
	}
	if err != nil && !strings.Contains(err.Error(), "mock/lamp") {
		t.Errorf("error %q should name the key", err)
	}
}

func TestRegistry_KeysSorted(t *testing.T) {
	r := NewRegistry()
	b := &namedBuilder{"x"}
	r.Register("mqtt", "sensor", b)
	r.Register("mock", "switch", b)
	r.Register("mock", "lamp", b)

	want := []Key{
		{"mock", "lamp"},
		{"mock", "switch"},
		{"mqtt", "sensor"},
	}
	if got := r.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if got := NewRegistry().Keys(); len(got) != 0 {
		t.Errorf("empty registry Keys() = %v", got)
	}
}

func TestRegistry_InstallUninstall(t *testing.T) {
	r := NewRegistry()
	in := fakeIntegration{name: "mock", builders: map[Key]thing.Builder{
		{"mock", "lamp"}:   &namedBuilder{"lamp"},
		{"mock", "switch"}: &namedBuilder{"switch"},
	}}

	r.Install(in)
	if r.Len() != 2 {
		t.Fatalf("Len() after Install = %d, want 2", r.Len())
	}

	if err := r.Remove("mock", "switch"); err != nil {
		t.Fatal(err)
	}

	// The already-removed key is reported and the rest are still removed.
	if err := r.Uninstall(in); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Uninstall() error = %v, want ErrKeyNotFound", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Uninstall = %d, want 0", r.Len())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	b := &namedBuilder{"x"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("mock", "lamp", b)
			_ = r.Remove("mock", "lamp")
		}()
		go func() {
			defer wg.Done()
			got := r.Resolve("mock", "lamp", nil)
			if got != nil && Unwrap(got) != thing.Builder(b) {
				t.Errorf("Resolve() = %v, want %v", got, b)
			}
			_ = r.Keys()
		}()
	}
	wg.Wait()
}

func TestBuilderFunc(t *testing.T) {
	called := false
	f := BuilderFunc(func(_ context.Context, rec thing.Record) (thing.Thing, error) {
		called = rec.ID == "Th1"
		return nil, nil
	})
	if _, err := f.Build(context.Background(), thing.Record{ID: "Th1"}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !called {
		t.Error("BuilderFunc was not called with the record")
	}
}
