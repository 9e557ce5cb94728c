package thing

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gateway/migrations"
)

// testDB opens a temporary SQLite database with the gateway schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "things.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

func strPtr(s string) *string { return &s }

// fakeLamp is a minimal live thing used across tests.
type fakeLamp struct {
	id       string
	on       bool
	locked   bool
	observed map[string]any
	calls    atomic.Int32
	inFlight atomic.Int32
	overlap  atomic.Bool
	hold     chan struct{}
}

func (l *fakeLamp) ID() string        { return l.id }
func (l *fakeLamp) Actions() []string { return []string{"on", "off", "toggle"} }

func (l *fakeLamp) State() map[string]any {
	return map[string]any{"on": l.on}
}

func (l *fakeLamp) Do(_ context.Context, action string, params map[string]any) error {
	if l.inFlight.Add(1) > 1 {
		l.overlap.Store(true)
	}
	defer l.inFlight.Add(-1)
	l.calls.Add(1)

	if l.hold != nil {
		<-l.hold
	}
	if l.locked {
		return ErrForbidden
	}
	if _, ok := params["bad"]; ok {
		return ErrInvalidParams
	}

	switch action {
	case "on":
		l.on = true
	case "off":
		l.on = false
	case "toggle":
		l.on = !l.on
	}
	return nil
}

func (l *fakeLamp) Observe(state map[string]any) {
	l.observed = state
	if v, ok := state["on"].(bool); ok {
		l.on = v
	}
}

// lampBuilder builds fakeLamps and remembers them by ID.
type lampBuilder struct {
	mu     sync.Mutex
	built  map[string]*fakeLamp
	builds int
	fail   bool
	locked bool
}

func newLampBuilder() *lampBuilder {
	return &lampBuilder{built: make(map[string]*fakeLamp)}
}

func (b *lampBuilder) Build(_ context.Context, rec Record) (Thing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return nil, errors.New("driver offline")
	}
	b.builds++
	l := &fakeLamp{id: rec.ID, locked: b.locked}
	b.built[rec.ID] = l
	return l, nil
}

func (b *lampBuilder) lamp(id string) *fakeLamp {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.built[id]
}

func lampRecord(id, placement string) Record {
	rec := Record{ID: id, Platform: "mock", Type: "lamp", Name: "Lamp " + id}
	if placement != "" {
		rec.PlacementID = strPtr(placement)
	}
	return rec
}
