package thing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/notify"
)

// StateWriter is the part of Repository the persister needs.
type StateWriter interface {
	UpdateState(ctx context.Context, id string, state map[string]any, at time.Time) error
}

// StatePersister is a bus observer that writes every state change to
// the repository, so the last known state survives a restart.
type StatePersister struct {
	repo StateWriter
}

// NewStatePersister creates a persister writing to repo.
func NewStatePersister(repo StateWriter) *StatePersister {
	return &StatePersister{repo: repo}
}

// Notify implements notify.Observer.
func (p *StatePersister) Notify(ctx context.Context, e notify.Event) error {
	if e.Type != notify.EventStateChanged {
		return nil
	}
	err := p.repo.UpdateState(ctx, e.ThingID, e.State, e.Timestamp)
	if errors.Is(err, ErrNotFound) {
		// Things added at runtime without a row have nothing to persist.
		return nil
	}
	if err != nil {
		return fmt.Errorf("persisting state of %s: %w", e.ThingID, err)
	}
	return nil
}

// String names the observer in bus logs.
func (p *StatePersister) String() string {
	return "thing-state-persister"
}
