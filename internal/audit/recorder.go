package audit

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-gateway/internal/notify"
)

// Recorder is a bus observer that writes state change events to the
// audit trail. Commands are recorded with the principal that issued
// them; integration reports are recorded with their platform as source.
type Recorder struct {
	repo Repository
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Notify implements notify.Observer.
func (r *Recorder) Notify(ctx context.Context, e notify.Event) error {
	if e.Type != notify.EventStateChanged {
		return nil
	}

	entry := &Entry{
		Action:     ActionStateReport,
		EntityType: EntityThing,
		EntityID:   e.ThingID,
		Source:     e.Source,
		Details:    map[string]any{"state": e.State},
		CreatedAt:  e.Timestamp,
	}
	if e.Source == notify.SourceCommand {
		entry.Action = ActionCommand
		entry.UserID = e.Principal
		entry.Details = map[string]any{
			"action":     e.Action,
			"params":     e.Params,
			"command_id": e.CommandID,
			"state":      e.State,
		}
	}

	if err := r.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("recording %s for %s: %w", entry.Action, e.ThingID, err)
	}
	return nil
}

// String names the observer in bus logs.
func (r *Recorder) String() string {
	return "audit-recorder"
}
