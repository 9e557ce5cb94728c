package gateway

import (
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/thing"
)

// ThingSummary is the list view of a thing.
type ThingSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Platform  string  `json:"platform"`
	Type      string  `json:"type"`
	Placement *string `json:"placement"`
}

// ThingDetail is the full view of a thing.
type ThingDetail struct {
	ThingSummary
	Reachable      bool           `json:"reachable"`
	Actions        []string       `json:"actions"`
	State          map[string]any `json:"state"`
	StateUpdatedAt *time.Time     `json:"state_updated_at,omitempty"`
}

// Ack acknowledges an accepted command. Acceptance does not mean the
// device has finished acting.
type Ack struct {
	CommandID string         `json:"command_id"`
	Status    string         `json:"message"`
	State     map[string]any `json:"-"`
}

// AckAccepted is the only Ack status.
const AckAccepted = "accepted"

func summarize(rec *thing.Record) ThingSummary {
	s := ThingSummary{
		ID:       rec.ID,
		Name:     rec.Name,
		Platform: rec.Platform,
		Type:     rec.Type,
	}
	if rec.PlacementID != nil {
		p := *rec.PlacementID
		s.Placement = &p
	}
	return s
}
