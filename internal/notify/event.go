package notify

import "time"

// EventType identifies what happened.
type EventType string

const (
	// EventStateChanged is published when a thing's observable state
	// changes, either because a command executed or because an
	// integration reported a new state.
	EventStateChanged EventType = "thing.state_changed"
)

// Event sources other than a platform name.
const (
	SourceCommand = "command"
)

// Event is the payload delivered to observers.
type Event struct {
	Type      EventType      `json:"type"`
	ThingID   string         `json:"thing_id"`
	Platform  string         `json:"platform,omitempty"`
	ThingType string         `json:"thing_type,omitempty"`
	Action    string         `json:"action,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	Principal string         `json:"principal,omitempty"`
	CommandID string         `json:"command_id,omitempty"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
}
