// Package telemetry writes thing state changes to the time-series store.
//
// Recorder subscribes to the thing directory's bus. Every event becomes
// a state point; events caused by a command also become a command
// point, so dashboards can tell user actions from device reports.
package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/notify"
)

// Writer is the subset of the InfluxDB client the recorder needs.
// Writes are batched and never block.
type Writer interface {
	WriteThingState(thingID, platform, thingType string, state map[string]any, at time.Time)
	WriteThingCommand(thingID, action, principal string, at time.Time)
}

// Recorder is a bus observer that forwards events to a Writer.
type Recorder struct {
	w Writer
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{w: w}
}

// Notify implements notify.Observer.
func (r *Recorder) Notify(_ context.Context, e notify.Event) error {
	if e.Type != notify.EventStateChanged {
		return nil
	}

	at := e.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	r.w.WriteThingState(e.ThingID, e.Platform, e.ThingType, e.State, at)
	if e.Source == notify.SourceCommand {
		r.w.WriteThingCommand(e.ThingID, e.Action, e.Principal, at)
	}
	return nil
}

// String names the observer in bus logs.
func (r *Recorder) String() string {
	return "telemetry-recorder"
}
