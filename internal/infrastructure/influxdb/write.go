package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementThingState   = "thing_state"
	MeasurementThingCommand = "thing_commands"
)

// WriteThingState records a thing's state snapshot.
//
// Numeric and boolean attributes become fields; strings are kept as string
// fields. Nested values are skipped since line protocol has no structure.
// Nothing is written when no attribute is representable.
func (c *Client) WriteThingState(thingID, platform, thingType string, state map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := stateFields(state)
	if len(fields) == 0 {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementThingState,
		map[string]string{
			"thing_id": thingID,
			"platform": platform,
			"type":     thingType,
		},
		fields,
		at,
	))
}

// WriteThingCommand records that an action was accepted for a thing.
func (c *Client) WriteThingCommand(thingID, action, principal string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementThingCommand,
		map[string]string{
			"thing_id": thingID,
			"action":   action,
		},
		map[string]interface{}{
			"principal": principal,
			"count":     1,
		},
		at,
	))
}

func stateFields(state map[string]any) map[string]interface{} {
	fields := make(map[string]interface{}, len(state))
	for k, v := range state {
		switch val := v.(type) {
		case bool, string, float64, float32, int, int64, int32, uint, uint64, uint32:
			fields[k] = val
		}
	}
	return fields
}
