// Package influxdb records thing telemetry in InfluxDB v2.
//
// Every state change published on the gateway's notification bus becomes a
// thing_state point tagged with thing_id, platform and type. Accepted
// actions are written as thing_commands points.
//
// InfluxDB is optional. When influxdb.enabled is false, Connect returns
// ErrDisabled and the gateway runs without telemetry.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
package influxdb
