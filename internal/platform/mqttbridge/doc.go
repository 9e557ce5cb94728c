// Package mqttbridge drives things that live behind an MQTT protocol
// bridge (KNX, Zigbee and so on).
//
// Each configured bridge protocol becomes a platform name. For a thing on
// protocol p the gateway publishes action requests to
//
//	graylogic/command/{p}/{thing_id}
//
// and the bridge reports confirmed state on
//
//	graylogic/state/{p}/{thing_id}
//
// Integration.Start subscribes to the state topics and feeds reports into
// the thing directory. A dispatched command is accepted once the request
// is published; the bridge's later state report is what changes the
// thing's confirmed state.
//
// StatePublisher is a bus observer that republishes every state change
// as a retained message for dashboards and other site services.
package mqttbridge
