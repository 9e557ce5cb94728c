package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes.
//
// Bridge topics use the flat scheme graylogic/{category}/{protocol}/{thing_id}.
// Topics the gateway itself owns live under graylogic/gateway.
const (
	TopicPrefix        = "graylogic"
	TopicPrefixGateway = "graylogic/gateway"
	TopicPrefixSystem  = "graylogic/system"
)

// Topics provides builders for Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.ThingCommand("knx", "light-living")
//	// Returns: "graylogic/command/knx/light-living"
type Topics struct{}

// ThingCommand is where the gateway sends action requests for a thing
// driven by a protocol bridge.
func (Topics) ThingCommand(protocol, thingID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, thingID)
}

// ThingState is where a protocol bridge reports a thing's confirmed state.
func (Topics) ThingState(protocol, thingID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, thingID)
}

// AllThingStates matches every state report from one bridge protocol.
//
// Pattern: graylogic/state/{protocol}/+
func (Topics) AllThingStates(protocol string) string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, protocol)
}

// GatewayThingState is the retained, authoritative state the gateway
// republishes after every change.
//
// Example: graylogic/gateway/thing/light-living/state
func (Topics) GatewayThingState(thingID string) string {
	return fmt.Sprintf("%s/thing/%s/state", TopicPrefixGateway, thingID)
}

// GatewayEvent carries notification events by type.
//
// Example: graylogic/gateway/event/thing.state_changed
func (Topics) GatewayEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixGateway, eventType)
}

// SystemStatus is the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ParseThingStateTopic extracts the protocol and thing ID from a
// graylogic/state/{protocol}/{thing_id} topic.
func ParseThingStateTopic(topic string) (protocol, thingID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "state" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}
