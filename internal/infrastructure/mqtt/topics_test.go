package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ThingCommand", topics.ThingCommand("knx", "light-living"), "graylogic/command/knx/light-living"},
		{"ThingState", topics.ThingState("knx", "light-living"), "graylogic/state/knx/light-living"},
		{"AllThingStates", topics.AllThingStates("zigbee"), "graylogic/state/zigbee/+"},
		{"GatewayThingState", topics.GatewayThingState("lamp-1"), "graylogic/gateway/thing/lamp-1/state"},
		{"GatewayEvent", topics.GatewayEvent("thing.state_changed"), "graylogic/gateway/event/thing.state_changed"},
		{"SystemStatus", topics.SystemStatus(), "graylogic/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestParseThingStateTopic(t *testing.T) {
	tests := []struct {
		topic        string
		wantProtocol string
		wantID       string
		wantOK       bool
	}{
		{"graylogic/state/knx/light-living", "knx", "light-living", true},
		{"graylogic/command/knx/light-living", "", "", false},
		{"graylogic/state/knx", "", "", false},
		{"graylogic/state/knx/a/b", "", "", false},
		{"other/state/knx/light", "", "", false},
		{"graylogic/state//light", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			protocol, id, ok := ParseThingStateTopic(tt.topic)
			if ok != tt.wantOK || protocol != tt.wantProtocol || id != tt.wantID {
				t.Errorf("ParseThingStateTopic(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, protocol, id, ok, tt.wantProtocol, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestTopicRoundTrip(t *testing.T) {
	protocol, id, ok := ParseThingStateTopic(Topics{}.ThingState("dali", "dimmer-3"))
	if !ok || protocol != "dali" || id != "dimmer-3" {
		t.Errorf("round trip = (%q, %q, %v)", protocol, id, ok)
	}
}
