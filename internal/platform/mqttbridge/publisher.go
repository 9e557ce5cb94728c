package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-gateway/internal/notify"
)

// Publisher is the part of the MQTT client StatePublisher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	QoS() byte
}

// StatePublisher republishes bus events over MQTT: the thing's full state
// retained on graylogic/gateway/thing/{id}/state and the event itself on
// graylogic/gateway/event/{type}.
type StatePublisher struct {
	client Publisher
	topics mqtt.Topics
}

// NewStatePublisher creates a publisher observer.
func NewStatePublisher(client Publisher) *StatePublisher {
	return &StatePublisher{client: client}
}

// Notify implements notify.Observer.
func (p *StatePublisher) Notify(_ context.Context, e notify.Event) error {
	if e.Type == notify.EventStateChanged {
		state, err := json.Marshal(e.State)
		if err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
		if err := p.client.Publish(p.topics.GatewayThingState(e.ThingID), state, p.client.QoS(), true); err != nil {
			return fmt.Errorf("publishing state of %s: %w", e.ThingID, err)
		}
	}

	event, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := p.client.Publish(p.topics.GatewayEvent(string(e.Type)), event, p.client.QoS(), false); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// String names the observer in bus logs.
func (p *StatePublisher) String() string {
	return "mqtt-state-publisher"
}
