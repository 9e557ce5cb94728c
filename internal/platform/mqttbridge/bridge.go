package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-gateway/internal/platform"
	"github.com/nerrad567/gray-logic-gateway/internal/thing"
)

// IntegrationName is what the bridge integration reports as its name.
const IntegrationName = "mqtt"

// DefaultActions are offered by bridge things whose config does not list
// their own.
var DefaultActions = []string{"on", "off", "toggle", "set_brightness"}

// Client is the part of the MQTT client the bridge needs.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	QoS() byte
}

// StateSink receives state reports. thing.Directory implements it.
type StateSink interface {
	UpdateState(ctx context.Context, id, source string, patch map[string]any) error
}

// Logger is the subset of logging.Logger the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// CommandMessage is the payload published on a command topic.
type CommandMessage struct {
	ThingID   string         `json:"thing_id"`
	Type      string         `json:"type"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params"`
	Timestamp time.Time      `json:"timestamp"`
}

// Integration routes things of the configured protocols over MQTT.
type Integration struct {
	client     Client
	protocols  []string
	thingTypes []string
	topics     mqtt.Topics
	logger     Logger

	mu         sync.Mutex
	subscribed []string
}

// New creates a bridge integration for the given protocols and types.
func New(client Client, protocols, thingTypes []string) *Integration {
	return &Integration{
		client:     client,
		protocols:  slices.Clone(protocols),
		thingTypes: slices.Clone(thingTypes),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the integration.
func (in *Integration) SetLogger(logger Logger) {
	if logger != nil {
		in.logger = logger
	}
}

// Name implements platform.Integration.
func (in *Integration) Name() string { return IntegrationName }

// Builders implements platform.Integration: one builder per protocol and
// thing type.
func (in *Integration) Builders() map[platform.Key]thing.Builder {
	builders := make(map[platform.Key]thing.Builder, len(in.protocols)*len(in.thingTypes))
	for _, p := range in.protocols {
		for _, t := range in.thingTypes {
			builders[platform.Key{Platform: p, ThingType: t}] = platform.BuilderFunc(in.build)
		}
	}
	return builders
}

func (in *Integration) build(_ context.Context, rec thing.Record) (thing.Thing, error) {
	actions, err := configActions(rec.Config)
	if err != nil {
		return nil, err
	}
	return &bridgedThing{
		rec:     rec,
		actions: actions,
		topic:   in.topics.ThingCommand(rec.Platform, rec.ID),
		client:  in.client,
		state:   map[string]any{},
	}, nil
}

func configActions(config map[string]any) ([]string, error) {
	raw, ok := config["actions"]
	if !ok {
		return slices.Clone(DefaultActions), nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: config.actions must be a list", thing.ErrInvalidRecord)
	}
	actions := make([]string, 0, len(list))
	for _, a := range list {
		s, ok := a.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%w: config.actions must hold non-empty strings", thing.ErrInvalidRecord)
		}
		actions = append(actions, s)
	}
	return actions, nil
}

// Start subscribes to the state topic of every protocol and forwards
// reports to sink. ctx bounds the lifetime of the forwarded updates.
func (in *Integration) Start(ctx context.Context, sink StateSink) error {
	for _, p := range in.protocols {
		topic := in.topics.AllThingStates(p)
		if err := in.client.Subscribe(topic, in.client.QoS(), in.stateHandler(ctx, sink)); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		in.mu.Lock()
		in.subscribed = append(in.subscribed, topic)
		in.mu.Unlock()
	}
	in.logger.Info("mqtt bridge started", "protocols", in.protocols, "thing_types", in.thingTypes)
	return nil
}

// Stop unsubscribes from every state topic subscribed by Start.
func (in *Integration) Stop() error {
	in.mu.Lock()
	topics := in.subscribed
	in.subscribed = nil
	in.mu.Unlock()

	var errs []error
	for _, t := range topics {
		if err := in.client.Unsubscribe(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (in *Integration) stateHandler(ctx context.Context, sink StateSink) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		protocol, thingID, ok := mqtt.ParseThingStateTopic(topic)
		if !ok {
			return fmt.Errorf("unexpected state topic %q", topic)
		}

		var state map[string]any
		if err := json.Unmarshal(payload, &state); err != nil {
			return fmt.Errorf("decoding state for %s: %w", thingID, err)
		}

		err := sink.UpdateState(ctx, thingID, protocol, state)
		if errors.Is(err, thing.ErrNotFound) {
			in.logger.Debug("state report for unknown thing", "protocol", protocol, "thing_id", thingID)
			return nil
		}
		return err
	}
}

// bridgedThing forwards actions to the bridge and mirrors reported state.
type bridgedThing struct {
	rec     thing.Record
	actions []string
	topic   string
	client  Client

	mu    sync.Mutex
	state map[string]any
}

func (t *bridgedThing) ID() string        { return t.rec.ID }
func (t *bridgedThing) Actions() []string { return t.actions }

func (t *bridgedThing) State() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return thing.CopyState(t.state)
}

func (t *bridgedThing) Observe(state map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = thing.MergeState(t.state, state)
}

// Do publishes the request. The confirmed state arrives later through
// Observe, so State is unchanged on return.
func (t *bridgedThing) Do(_ context.Context, action string, params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	payload, err := json.Marshal(CommandMessage{
		ThingID:   t.rec.ID,
		Type:      t.rec.Type,
		Action:    action,
		Params:    params,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", thing.ErrInvalidParams, err)
	}
	if err := t.client.Publish(t.topic, payload, t.client.QoS(), false); err != nil {
		return fmt.Errorf("publishing command for %s: %w", t.rec.ID, err)
	}
	return nil
}
