// Package mock is an in-memory integration for development and tests.
//
// It offers three thing types:
//
//	lamp    on, off, toggle, set_brightness {brightness: 0-100}
//	switch  on, off, toggle
//	sensor  no actions; state comes only from reports
//
// A record whose config sets "locked": true refuses every action with
// thing.ErrForbidden, which is how a real driver reports a device that
// is under local or safety control.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-gateway/internal/platform"
	"github.com/nerrad567/gray-logic-gateway/internal/thing"
)

// PlatformName is the platform this integration registers under.
const PlatformName = "mock"

// Thing types.
const (
	TypeLamp   = "lamp"
	TypeSwitch = "switch"
	TypeSensor = "sensor"
)

// Action names.
const (
	ActionOn            = "on"
	ActionOff           = "off"
	ActionToggle        = "toggle"
	ActionSetBrightness = "set_brightness"
)

// Integration registers the mock builders.
type Integration struct{}

// New returns the mock integration.
func New() *Integration {
	return &Integration{}
}

// Name implements platform.Integration.
func (*Integration) Name() string { return PlatformName }

// Builders implements platform.Integration.
func (*Integration) Builders() map[platform.Key]thing.Builder {
	return map[platform.Key]thing.Builder{
		{Platform: PlatformName, ThingType: TypeLamp}:   platform.BuilderFunc(buildLamp),
		{Platform: PlatformName, ThingType: TypeSwitch}: platform.BuilderFunc(buildSwitch),
		{Platform: PlatformName, ThingType: TypeSensor}: platform.BuilderFunc(buildSensor),
	}
}

func buildLamp(_ context.Context, rec thing.Record) (thing.Thing, error) {
	return newDevice(rec, []string{ActionOn, ActionOff, ActionToggle, ActionSetBrightness},
		map[string]any{"on": false, "brightness": 100.0}), nil
}

func buildSwitch(_ context.Context, rec thing.Record) (thing.Thing, error) {
	return newDevice(rec, []string{ActionOn, ActionOff, ActionToggle},
		map[string]any{"on": false}), nil
}

func buildSensor(_ context.Context, rec thing.Record) (thing.Thing, error) {
	initial := map[string]any{}
	if v, ok := rec.Config["initial"].(map[string]any); ok {
		initial = thing.CopyState(v)
	}
	return newDevice(rec, nil, initial), nil
}

// device is the shared implementation behind every mock thing type.
type device struct {
	id      string
	actions []string
	locked  bool

	mu    sync.Mutex // Observe and State may run outside the directory's lock
	state map[string]any
}

func newDevice(rec thing.Record, actions []string, state map[string]any) *device {
	locked, _ := rec.Config["locked"].(bool) //nolint:errcheck // absent means unlocked
	return &device{id: rec.ID, actions: actions, locked: locked, state: state}
}

func (d *device) ID() string        { return d.id }
func (d *device) Actions() []string { return d.actions }

func (d *device) State() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return thing.CopyState(d.state)
}

func (d *device) Observe(state map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = thing.MergeState(d.state, state)
}

func (d *device) Do(_ context.Context, action string, params map[string]any) error {
	if d.locked {
		return fmt.Errorf("%w: %s is locked", thing.ErrForbidden, d.id)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch action {
	case ActionOn:
		d.state["on"] = true
	case ActionOff:
		d.state["on"] = false
	case ActionToggle:
		on, _ := d.state["on"].(bool) //nolint:errcheck // missing means off
		d.state["on"] = !on
	case ActionSetBrightness:
		level, err := brightness(params)
		if err != nil {
			return err
		}
		d.state["brightness"] = level
		d.state["on"] = level > 0
	default:
		return fmt.Errorf("%w: %q", thing.ErrUnsupportedAction, action)
	}
	return nil
}

func brightness(params map[string]any) (float64, error) {
	raw, ok := params["brightness"]
	if !ok {
		return 0, fmt.Errorf("%w: brightness is required", thing.ErrInvalidParams)
	}
	level, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: brightness must be a number", thing.ErrInvalidParams)
	}
	if level < 0 || level > 100 {
		return 0, fmt.Errorf("%w: brightness must be between 0 and 100", thing.ErrInvalidParams)
	}
	return level, nil
}
