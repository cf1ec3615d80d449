// Package command models the JSON commands of the QCX local protocol.
//
// Every command serializes to a JSON object with a required "type"
// field. Commands that start a transition on the device (color,
// temperature, brightness) declare a pause: the connection handler
// waits it out before writing the next command of the same message, so
// the device has time to complete the transition.
package command

import (
	"encoding/json"
	"time"

	"github.com/backkem/klyqa-lan/pkg/device"
)

// Command is one unit of work inside a message.
type Command interface {
	// Type returns the wire "type" tag.
	Type() string

	// JSON returns the serialized command.
	JSON() (string, error)

	// PauseAfter returns how long to wait after sending this command
	// before the next one may be written. Zero for most commands.
	PauseAfter() time.Duration

	// Check validates the command against the target device's config.
	// A nil device passes: nothing is known to check against.
	Check(d *device.Device) error

	// Forced reports whether a failed check should be ignored.
	Forced() bool
}

// base provides the no-op defaults shared by most commands.
type base struct {
	// Force sends the command even when its value check fails.
	Force bool
}

func (b base) PauseAfter() time.Duration  { return 0 }
func (b base) Check(*device.Device) error { return nil }
func (b base) Forced() bool               { return b.Force }

func marshal(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Ping is the no-payload liveness probe.
type Ping struct{ base }

func (Ping) Type() string { return "ping" }

// JSON implements Command.
func (Ping) JSON() (string, error) { return `{"type":"ping"}`, nil }

// Request asks the device for a full status report.
type Request struct{ base }

func (Request) Type() string { return "request" }

// JSON implements Command.
func (Request) JSON() (string, error) { return `{"type":"request"}`, nil }

// Reboot restarts the device.
type Reboot struct{ base }

func (Reboot) Type() string { return "reboot" }

// JSON implements Command.
func (Reboot) JSON() (string, error) { return `{"type":"reboot"}`, nil }

// FactoryReset wipes the device back to factory state.
type FactoryReset struct{ base }

func (FactoryReset) Type() string { return "factory_reset" }

// JSON implements Command.
func (FactoryReset) JSON() (string, error) { return `{"type":"factory_reset"}`, nil }

// FirmwareUpdate points the device at a firmware image to fetch.
type FirmwareUpdate struct {
	base
	URL string
}

func (FirmwareUpdate) Type() string { return "fw_update" }

// JSON implements Command.
func (c FirmwareUpdate) JSON() (string, error) {
	return marshal(struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	}{c.Type(), c.URL})
}

// Backend enables or disables the device's cloud backend link.
type Backend struct {
	base
	LinkEnabled bool
}

func (Backend) Type() string { return "backend" }

// JSON implements Command.
func (c Backend) JSON() (string, error) {
	return marshal(struct {
		Type        string `json:"type"`
		LinkEnabled bool   `json:"link_enabled"`
	}{c.Type(), c.LinkEnabled})
}

// RoutineAction is the verb of a routine command.
type RoutineAction string

// Routine actions.
const (
	RoutineList   RoutineAction = "list"
	RoutinePut    RoutineAction = "put"
	RoutineStart  RoutineAction = "start"
	RoutineDelete RoutineAction = "delete"
	RoutineCount  RoutineAction = "count"
)

// IsValid reports whether the action is defined.
func (a RoutineAction) IsValid() bool {
	switch a {
	case RoutineList, RoutinePut, RoutineStart, RoutineDelete, RoutineCount:
		return true
	}
	return false
}

// Routine manages the routine slots stored on the device. Put stores a
// scene under a slot id, start plays a slot, list/count/delete inspect
// and prune slots.
type Routine struct {
	base
	Action   RoutineAction
	ID       string
	Scene    int    // scene id, for put
	Commands string // scene command script, for put

	// SceneRGBOnly marks the scene as requiring RGB channels. Set by
	// the caller from its scene catalog; checked against the product.
	SceneRGBOnly bool
}

func (Routine) Type() string { return "routine" }

// JSON implements Command.
func (c Routine) JSON() (string, error) {
	return marshal(struct {
		Type     string        `json:"type"`
		Action   RoutineAction `json:"action"`
		ID       string        `json:"id,omitempty"`
		Scene    int           `json:"scene,omitempty"`
		Commands string        `json:"commands,omitempty"`
	}{c.Type(), c.Action, c.ID, c.Scene, c.Commands})
}

// Check implements Command.
func (c Routine) Check(d *device.Device) error {
	if !c.Action.IsValid() {
		return ErrInvalidAction
	}
	if d == nil || c.Action != RoutinePut {
		return nil
	}

	cfg := d.Config()
	if c.Scene != 0 && !cfg.SupportsScene(c.Scene) {
		return wrapCheck("scene %d not supported by %s", c.Scene, d.ProductID())
	}
	if c.SceneRGBOnly && !cfg.SupportsRGB() {
		return wrapCheck("RGB scene %d on non-RGB product %s", c.Scene, d.ProductID())
	}
	return nil
}
