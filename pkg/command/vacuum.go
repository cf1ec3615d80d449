package command

import (
	"github.com/backkem/klyqa-lan/pkg/device"
)

// vacuumFields are the state fields a vacuum get request may query.
var vacuumFields = map[string]bool{
	"power":           true,
	"cleaning":        true,
	"beeping":         true,
	"battery":         true,
	"suction":         true,
	"workingmode":     true,
	"workingstatus":   true,
	"water":           true,
	"carpetbooster":   true,
	"sidebrush":       true,
	"rollingbrush":    true,
	"filter":          true,
	"errors":          true,
	"direction":       true,
	"commissioninfo":  true,
	"calibrationtime": true,
}

// VacuumGet queries vacuum state fields. The wire convention is
// present-and-null: every listed field appears in the JSON object with
// a null value, which the device answers by filling them in.
type VacuumGet struct {
	base
	Fields []string
}

func (VacuumGet) Type() string { return "request" }

// JSON implements Command. Field order follows Go's sorted map
// marshaling; the device keys off names, not positions.
func (c VacuumGet) JSON() (string, error) {
	obj := map[string]interface{}{
		"type":   c.Type(),
		"action": "get",
	}
	for _, f := range c.Fields {
		obj[f] = nil
	}
	return marshal(obj)
}

// Check implements Command.
func (c VacuumGet) Check(*device.Device) error {
	for _, f := range c.Fields {
		if !vacuumFields[f] {
			return wrapCheck("unknown vacuum field %q", f)
		}
	}
	return nil
}

// VacuumSet changes vacuum state. Only non-nil fields are sent.
type VacuumSet struct {
	base
	Power         *string // "on"/"off"
	Cleaning      *string
	Beeping       *string
	CarpetBooster *int
	WorkingMode   *device.WorkingMode
	Suction       *device.Suction
	Water         *device.WaterLevel
	Direction     *device.Direction
}

func (VacuumSet) Type() string { return "request" }

// JSON implements Command.
func (c VacuumSet) JSON() (string, error) {
	return marshal(struct {
		Type          string              `json:"type"`
		Action        string              `json:"action"`
		Power         *string             `json:"power,omitempty"`
		Cleaning      *string             `json:"cleaning,omitempty"`
		Beeping       *string             `json:"beeping,omitempty"`
		CarpetBooster *int                `json:"carpetbooster,omitempty"`
		WorkingMode   *device.WorkingMode `json:"workingmode,omitempty"`
		Suction       *device.Suction     `json:"suction,omitempty"`
		Water         *device.WaterLevel  `json:"water,omitempty"`
		Direction     *device.Direction   `json:"direction,omitempty"`
	}{
		Type:          c.Type(),
		Action:        "set",
		Power:         c.Power,
		Cleaning:      c.Cleaning,
		Beeping:       c.Beeping,
		CarpetBooster: c.CarpetBooster,
		WorkingMode:   c.WorkingMode,
		Suction:       c.Suction,
		Water:         c.Water,
		Direction:     c.Direction,
	})
}

// Check implements Command.
func (c VacuumSet) Check(*device.Device) error {
	for _, sw := range []struct {
		name  string
		value *string
	}{{"power", c.Power}, {"cleaning", c.Cleaning}, {"beeping", c.Beeping}} {
		if sw.value != nil && *sw.value != "on" && *sw.value != "off" {
			return wrapCheck("%s %q, want on or off", sw.name, *sw.value)
		}
	}
	if c.WorkingMode != nil && !c.WorkingMode.IsValid() {
		return wrapCheck("workingmode %d", int(*c.WorkingMode))
	}
	if c.Suction != nil && !c.Suction.IsValid() {
		return wrapCheck("suction %d", int(*c.Suction))
	}
	if c.Water != nil && !c.Water.IsValid() {
		return wrapCheck("water %d", int(*c.Water))
	}
	if c.Direction != nil && !c.Direction.IsValid() {
		return wrapCheck("direction %d", int(*c.Direction))
	}
	return nil
}

// VacuumReset clears consumable wear counters. The selected counters
// are sent as present-and-null, same as a get.
type VacuumReset struct {
	base
	SideBrush    bool
	RollingBrush bool
	Filter       bool
}

func (VacuumReset) Type() string { return "request" }

// JSON implements Command.
func (c VacuumReset) JSON() (string, error) {
	obj := map[string]interface{}{
		"type":   c.Type(),
		"action": "reset",
	}
	if c.SideBrush {
		obj["sidebrush"] = nil
	}
	if c.RollingBrush {
		obj["rollingbrush"] = nil
	}
	if c.Filter {
		obj["filter"] = nil
	}
	return marshal(obj)
}

// Check implements Command.
func (c VacuumReset) Check(*device.Device) error {
	if !c.SideBrush && !c.RollingBrush && !c.Filter {
		return wrapCheck("reset selects no consumable")
	}
	return nil
}

// VacuumProductInfo asks the vacuum for its product information block.
type VacuumProductInfo struct{ base }

func (VacuumProductInfo) Type() string { return "request" }

// JSON implements Command.
func (VacuumProductInfo) JSON() (string, error) {
	return `{"action":"productinfo","type":"request"}`, nil
}
