package device

import (
	"encoding/json"
	"time"
)

// statusType is the payload type tag carried by device state answers.
const statusType = "status"

// Status is the device-kind-specific state snapshot. Implementations
// self-update from a JSON payload of matching type.
type Status interface {
	// Update merges a JSON status payload into the snapshot. Payloads
	// whose type tag is not a status report return ErrStatusType and
	// leave the snapshot unchanged.
	Update(raw []byte) error

	// Kind returns the device kind the status belongs to.
	Kind() Kind
}

// RGB is a red/green/blue triple as carried on the wire.
type RGB struct {
	Red   int `json:"red"`
	Green int `json:"green"`
	Blue  int `json:"blue"`
}

// Percentage wraps a percent value the protocol nests under its own key.
type Percentage struct {
	Percentage int `json:"percentage"`
}

// LightStatus is the last known state of a lamp.
type LightStatus struct {
	Type          string      `json:"type"`
	Brightness    *Percentage `json:"brightness,omitempty"`
	Color         *RGB        `json:"color,omitempty"`
	Temperature   int         `json:"temperature,omitempty"`
	Mode          string      `json:"mode,omitempty"`
	ActiveScene   string      `json:"active_scene,omitempty"`
	ActiveCommand string      `json:"active_command,omitempty"`
	FwVersion     string      `json:"fwversion,omitempty"`
	SdkVersion    string      `json:"sdkversion,omitempty"`

	Connected bool      `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Kind implements Status.
func (s *LightStatus) Kind() Kind { return KindLight }

// Update implements Status.
func (s *LightStatus) Update(raw []byte) error {
	if err := checkStatusType(raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return err
	}
	s.Connected = true
	s.UpdatedAt = time.Now()
	return nil
}

// VacuumStatus is the last known state of a vacuum cleaner.
type VacuumStatus struct {
	Type            string         `json:"type"`
	Power           string         `json:"power,omitempty"`
	Cleaning        string         `json:"cleaning,omitempty"`
	Beeping         string         `json:"beeping,omitempty"`
	Battery         int            `json:"battery,omitempty"`
	Suction         *Suction       `json:"suction,omitempty"`
	WorkingMode     *WorkingMode   `json:"workingmode,omitempty"`
	WorkingStatus   *WorkingStatus `json:"workingstatus,omitempty"`
	WaterLevel      *WaterLevel    `json:"water,omitempty"`
	CarpetBooster   int            `json:"carpetbooster,omitempty"`
	SideBrush       int            `json:"sidebrush,omitempty"`
	RollingBrush    int            `json:"rollingbrush,omitempty"`
	Filter          int            `json:"filter,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
	Direction       *Direction     `json:"direction,omitempty"`
	CommissionInfo  string         `json:"commissioninfo,omitempty"`
	CalibrationTime int            `json:"calibrationtime,omitempty"`

	Connected bool      `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Kind implements Status.
func (s *VacuumStatus) Kind() Kind { return KindVacuum }

// Update implements Status.
func (s *VacuumStatus) Update(raw []byte) error {
	if err := checkStatusType(raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return err
	}
	s.Connected = true
	s.UpdatedAt = time.Now()
	return nil
}

// GenericStatus keeps the raw payload for devices of unknown kind.
type GenericStatus struct {
	Raw       json.RawMessage
	Connected bool
	UpdatedAt time.Time
}

// Kind implements Status.
func (s *GenericStatus) Kind() Kind { return KindGeneric }

// Update implements Status.
func (s *GenericStatus) Update(raw []byte) error {
	if err := checkStatusType(raw); err != nil {
		return err
	}
	s.Raw = append(s.Raw[:0], raw...)
	s.Connected = true
	s.UpdatedAt = time.Now()
	return nil
}

func checkStatusType(raw []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	if probe.Type != statusType {
		return ErrStatusType
	}
	return nil
}

// NewStatus returns the empty status variant for a device kind.
func NewStatus(kind Kind) Status {
	switch kind {
	case KindLight:
		return &LightStatus{}
	case KindVacuum:
		return &VacuumStatus{}
	default:
		return &GenericStatus{}
	}
}
