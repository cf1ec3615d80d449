package device

import "strings"

// Kind discriminates the concrete device class, derived from the
// product id (e.g. "@klyqa.lighting.rgb-cw-ww.e27").
type Kind int

// Device kinds.
const (
	KindGeneric Kind = iota
	KindLight
	KindVacuum
)

func (k Kind) String() string {
	switch k {
	case KindLight:
		return "light"
	case KindVacuum:
		return "vacuum"
	default:
		return "generic"
	}
}

// KindFromProductID selects the device kind from the product id.
func KindFromProductID(productID string) Kind {
	switch {
	case strings.Contains(productID, ".lighting"):
		return KindLight
	case strings.Contains(productID, ".cleaning"):
		return KindVacuum
	default:
		return KindGeneric
	}
}

// WorkingMode is the vacuum cleaning mode. Wire values are 1-based.
type WorkingMode int

// Vacuum working modes.
const (
	WorkingModeStandby WorkingMode = iota + 1
	WorkingModeRandom
	WorkingModeSmart
	WorkingModeWallFollow
	WorkingModeMop
	WorkingModeSpiral
	WorkingModePartialBow
	WorkingModeSRoom
	WorkingModeChargeGo
)

var workingModeNames = map[WorkingMode]string{
	WorkingModeStandby:    "STANDBY",
	WorkingModeRandom:     "RANDOM",
	WorkingModeSmart:      "SMART",
	WorkingModeWallFollow: "WALL_FOLLOW",
	WorkingModeMop:        "MOP",
	WorkingModeSpiral:     "SPIRAL",
	WorkingModePartialBow: "PARTIAL_BOW",
	WorkingModeSRoom:      "SROOM",
	WorkingModeChargeGo:   "CHARGE_GO",
}

func (m WorkingMode) String() string {
	if s, ok := workingModeNames[m]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsValid reports whether the mode is a defined wire value.
func (m WorkingMode) IsValid() bool {
	_, ok := workingModeNames[m]
	return ok
}

// Suction is the vacuum suction power. The wire encodes the member
// index minus one, so NULL is 0 and MAX is 4.
type Suction int

// Vacuum suction levels.
const (
	SuctionNull Suction = iota
	SuctionStrong
	SuctionSmall
	SuctionNormal
	SuctionMax
)

var suctionNames = map[Suction]string{
	SuctionNull:   "NULL",
	SuctionStrong: "STRONG",
	SuctionSmall:  "SMALL",
	SuctionNormal: "NORMAL",
	SuctionMax:    "MAX",
}

func (s Suction) String() string {
	if n, ok := suctionNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// IsValid reports whether the suction level is a defined wire value.
func (s Suction) IsValid() bool {
	_, ok := suctionNames[s]
	return ok
}

// WorkingStatus is the vacuum activity state reported by the device.
type WorkingStatus int

// Vacuum working statuses.
const (
	WorkingStatusSleep WorkingStatus = iota + 1
	WorkingStatusStandby
	WorkingStatusCleaning
	WorkingStatusCleaningAuto
	WorkingStatusCleaningRandom
	WorkingStatusCleaningSRoom
	WorkingStatusCleaningEdge
	WorkingStatusCleaningSpot
	WorkingStatusCleaningComp
	WorkingStatusDocking
	WorkingStatusCharging
	WorkingStatusChargingDC
	WorkingStatusChargingComp
	WorkingStatusError
)

var workingStatusNames = map[WorkingStatus]string{
	WorkingStatusSleep:          "SLEEP",
	WorkingStatusStandby:        "STANDBY",
	WorkingStatusCleaning:       "CLEANING",
	WorkingStatusCleaningAuto:   "CLEANING_AUTO",
	WorkingStatusCleaningRandom: "CLEANING_RANDOM",
	WorkingStatusCleaningSRoom:  "CLEANING_SROOM",
	WorkingStatusCleaningEdge:   "CLEANING_EDGE",
	WorkingStatusCleaningSpot:   "CLEANING_SPOT",
	WorkingStatusCleaningComp:   "CLEANING_COMP",
	WorkingStatusDocking:        "DOCKING",
	WorkingStatusCharging:       "CHARGING",
	WorkingStatusChargingDC:     "CHARGING_DC",
	WorkingStatusChargingComp:   "CHARGING_COMP",
	WorkingStatusError:          "ERROR",
}

func (s WorkingStatus) String() string {
	if n, ok := workingStatusNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// WaterLevel is the vacuum mop water level.
type WaterLevel int

// Vacuum water levels.
const (
	WaterLevelLow WaterLevel = iota + 1
	WaterLevelMid
	WaterLevelHigh
)

var waterLevelNames = map[WaterLevel]string{
	WaterLevelLow:  "LOW",
	WaterLevelMid:  "MID",
	WaterLevelHigh: "HIGH",
}

func (w WaterLevel) String() string {
	if n, ok := waterLevelNames[w]; ok {
		return n
	}
	return "UNKNOWN"
}

// IsValid reports whether the water level is a defined wire value.
func (w WaterLevel) IsValid() bool {
	_, ok := waterLevelNames[w]
	return ok
}

// Direction is a manual vacuum steering command value.
type Direction int

// Vacuum directions.
const (
	DirectionForwards Direction = iota + 1
	DirectionBackwards
	DirectionTurnLeft
	DirectionTurnRight
	DirectionStop
)

var directionNames = map[Direction]string{
	DirectionForwards:  "FORWARDS",
	DirectionBackwards: "BACKWARDS",
	DirectionTurnLeft:  "TURN_LEFT",
	DirectionTurnRight: "TURN_RIGHT",
	DirectionStop:      "STOP",
}

func (d Direction) String() string {
	if n, ok := directionNames[d]; ok {
		return n
	}
	return "UNKNOWN"
}

// IsValid reports whether the direction is a defined wire value.
func (d Direction) IsValid() bool {
	_, ok := directionNames[d]
	return ok
}

// ExternalMode selects the external control source of a lamp.
type ExternalMode string

// External control modes.
const (
	ExternalOff  ExternalMode = "EXT_OFF"
	ExternalUDP  ExternalMode = "EXT_UDP"
	ExternalE131 ExternalMode = "EXT_E131"
	ExternalTPM2 ExternalMode = "EXT_TPM2"
)

// IsValid reports whether the mode is one of the defined sources.
func (m ExternalMode) IsValid() bool {
	switch m {
	case ExternalOff, ExternalUDP, ExternalE131, ExternalTPM2:
		return true
	}
	return false
}
