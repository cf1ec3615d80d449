package device

import (
	"encoding/json"
	"net"
	"sync"
	"time"
)

// NoUnitID is the provisional unit id of a device object created
// before its identity frame arrived. Once identity is known the
// registry entry under the real slug replaces the provisional object.
const NoUnitID = "no_uid"

// Identity is the cleartext self-description a device sends as its
// first frame on every connection.
type Identity struct {
	FwVersion      string `json:"fw_version"`
	FwBuild        string `json:"fw_build"`
	HwVersion      string `json:"hw_version"`
	ManufacturerID string `json:"manufacturer_id"`
	ProductID      string `json:"product_id"`
	UnitID         string `json:"unit_id"`
}

// identityFrame is the enclosing JSON object of a type-0 frame.
type identityFrame struct {
	Type  string   `json:"type"`
	Ident Identity `json:"ident"`
}

// ParseIdentity decodes a type-0 frame payload. A missing or empty
// unit id yields ErrNoUnitID.
func ParseIdentity(payload []byte) (*Identity, error) {
	var frame identityFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, err
	}
	if frame.Ident.UnitID == "" {
		return nil, ErrNoUnitID
	}
	ident := frame.Ident
	return &ident, nil
}

// Device is one known unit of the fleet. Created on first observation
// (identity frame) or from a caller-supplied unit id; never destroyed
// in steady state. Connections reference devices by slug; a device
// refers back to its current connection only by id, so there is no
// ownership cycle.
type Device struct {
	lock *UseLock

	mu             sync.RWMutex
	unitID         string // canonical slug
	productID      string
	kind           Kind
	fwVersion      string
	hwVersion      string
	manufacturerID string
	config         *Config
	status         Status
	lastAddr       net.Addr
	sessionID      string // id of the connection currently serving us, if any
	lastSeen       time.Time
}

// New creates a device. The unit id is slugified; an empty id yields
// the NoUnitID sentinel. The status variant follows the product kind.
func New(unitID, productID string) *Device {
	slug := Slugify(unitID)
	if slug == "" {
		slug = NoUnitID
	}
	kind := KindFromProductID(productID)

	return &Device{
		lock:      NewUseLock(),
		unitID:    slug,
		productID: productID,
		kind:      kind,
		status:    NewStatus(kind),
	}
}

// FromIdentity creates a device carrying the full identity payload.
func FromIdentity(ident *Identity) *Device {
	d := New(ident.UnitID, ident.ProductID)
	d.ApplyIdentity(ident)
	return d
}

// UnitID returns the canonical slug.
func (d *Device) UnitID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.unitID
}

// ProductID returns the product id, e.g. "@klyqa.lighting.rgb-cw-ww.e27".
func (d *Device) ProductID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.productID
}

// Kind returns the device kind.
func (d *Device) Kind() Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.kind
}

// FirmwareVersion returns the last reported firmware version.
func (d *Device) FirmwareVersion() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fwVersion
}

// ApplyIdentity merges an identity payload. The device kind and status
// variant follow the product id when it changes.
func (d *Device) ApplyIdentity(ident *Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fwVersion = ident.FwVersion
	d.hwVersion = ident.HwVersion
	d.manufacturerID = ident.ManufacturerID
	d.lastSeen = time.Now()

	if ident.ProductID != "" && ident.ProductID != d.productID {
		d.productID = ident.ProductID
		kind := KindFromProductID(ident.ProductID)
		if kind != d.kind {
			d.kind = kind
			d.status = NewStatus(kind)
		}
	}
}

// Config returns the product-scoped device config, or nil when none is
// cached for the product.
func (d *Device) Config() *Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// SetConfig attaches a device config.
func (d *Device) SetConfig(cfg *Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config = cfg
}

// Status returns the live status object. Use UpdateStatus to mutate it.
func (d *Device) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// UpdateStatus merges an answer payload into the device status.
// Non-status payloads are reported via ErrStatusType and ignored.
func (d *Device) UpdateStatus(raw []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSeen = time.Now()
	return d.status.Update(raw)
}

// LastAddr returns the last local address the device connected from.
func (d *Device) LastAddr() net.Addr {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastAddr
}

// SetLastAddr records the address of the current connection.
func (d *Device) SetLastAddr(addr net.Addr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastAddr = addr
}

// SessionID returns the id of the connection currently serving the
// device, or "" when idle.
func (d *Device) SessionID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sessionID
}

// SetSessionID records (or, with "", clears) the serving connection.
func (d *Device) SetSessionID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionID = id
}

// Lock returns the device use-lock.
func (d *Device) Lock() *UseLock {
	return d.lock
}
