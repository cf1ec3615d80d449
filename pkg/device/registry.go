package device

import (
	"sort"
	"sync"

	"github.com/pion/logging"
)

// Registry maps canonical unit-id slugs to devices and product ids to
// device configs. Insertion is serialized by the registry lock so two
// connections observing the same new device cannot race the first
// registration.
type Registry struct {
	log logging.LeveledLogger

	mu      sync.Mutex
	devices map[string]*Device
	configs map[string]*Config
}

// NewRegistry creates an empty registry. A nil factory disables logging.
func NewRegistry(loggerFactory logging.LoggerFactory) *Registry {
	r := &Registry{
		devices: make(map[string]*Device),
		configs: make(map[string]*Config),
	}
	if loggerFactory != nil {
		r.log = loggerFactory.NewLogger("registry")
	}
	return r
}

// Get looks a device up by unit id (slugified before lookup).
func (r *Registry) Get(unitID string) (*Device, error) {
	slug := Slugify(unitID)

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

// GetOrCreate resolves the device for an identity frame, creating and
// registering it on first observation. The second return value is true
// when the device was created. Cached device configs for the product
// are attached on creation.
func (r *Registry) GetOrCreate(ident *Identity) (*Device, bool, error) {
	slug := Slugify(ident.UnitID)
	if slug == "" {
		return nil, false, ErrNoUnitID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devices[slug]; ok {
		d.ApplyIdentity(ident)
		return d, false, nil
	}

	d := FromIdentity(ident)
	if cfg, ok := r.configs[ident.ProductID]; ok {
		d.SetConfig(cfg)
	}
	r.devices[slug] = d

	if r.log != nil {
		r.log.Infof("registered device %s (%s)", slug, ident.ProductID)
	}
	return d, true, nil
}

// Add registers a caller-supplied device, e.g. one built from cached
// account data before any identity frame was seen. Existing entries
// win.
func (r *Registry) Add(d *Device) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	slug := d.UnitID()
	if existing, ok := r.devices[slug]; ok {
		return existing
	}
	if cfg, ok := r.configs[d.ProductID()]; ok {
		d.SetConfig(cfg)
	}
	r.devices[slug] = d
	return d
}

// SetConfig caches a device config for a product id and attaches it to
// already-registered devices of that product.
func (r *Registry) SetConfig(productID string, cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[productID] = cfg
	for _, d := range r.devices {
		if d.ProductID() == productID {
			d.SetConfig(cfg)
		}
	}
}

// ConfigFor returns the cached config for a product id, or nil.
func (r *Registry) ConfigFor(productID string) *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[productID]
}

// Devices returns a stable-ordered snapshot of all known devices.
func (r *Registry) Devices() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID() < out[j].UnitID() })
	return out
}

// UnitIDs returns the slugs of all known devices in stable order.
func (r *Registry) UnitIDs() []string {
	devices := r.Devices()
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.UnitID()
	}
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}
