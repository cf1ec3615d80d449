package device

// Default trait ranges applied when a product has no cached config.
var (
	DefaultColorRange       = Range{Min: 0, Max: 255}
	DefaultBrightnessRange  = Range{Min: 0, Max: 100}
	DefaultTemperatureRange = Range{Min: 2000, Max: 6500}
)

// Range is an inclusive numeric trait range.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Config is the per-product trait catalog loaded from the
// device.configs.json cache. It constrains the numeric ranges of
// outgoing commands and records scene compatibility.
type Config struct {
	ProductID string `json:"productId"`

	// Trait ranges; nil means the default applies.
	Color       *Range `json:"color,omitempty"`
	Brightness  *Range `json:"brightness,omitempty"`
	Temperature *Range `json:"temperature,omitempty"`

	// RGB is false for warm/cold-white-only products; such products
	// reject RGB-only scenes.
	RGB bool `json:"rgb"`

	// Scenes lists the scene ids the product supports. Empty means no
	// scene catalog is known and scene checks pass.
	Scenes []int `json:"scenes,omitempty"`
}

// ColorRange returns the configured color channel range or the default.
func (c *Config) ColorRange() Range {
	if c != nil && c.Color != nil {
		return *c.Color
	}
	return DefaultColorRange
}

// BrightnessRange returns the configured brightness range or the default.
func (c *Config) BrightnessRange() Range {
	if c != nil && c.Brightness != nil {
		return *c.Brightness
	}
	return DefaultBrightnessRange
}

// TemperatureRange returns the configured kelvin range or the default.
func (c *Config) TemperatureRange() Range {
	if c != nil && c.Temperature != nil {
		return *c.Temperature
	}
	return DefaultTemperatureRange
}

// SupportsRGB reports whether the product has RGB channels. Unknown
// products are assumed to support RGB.
func (c *Config) SupportsRGB() bool {
	if c == nil {
		return true
	}
	return c.RGB
}

// SupportsScene reports whether the scene id is in the product's scene
// catalog. An unknown catalog accepts every scene.
func (c *Config) SupportsScene(id int) bool {
	if c == nil || len(c.Scenes) == 0 {
		return true
	}
	for _, s := range c.Scenes {
		if s == id {
			return true
		}
	}
	return false
}
