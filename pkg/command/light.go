package command

import (
	"time"

	"github.com/backkem/klyqa-lan/pkg/device"
)

// transitioned carries the transition time shared by the lamp state
// commands. The declared pause equals the transition so back-to-back
// commands in one message are spaced out.
type transitioned struct {
	base
	// TransitionTime is the device-side fade duration in milliseconds.
	TransitionTime int
}

// PauseAfter implements Command.
func (t transitioned) PauseAfter() time.Duration {
	return time.Duration(t.TransitionTime) * time.Millisecond
}

// Color sets the lamp's RGB color.
type Color struct {
	transitioned
	Red   int
	Green int
	Blue  int
}

func (Color) Type() string { return "request" }

// JSON implements Command.
func (c Color) JSON() (string, error) {
	return marshal(struct {
		Type           string     `json:"type"`
		Color          device.RGB `json:"color"`
		TransitionTime int        `json:"transitionTime"`
	}{c.Type(), device.RGB{Red: c.Red, Green: c.Green, Blue: c.Blue}, c.TransitionTime})
}

// Check implements Command.
func (c Color) Check(d *device.Device) error {
	if d == nil {
		return nil
	}
	cfg := d.Config()
	if !cfg.SupportsRGB() {
		return wrapCheck("product %s has no RGB channels", d.ProductID())
	}
	rng := cfg.ColorRange()
	for _, ch := range []struct {
		name  string
		value int
	}{{"red", c.Red}, {"green", c.Green}, {"blue", c.Blue}} {
		if !rng.Contains(ch.value) {
			return wrapCheck("%s %d not in [%d,%d]", ch.name, ch.value, rng.Min, rng.Max)
		}
	}
	return nil
}

// Temperature sets the lamp's white temperature in kelvin.
type Temperature struct {
	transitioned
	Temperature int
}

func (Temperature) Type() string { return "request" }

// JSON implements Command.
func (c Temperature) JSON() (string, error) {
	return marshal(struct {
		Type           string `json:"type"`
		Temperature    int    `json:"temperature"`
		TransitionTime int    `json:"transitionTime"`
	}{c.Type(), c.Temperature, c.TransitionTime})
}

// Check implements Command.
func (c Temperature) Check(d *device.Device) error {
	if d == nil {
		return nil
	}
	rng := d.Config().TemperatureRange()
	if !rng.Contains(c.Temperature) {
		return wrapCheck("temperature %d not in [%d,%d]", c.Temperature, rng.Min, rng.Max)
	}
	return nil
}

// PercentColor drives the RGB and warm/cold white channels directly,
// each as a percentage.
type PercentColor struct {
	transitioned
	Red   int
	Green int
	Blue  int
	Warm  int
	Cold  int
}

func (PercentColor) Type() string { return "request" }

// pColor is the wire shape of the p_color field.
type pColor struct {
	Red   int `json:"red"`
	Green int `json:"green"`
	Blue  int `json:"blue"`
	Warm  int `json:"warm"`
	Cold  int `json:"cold"`
}

// JSON implements Command.
func (c PercentColor) JSON() (string, error) {
	return marshal(struct {
		Type           string `json:"type"`
		PColor         pColor `json:"p_color"`
		TransitionTime int    `json:"transitionTime"`
	}{c.Type(), pColor{c.Red, c.Green, c.Blue, c.Warm, c.Cold}, c.TransitionTime})
}

// Check implements Command.
func (c PercentColor) Check(d *device.Device) error {
	if d == nil {
		return nil
	}
	if (c.Red > 0 || c.Green > 0 || c.Blue > 0) && !d.Config().SupportsRGB() {
		return wrapCheck("product %s has no RGB channels", d.ProductID())
	}
	for _, ch := range []struct {
		name  string
		value int
	}{{"red", c.Red}, {"green", c.Green}, {"blue", c.Blue}, {"warm", c.Warm}, {"cold", c.Cold}} {
		if ch.value < 0 || ch.value > 100 {
			return wrapCheck("%s %d not in [0,100]", ch.name, ch.value)
		}
	}
	return nil
}

// Brightness sets the lamp brightness as a percentage.
type Brightness struct {
	transitioned
	Percentage int
}

func (Brightness) Type() string { return "request" }

// JSON implements Command.
func (c Brightness) JSON() (string, error) {
	return marshal(struct {
		Type           string            `json:"type"`
		Brightness     device.Percentage `json:"brightness"`
		TransitionTime int               `json:"transitionTime"`
	}{c.Type(), device.Percentage{Percentage: c.Percentage}, c.TransitionTime})
}

// Check implements Command.
func (c Brightness) Check(d *device.Device) error {
	if d == nil {
		return nil
	}
	rng := d.Config().BrightnessRange()
	if !rng.Contains(c.Percentage) {
		return wrapCheck("brightness %d not in [%d,%d]", c.Percentage, rng.Min, rng.Max)
	}
	return nil
}

// Power switches the lamp on or off.
type Power struct {
	base
	// Status is "on" or "off".
	Status string
}

func (Power) Type() string { return "request" }

// JSON implements Command.
func (c Power) JSON() (string, error) {
	return marshal(struct {
		Type   string `json:"type"`
		Status string `json:"status"`
	}{c.Type(), c.Status})
}

// Check implements Command.
func (c Power) Check(*device.Device) error {
	if c.Status != "on" && c.Status != "off" {
		return wrapCheck("power status %q, want on or off", c.Status)
	}
	return nil
}

// External hands the lamp's channels to an external control source
// (UDP stream, E1.31, TPM2) or takes them back with ExternalOff.
type External struct {
	base
	Mode    device.ExternalMode
	Port    int
	Channel int
}

func (External) Type() string { return "external" }

// JSON implements Command.
func (c External) JSON() (string, error) {
	return marshal(struct {
		Type    string              `json:"type"`
		Mode    device.ExternalMode `json:"mode"`
		Port    int                 `json:"port"`
		Channel int                 `json:"channel"`
	}{c.Type(), c.Mode, c.Port, c.Channel})
}

// Check implements Command.
func (c External) Check(*device.Device) error {
	if !c.Mode.IsValid() {
		return wrapCheck("external mode %q", string(c.Mode))
	}
	return nil
}

// Fade configures the lamp's default fade-in/fade-out times in
// milliseconds.
type Fade struct {
	base
	FadeIn  int
	FadeOut int
}

func (Fade) Type() string { return "fade" }

// JSON implements Command.
func (c Fade) JSON() (string, error) {
	return marshal(struct {
		Type    string `json:"type"`
		FadeIn  int    `json:"fade_in"`
		FadeOut int    `json:"fade_out"`
	}{c.Type(), c.FadeIn, c.FadeOut})
}
