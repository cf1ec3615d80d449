package device

import (
	"context"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"29daa5a4439969f57934", "29daa5a4439969f57934"},
		{"29DAA5A4439969F57934", "29daa5a4439969f57934"},
		{"Living Room Lamp", "living-room-lamp"},
		{"a__b..c", "a-b-c"},
		{"--a--", "a"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKindFromProductID(t *testing.T) {
	tests := []struct {
		productID string
		want      Kind
	}{
		{"@klyqa.lighting.rgb-cw-ww.e27", KindLight},
		{"@klyqa.cleaning.vc1", KindVacuum},
		{"@klyqa.plug", KindGeneric},
		{"", KindGeneric},
	}

	for _, tt := range tests {
		if got := KindFromProductID(tt.productID); got != tt.want {
			t.Errorf("KindFromProductID(%q) = %v, want %v", tt.productID, got, tt.want)
		}
	}
}

func TestParseIdentity(t *testing.T) {
	payload := []byte(`{"type":"ident","ident":{"fw_version":"1.2.3","product_id":"@klyqa.lighting.rgb-cw-ww.e27","unit_id":"29daa5a4439969f57934"}}`)

	ident, err := ParseIdentity(payload)
	if err != nil {
		t.Fatalf("ParseIdentity failed: %v", err)
	}
	if ident.UnitID != "29daa5a4439969f57934" {
		t.Errorf("unit id = %q", ident.UnitID)
	}
	if ident.ProductID != "@klyqa.lighting.rgb-cw-ww.e27" {
		t.Errorf("product id = %q", ident.ProductID)
	}
}

func TestParseIdentityMalformed(t *testing.T) {
	if _, err := ParseIdentity([]byte(`not-json`)); err == nil {
		t.Error("want error for non-JSON identity")
	}
	if _, err := ParseIdentity([]byte(`{"type":"ident","ident":{}}`)); err != ErrNoUnitID {
		t.Errorf("missing unit id: err = %v, want ErrNoUnitID", err)
	}
}

func TestUseLockOwnership(t *testing.T) {
	l := NewUseLock()
	ctx := context.Background()

	if err := l.TryLock(ctx, "conn-1", time.Second); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if got := l.Owner(); got != "conn-1" {
		t.Errorf("owner = %q, want conn-1", got)
	}

	// Unlock by a non-owner is a no-op.
	l.Unlock("conn-2")
	if got := l.Owner(); got != "conn-1" {
		t.Errorf("owner after foreign unlock = %q, want conn-1", got)
	}

	// Unlock by the owner releases; a second unlock is harmless.
	l.Unlock("conn-1")
	l.Unlock("conn-1")
	if got := l.Owner(); got != "" {
		t.Errorf("owner after unlock = %q, want empty", got)
	}

	if err := l.TryLock(ctx, "conn-2", time.Second); err != nil {
		t.Fatalf("relock failed: %v", err)
	}
	l.Unlock("conn-2")
}

func TestUseLockTimeout(t *testing.T) {
	l := NewUseLock()
	ctx := context.Background()

	if err := l.TryLock(ctx, "holder", time.Second); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer l.Unlock("holder")

	if err := l.TryLock(ctx, "waiter", 20*time.Millisecond); err != ErrLockTimeout {
		t.Errorf("contended TryLock err = %v, want ErrLockTimeout", err)
	}
}

func TestUseLockContextCancel(t *testing.T) {
	l := NewUseLock()
	if err := l.TryLock(context.Background(), "holder", time.Second); err != nil {
		t.Fatal(err)
	}
	defer l.Unlock("holder")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := l.TryLock(ctx, "waiter", time.Minute); err != context.Canceled {
		t.Errorf("cancelled TryLock err = %v, want context.Canceled", err)
	}
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry(nil)
	ident := &Identity{
		UnitID:    "00AC629DE9AD2F4409DC",
		ProductID: "@klyqa.lighting.rgb-cw-ww.e27",
		FwVersion: "1.0.0",
	}

	d, created, err := r.GetOrCreate(ident)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !created {
		t.Error("first observation should create")
	}
	if d.UnitID() != "00ac629de9ad2f4409dc" {
		t.Errorf("unit id = %q, want slug form", d.UnitID())
	}
	if d.Kind() != KindLight {
		t.Errorf("kind = %v, want KindLight", d.Kind())
	}

	again, created, err := r.GetOrCreate(ident)
	if err != nil {
		t.Fatal(err)
	}
	if created || again != d {
		t.Error("second observation must return the registered device")
	}

	if _, _, err := r.GetOrCreate(&Identity{ProductID: "@klyqa.lighting.x"}); err != ErrNoUnitID {
		t.Errorf("empty unit id err = %v, want ErrNoUnitID", err)
	}
}

func TestRegistryConfigAttachment(t *testing.T) {
	r := NewRegistry(nil)
	cfg := &Config{
		ProductID:   "@klyqa.lighting.cw-ww.e14",
		Temperature: &Range{Min: 2700, Max: 5000},
		RGB:         false,
	}

	// Config cached before the device appears.
	r.SetConfig(cfg.ProductID, cfg)
	d, _, err := r.GetOrCreate(&Identity{UnitID: "aaa", ProductID: cfg.ProductID})
	if err != nil {
		t.Fatal(err)
	}
	if d.Config() != cfg {
		t.Error("config not attached on creation")
	}

	// Config arriving after the device.
	d2, _, err := r.GetOrCreate(&Identity{UnitID: "bbb", ProductID: "@klyqa.lighting.rgb.e27"})
	if err != nil {
		t.Fatal(err)
	}
	cfg2 := &Config{ProductID: "@klyqa.lighting.rgb.e27", RGB: true}
	r.SetConfig(cfg2.ProductID, cfg2)
	if d2.Config() != cfg2 {
		t.Error("config not attached retroactively")
	}
}

func TestLightStatusUpdate(t *testing.T) {
	d := New("unit", "@klyqa.lighting.rgb-cw-ww.e27")

	raw := []byte(`{"type":"status","color":{"red":2,"green":22,"blue":222},"brightness":{"percentage":70},"temperature":4000,"fwversion":"1.2.3"}`)
	if err := d.UpdateStatus(raw); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	st, ok := d.Status().(*LightStatus)
	if !ok {
		t.Fatalf("status is %T, want *LightStatus", d.Status())
	}
	if st.Color == nil || st.Color.Blue != 222 {
		t.Errorf("color = %+v", st.Color)
	}
	if st.Brightness == nil || st.Brightness.Percentage != 70 {
		t.Errorf("brightness = %+v", st.Brightness)
	}
	if !st.Connected {
		t.Error("connected flag not set")
	}

	// A later partial update keeps earlier fields.
	if err := d.UpdateStatus([]byte(`{"type":"status","temperature":2700}`)); err != nil {
		t.Fatal(err)
	}
	if st.Temperature != 2700 || st.Color == nil {
		t.Error("partial update lost state")
	}
}

func TestStatusUpdateRejectsForeignType(t *testing.T) {
	d := New("unit", "@klyqa.cleaning.vc1")
	if err := d.UpdateStatus([]byte(`{"type":"routine_answer"}`)); err != ErrStatusType {
		t.Errorf("err = %v, want ErrStatusType", err)
	}
}

func TestVacuumStatusUpdate(t *testing.T) {
	d := New("vac", "@klyqa.cleaning.vc1")
	raw := []byte(`{"type":"status","battery":88,"suction":3,"workingmode":3,"workingstatus":5,"errors":["none"]}`)
	if err := d.UpdateStatus(raw); err != nil {
		t.Fatal(err)
	}

	st := d.Status().(*VacuumStatus)
	if st.Battery != 88 {
		t.Errorf("battery = %d", st.Battery)
	}
	if st.Suction == nil || *st.Suction != SuctionNormal {
		t.Errorf("suction = %v", st.Suction)
	}
	if st.WorkingMode == nil || *st.WorkingMode != WorkingModeSmart {
		t.Errorf("workingmode = %v", st.WorkingMode)
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg *Config // nil config falls back to defaults everywhere

	if got := cfg.ColorRange(); got != DefaultColorRange {
		t.Errorf("ColorRange = %+v", got)
	}
	if got := cfg.BrightnessRange(); got != DefaultBrightnessRange {
		t.Errorf("BrightnessRange = %+v", got)
	}
	if got := cfg.TemperatureRange(); got != DefaultTemperatureRange {
		t.Errorf("TemperatureRange = %+v", got)
	}
	if !cfg.SupportsRGB() || !cfg.SupportsScene(42) {
		t.Error("nil config must permit everything")
	}

	limited := &Config{Temperature: &Range{Min: 2000, Max: 6500}}
	for v, want := range map[int]bool{1999: false, 2000: true, 6500: true, 6501: false} {
		if got := limited.TemperatureRange().Contains(v); got != want {
			t.Errorf("TemperatureRange.Contains(%d) = %v, want %v", v, got, want)
		}
	}
}
