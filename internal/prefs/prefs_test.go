package prefs

import (
	"errors"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	p := Default()

	if p.Saved {
		t.Error("saved = true, want false")
	}
	if p.RainbowTime != 192 {
		t.Errorf("rainbow_time = %d, want 192", p.RainbowTime)
	}
	if p.Hue != 0 {
		t.Errorf("hue = %d, want 0", p.Hue)
	}
	if p.Saturation != 255 {
		t.Errorf("saturation = %d, want 255", p.Saturation)
	}
	if p.Brightness != DefaultBrightness {
		t.Errorf("brightness = %d, want %d", p.Brightness, DefaultBrightness)
	}
	if p.ColorMode != ModeSolid {
		t.Errorf("color_mode = %s, want solid", p.ColorMode)
	}
	if len(p.LEDPreset) != PresetCount {
		t.Fatalf("presets = %d, want %d", len(p.LEDPreset), PresetCount)
	}
	if p.LEDPreset[0] != (RGB{0xFF, 0, 0}) {
		t.Errorf("preset[0] = %s, want #ff0000", p.LEDPreset[0].Hex())
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default record invalid: %v", err)
	}
}

func TestDefaultIsIndependentCopy(t *testing.T) {
	a := Default()
	a.LEDPreset[3] = RGB{1, 2, 3}
	if b := Default(); b.LEDPreset[3] == a.LEDPreset[3] {
		t.Error("mutating one default record changed another")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *UserPreference)
		wantErr bool
	}{
		{"defaults", func(p *UserPreference) {}, false},
		{"rainbow mode", func(p *UserPreference) { p.ColorMode = ModeRainbow }, false},
		{"last mode", func(p *UserPreference) { p.ColorMode = ModeHueSat }, false},
		{"unknown mode", func(p *UserPreference) { p.ColorMode = ColorMode(4) }, true},
		{"garbage mode", func(p *UserPreference) { p.ColorMode = ColorMode(0xFF) }, true},
		{"opaque presets", func(p *UserPreference) { p.LEDPreset[8] = RGB{0xDE, 0xAD, 0xBE} }, false},
		{"extreme bytes", func(p *UserPreference) {
			p.Brightness, p.RainbowTime, p.Hue, p.Saturation = 0, 0, 255, 0
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("err = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseRGB(t *testing.T) {
	tests := []struct {
		in      string
		want    RGB
		wantErr bool
	}{
		{"#ff8000", RGB{0xFF, 0x80, 0x00}, false},
		{"00FF7f", RGB{0x00, 0xFF, 0x7F}, false},
		{" #010203 ", RGB{1, 2, 3}, false},
		{"#fff", RGB{}, true},
		{"#gg0000", RGB{}, true},
		{"", RGB{}, true},
	}
	for _, tt := range tests {
		got, err := ParseRGB(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRGB(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRGB(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRGB(%q) = %s, want %s", tt.in, got.Hex(), tt.want.Hex())
		}
	}
}

func TestParseColorMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ColorMode
		wantErr bool
	}{
		{"solid", ModeSolid, false},
		{"Rainbow", ModeRainbow, false},
		{"3", ModeHueSat, false},
		{"4", 0, true},
		{"1x", 0, true},
		{"disco", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseColorMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseColorMode(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseColorMode(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	p := Default()
	p.Saved = true
	p.Brightness = 42
	p.ColorMode = ModeRainbow
	p.LEDPreset[4] = RGB{0x12, 0x34, 0x56}

	data, err := MarshalYAMLDoc(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "color_mode: rainbow") {
		t.Errorf("yaml missing mode name:\n%s", data)
	}
	if !strings.Contains(string(data), "'#123456'") && !strings.Contains(string(data), "\"#123456\"") {
		t.Errorf("yaml missing preset hex:\n%s", data)
	}

	got, err := UnmarshalYAMLDoc(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Errorf("round trip:\n got %s\nwant %s", got, p)
	}
}

func TestUnmarshalYAMLDocPartial(t *testing.T) {
	got, err := UnmarshalYAMLDoc([]byte("brightness: 7\ncolor_mode: huesat\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Brightness = 7
	want.ColorMode = ModeHueSat
	if got != want {
		t.Errorf("got %s\nwant %s", got, want)
	}
}

func TestUnmarshalYAMLDocWrongPresetCount(t *testing.T) {
	_, err := UnmarshalYAMLDoc([]byte("led_preset: ['#000000', '#ffffff']\n"))
	if err == nil {
		t.Fatal("expected error for 2 presets")
	}
}

func TestEqual(t *testing.T) {
	a := Default()
	b := Default()
	if !a.Equal(b) {
		t.Fatal("two default records differ")
	}
	b.LEDPreset[8].B++
	if a.Equal(b) {
		t.Error("records with different presets compare equal")
	}
	b = Default()
	b.Saved = true
	if a.Equal(b) {
		t.Error("Saved flag ignored by Equal")
	}
}
