// Package prefs defines the lamp's saved lighting preferences and their factory defaults.
package prefs

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PresetCount is the number of fixed colour preset slots.
const PresetCount = 9

// ErrInvalid is returned when a preference record fails validation.
var ErrInvalid = errors.New("invalid preference")

// RGB is a 24-bit colour value.
type RGB struct {
	R, G, B uint8
}

// Hex returns the colour as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseRGB parses "#rrggbb" or "rrggbb".
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("colour %q: want 6 hex digits", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return RGB{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return RGB{R: b[0], G: b[1], B: b[2]}, nil
}

// Presets holds the user-saved colours. Slot index is the preset number.
type Presets [PresetCount]RGB

// ColorMode selects the active lighting mode.
type ColorMode uint8

const (
	ModeSolid ColorMode = iota
	ModePreset
	ModeRainbow
	ModeHueSat

	colorModeCount
)

var colorModeNames = [colorModeCount]string{"solid", "preset", "rainbow", "huesat"}

// Valid reports whether m is a known mode.
func (m ColorMode) Valid() bool {
	return m < colorModeCount
}

func (m ColorMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
	return colorModeNames[m]
}

// ParseColorMode accepts a mode name or its numeric value.
func ParseColorMode(s string) (ColorMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range colorModeNames {
		if name == s {
			return ColorMode(i), nil
		}
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil && ColorMode(n).Valid() {
		return ColorMode(n), nil
	}
	return 0, fmt.Errorf("unknown colour mode %q", s)
}

// UserPreference is the lamp's persisted lighting state.
// It is a plain value: copying it copies every field.
type UserPreference struct {
	// Saved is true only for records that came from an explicit save.
	Saved       bool      `yaml:"saved"`
	Brightness  uint8     `yaml:"brightness"`
	ColorMode   ColorMode `yaml:"color_mode" validate:"colormode"`
	RainbowTime uint8     `yaml:"rainbow_time"`
	Hue         uint8     `yaml:"hue"`
	Saturation  uint8     `yaml:"saturation"`
	LEDPreset   Presets   `yaml:"led_preset"`
}

// Factory defaults.
const (
	DefaultBrightness  uint8     = 128
	DefaultColorMode   ColorMode = ModeSolid
	DefaultRainbowTime uint8     = 192
	DefaultHue         uint8     = 0
	DefaultSaturation  uint8     = 255
)

// DefaultPresets is the factory palette: red, orange, yellow, green, cyan,
// blue, purple, magenta, warm white.
var DefaultPresets = Presets{
	{0xFF, 0x00, 0x00},
	{0xFF, 0x80, 0x00},
	{0xFF, 0xFF, 0x00},
	{0x00, 0xFF, 0x00},
	{0x00, 0xFF, 0xFF},
	{0x00, 0x00, 0xFF},
	{0x80, 0x00, 0xFF},
	{0xFF, 0x00, 0xFF},
	{0xFF, 0xA0, 0x40},
}

// Default returns the factory-default record. Saved is false.
func Default() UserPreference {
	return UserPreference{
		Saved:       false,
		Brightness:  DefaultBrightness,
		ColorMode:   DefaultColorMode,
		RainbowTime: DefaultRainbowTime,
		Hue:         DefaultHue,
		Saturation:  DefaultSaturation,
		LEDPreset:   DefaultPresets,
	}
}

func (p UserPreference) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "saved=%t brightness=%d mode=%s rainbow_time=%d hue=%d saturation=%d presets=[",
		p.Saved, p.Brightness, p.ColorMode, p.RainbowTime, p.Hue, p.Saturation)
	for i, c := range p.LEDPreset {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.Hex())
	}
	b.WriteByte(']')
	return b.String()
}

// Equal reports whether p and other hold the same values.
func (p UserPreference) Equal(other UserPreference) bool {
	return p == other
}
