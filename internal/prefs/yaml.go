package prefs

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML renders the colour as "#rrggbb".
func (c RGB) MarshalYAML() (any, error) {
	return c.Hex(), nil
}

// UnmarshalYAML accepts "#rrggbb".
func (c *RGB) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseRGB(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML renders the mode by name.
func (m ColorMode) MarshalYAML() (any, error) {
	if !m.Valid() {
		return uint8(m), nil
	}
	return m.String(), nil
}

// UnmarshalYAML accepts a mode name or number.
func (m *ColorMode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("colour mode: expected scalar at line %d", value.Line)
	}
	parsed, err := ParseColorMode(value.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalYAMLDoc encodes the record as a YAML document.
func MarshalYAMLDoc(p UserPreference) ([]byte, error) {
	return yaml.Marshal(p)
}

// UnmarshalYAMLDoc decodes a YAML document over the factory defaults, so
// fields absent from the document keep their default values. A preset list,
// when present, must have exactly PresetCount entries.
func UnmarshalYAMLDoc(data []byte) (UserPreference, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return UserPreference{}, fmt.Errorf("parse preferences: %w", err)
	}
	return p, nil
}
