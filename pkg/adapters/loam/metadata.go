package loam

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DescriptionMetadata is the document header of a library description.
// Keys other than the reserved ones land in Attributes.
type DescriptionMetadata struct {
	ID         string         `mapstructure:"id"`
	Type       string         `mapstructure:"type"`
	Options    map[string]any `mapstructure:"options"`
	Children   []any          `mapstructure:"children"`
	Subwidgets []any          `mapstructure:"subwidgets"`
	Binds      []any          `mapstructure:"binds"`
	Extend     map[string]any `mapstructure:"extend"`

	// Attributes holds every remaining top-level key.
	Attributes map[string]any `mapstructure:",remain"`
}

// UnmarshalJSON splits the document into reserved keys and Attributes.
// loam hands typed repositories their metadata as JSON whatever the file format.
func (m *DescriptionMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out DescriptionMetadata
	if err := mapstructure.Decode(raw, &out); err != nil {
		return fmt.Errorf("decode description metadata: %w", err)
	}
	*m = out
	return nil
}

// MarshalJSON flattens Attributes back next to the reserved keys.
func (m DescriptionMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.toMap())
}

func (m DescriptionMetadata) toMap() map[string]any {
	out := make(map[string]any, len(m.Attributes)+7)
	for k, v := range m.Attributes {
		out[k] = v
	}
	set := func(key string, v any, present bool) {
		if present {
			out[key] = v
		}
	}
	set("type", m.Type, m.Type != "")
	set("id", m.ID, m.ID != "")
	set("options", m.Options, len(m.Options) > 0)
	set("children", m.Children, len(m.Children) > 0)
	set("subwidgets", m.Subwidgets, len(m.Subwidgets) > 0)
	set("binds", m.Binds, len(m.Binds) > 0)
	set("extend", m.Extend, len(m.Extend) > 0)
	return out
}
