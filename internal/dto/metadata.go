package dto

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// StateMetadata is the declaration of a state as written in YAML, JSON or
// markdown front matter.
type StateMetadata struct {
	ID       string `json:"id" yaml:"id" mapstructure:"id"`
	Parent   string `json:"parent,omitempty" yaml:"parent,omitempty" mapstructure:"parent"`
	Priority int    `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
	Enter    string `json:"enter,omitempty" yaml:"enter,omitempty" mapstructure:"enter"`
	Exit     string `json:"exit,omitempty" yaml:"exit,omitempty" mapstructure:"exit"`
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty" mapstructure:"strategy"`
}

// Decode converts a raw map into StateMetadata. Unknown keys are rejected.
func Decode(raw map[string]any) (StateMetadata, error) {
	var meta StateMetadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return StateMetadata{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return StateMetadata{}, fmt.Errorf("decode state metadata: %w", err)
	}
	return meta, nil
}

// ToSpec converts the metadata into a declaration. fallbackID (e.g. a document
// name, extension stripped) is used when the metadata carries no id.
func (m StateMetadata) ToSpec(fallbackID string) (domain.StateSpec, error) {
	id := m.ID
	if id == "" {
		id = TrimExtension(fallbackID)
	}
	if id == "" {
		return domain.StateSpec{}, fmt.Errorf("state declaration has no id")
	}

	strategy, err := domain.ParseStrategy(m.Strategy)
	if err != nil {
		return domain.StateSpec{}, fmt.Errorf("state %q: %w", id, err)
	}

	return domain.StateSpec{
		ID:       domain.StateID(id),
		Parent:   domain.StateID(m.Parent),
		Priority: m.Priority,
		Enter:    m.Enter,
		Exit:     m.Exit,
		Strategy: strategy,
	}, nil
}

// FromSpec is the inverse of ToSpec.
func FromSpec(spec domain.StateSpec) StateMetadata {
	meta := StateMetadata{
		ID:       string(spec.ID),
		Parent:   string(spec.Parent),
		Priority: spec.Priority,
		Enter:    spec.Enter,
		Exit:     spec.Exit,
	}
	if spec.Strategy != domain.StrategyReset {
		meta.Strategy = spec.Strategy.String()
	}
	return meta
}

// TrimExtension strips a file extension and normalizes separators.
func TrimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
