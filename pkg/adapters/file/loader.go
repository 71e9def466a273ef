package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/arbor/internal/dto"
	"github.com/aretw0/arbor/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape of a tree declaration file.
//
//	name: orc
//	states:
//	  - id: alive
//	  - id: idle
//	    parent: alive
//	    exit: sees_enemy
type Document struct {
	Name   string           `yaml:"name" json:"name"`
	States []map[string]any `yaml:"states" json:"states"`
}

// Loader implements ports.TreeLoader over a YAML or JSON file.
type Loader struct {
	Path string
}

// NewLoader creates a loader for the file at path. The format is chosen by
// extension: ".json" is JSON, anything else is YAML.
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// Load reads and decodes the declarations in file order.
func (l *Loader) Load(ctx context.Context) ([]domain.StateSpec, error) {
	doc, err := l.Document()
	if err != nil {
		return nil, err
	}
	return Specs(doc)
}

// Document reads and parses the file without converting the states.
func (l *Loader) Document() (Document, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read tree file: %w", err)
	}
	return Parse(data, filepath.Ext(l.Path))
}

// Parse decodes a declaration document. ext selects the format.
func Parse(data []byte, ext string) (Document, error) {
	var doc Document
	if strings.ToLower(ext) == ".json" {
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("failed to parse tree json: %w", err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse tree yaml: %w", err)
	}
	return doc, nil
}

// Specs converts every state of doc into a declaration. Unknown keys are rejected.
func Specs(doc Document) ([]domain.StateSpec, error) {
	specs := make([]domain.StateSpec, 0, len(doc.States))
	for i, raw := range doc.States {
		meta, err := dto.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("state #%d: %w", i, err)
		}
		spec, err := meta.ToSpec("")
		if err != nil {
			return nil, fmt.Errorf("state #%d: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Write encodes specs as a YAML document.
func Write(path, name string, specs []domain.StateSpec) error {
	out := struct {
		Name   string              `yaml:"name,omitempty"`
		States []dto.StateMetadata `yaml:"states"`
	}{Name: name}
	for _, s := range specs {
		out.States = append(out.States, dto.FromSpec(s))
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode tree yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tree file: %w", err)
	}
	return nil
}
