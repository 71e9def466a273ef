package file

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/machine"
)

// Store implements ports.InstanceStore using the local filesystem.
// It stores instances as JSON files in a configured directory.
type Store struct {
	BasePath string
}

// NewStore creates a new Store with the given base path.
// If basePath is empty, it defaults to ".arbor/instances".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".arbor", "instances")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(entity domain.EntityID) string {
	return filepath.Join(s.BasePath, url.PathEscape(string(entity))+".json")
}

// Save persists the instance to a JSON file atomically.
// It writes to a temporary file first, syncs it, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, inst *machine.Instance) error {
	if inst == nil || inst.Entity == "" {
		return fmt.Errorf("entity cannot be empty")
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure instance directory: %w", err)
	}

	data, err := json.MarshalIndent(inst, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	// Same directory keeps the rename on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.path(inst.Entity)
	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing instance file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load retrieves the instance from its JSON file.
func (s *Store) Load(ctx context.Context, entity domain.EntityID) (*machine.Instance, error) {
	if entity == "" {
		return nil, fmt.Errorf("entity cannot be empty")
	}

	data, err := os.ReadFile(s.path(entity))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, entity)
		}
		return nil, fmt.Errorf("failed to read instance file: %w", err)
	}

	var inst machine.Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
	}
	return &inst, nil
}

// Delete removes the instance file. Deleting a missing instance is not an error.
func (s *Store) Delete(ctx context.Context, entity domain.EntityID) error {
	if entity == "" {
		return fmt.Errorf("entity cannot be empty")
	}

	err := os.Remove(s.path(entity))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete instance file: %w", err)
	}
	return nil
}

// List returns the stored entities in lexical order.
func (s *Store) List(ctx context.Context) ([]domain.EntityID, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.EntityID{}, nil
		}
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	entities := make([]domain.EntityID, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		entities = append(entities, domain.EntityID(id))
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })
	return entities, nil
}
