package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/aretw0/arbor/internal/dto"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository to the arbor TreeLoader interface.
// Each document declares one state in its front matter; the document name
// is the state id unless the front matter sets one.
type Loader struct {
	Repo *loam.TypedRepository[dto.StateMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[dto.StateMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only, strict Loam repository at path and wraps it.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode keeps numbers as json.Number across adapters; read-only
	// avoids Loam's dev-mode sandbox since the loader never writes.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[dto.StateMetadata](repo)), nil
}

// Load lists every document and converts it into a declaration.
// Declarations are ordered by state id, which is the tie-break order among
// siblings of equal priority.
func (l *Loader) Load(ctx context.Context) ([]domain.StateSpec, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[domain.StateID]string)
	specs := make([]domain.StateSpec, 0, len(docs))
	for _, doc := range docs {
		spec, err := doc.Data.ToSpec(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		if existing, ok := seen[spec.ID]; ok {
			return nil, fmt.Errorf("collision detected: state '%s' is declared in both '%s' and '%s'", spec.ID, existing, doc.ID)
		}
		seen[spec.ID] = doc.ID
		specs = append(specs, spec)
	}

	sort.SliceStable(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs, nil
}

// Save writes one markdown document per declaration. The document body is
// left for human notes.
func Save(ctx context.Context, repo *loam.TypedRepository[dto.StateMetadata], specs []domain.StateSpec) error {
	for _, spec := range specs {
		err := repo.Save(ctx, &loam.DocumentModel[dto.StateMetadata]{
			ID:      string(spec.ID),
			Content: fmt.Sprintf("State %s.", spec.ID),
			Data:    dto.FromSpec(spec),
		})
		if err != nil {
			return fmt.Errorf("loam save failed for %s: %w", spec.ID, err)
		}
	}
	return nil
}
