package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/file"
	loamAdapter "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// OpenSource returns the tree loader for path and a display name.
// A directory is read as a Loam repository; a file as YAML or JSON.
func OpenSource(path string) (ports.TreeLoader, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("tree source: %w", err)
	}

	if info.IsDir() {
		loader, err := loamAdapter.Open(path)
		if err != nil {
			return nil, "", err
		}
		abs, _ := filepath.Abs(path)
		return loader, filepath.Base(abs), nil
	}

	loader := file.NewLoader(path)
	doc, err := loader.Document()
	if err != nil {
		return nil, "", err
	}
	name := doc.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return loader, name, nil
}

// CreateEngine loads the tree at path and initializes an engine with standard
// CLI conventions: the source name labels the engine and, in debug mode,
// every transition is logged.
func CreateEngine(ctx context.Context, path string, logger *slog.Logger, debug bool, opts ...arbor.Option) (*arbor.Engine, error) {
	loader, name, err := OpenSource(path)
	if err != nil {
		return nil, err
	}

	engineOpts := []arbor.Option{arbor.WithName(name), arbor.WithLogger(logger)}
	if debug {
		engineOpts = append(engineOpts, arbor.WithLifecycleHooks(createDebugHooks(logger)))
	}
	engineOpts = append(engineOpts, opts...)

	eng, err := arbor.Load(ctx, loader, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, nil
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.Debug("Transition", "entity", e.Entity, "from", e.Outcome.From, "to", e.Outcome.To,
				"strategy", e.Outcome.Strategy, "exited", e.Exited, "entered", e.Entered)
		},
		OnTerminate: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.Debug("Terminate", "entity", e.Entity, "from", e.Outcome.From, "exited", e.Exited)
		},
		OnResolveError: func(ctx context.Context, e *domain.ResolveErrorEvent) {
			logger.Debug("Resolve error", "entity", e.Entity, "state", e.State, "err", e.Err)
		},
	}
}
