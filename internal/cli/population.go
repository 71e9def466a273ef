package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
)

// Population ticks a fixed set of entities on an interval.
type Population struct {
	Engine   *arbor.Engine
	Entities []domain.EntityID
	Interval time.Duration
	Logger   *slog.Logger
}

// NewPopulation names count entities "<prefix>-<n>".
func NewPopulation(eng *arbor.Engine, prefix string, count int, interval time.Duration, logger *slog.Logger) *Population {
	p := &Population{Engine: eng, Interval: interval, Logger: logger}
	for i := 0; i < count; i++ {
		p.Entities = append(p.Entities, domain.EntityID(fmt.Sprintf("%s-%d", prefix, i)))
	}
	return p
}

// Attach attaches every entity at initial. Entities already present in the
// store are resumed.
func (p *Population) Attach(ctx context.Context, initial domain.StateID) error {
	for _, id := range p.Entities {
		err := p.Engine.Attach(ctx, id, initial)
		if errors.Is(err, domain.ErrAlreadyAttached) {
			p.Logger.Info("Resuming stored instance", "entity", id)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// NextTick returns the tick after the newest history record across the
// population, so resumed instances keep increasing tick numbers. It is 0 when
// nothing was recorded yet.
func (p *Population) NextTick(ctx context.Context) (uint64, error) {
	var next uint64
	for _, id := range p.Entities {
		hist, err := p.Engine.History(ctx, id)
		if err != nil {
			return 0, err
		}
		if len(hist) > 0 && hist[len(hist)-1].Tick+1 > next {
			next = hist[len(hist)-1].Tick + 1
		}
	}
	return next, nil
}

// Step advances every entity once, concurrently, and returns the first error.
func (p *Population) Step(ctx context.Context, seq uint64) error {
	var wg sync.WaitGroup
	errs := make([]error, len(p.Entities))
	for i, id := range p.Entities {
		wg.Add(1)
		go func(i int, id domain.EntityID) {
			defer wg.Done()
			_, errs[i] = p.Engine.Advance(ctx, id, domain.Tick{Seq: seq})
		}(i, id)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Run calls Step every Interval until ctx is done. Condition errors are
// logged and do not stop the loop.
func (p *Population) Run(ctx context.Context, start uint64) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for seq := start; ; seq++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := p.Step(ctx, seq); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.Logger.Warn("Tick failed", "tick", seq, "err", err)
		}
	}
}
