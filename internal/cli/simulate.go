package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
)

// SimulateOptions configures a scripted run of one entity.
type SimulateOptions struct {
	Entity  domain.EntityID
	Initial domain.StateID
	Ticks   uint64
	// Resume continues a stored instance instead of attaching a new one.
	Resume bool
	// Colorize, when set, decorates each printed line.
	Colorize func(domain.Outcome, string) string
}

// Simulate advances one entity for opts.Ticks ticks and prints every outcome.
// It stops early once the instance terminates.
func Simulate(ctx context.Context, eng *arbor.Engine, opts SimulateOptions, out io.Writer) error {
	if opts.Entity == "" {
		opts.Entity = "sim"
	}

	start := uint64(0)
	if opts.Resume {
		hist, err := eng.History(ctx, opts.Entity)
		if err != nil {
			return err
		}
		if len(hist) > 0 {
			start = hist[len(hist)-1].Tick + 1
		}
	} else if err := eng.Attach(ctx, opts.Entity, opts.Initial); err != nil {
		return err
	}

	for seq := start; seq < start+opts.Ticks; seq++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := eng.Advance(ctx, opts.Entity, domain.Tick{Seq: seq})
		if err != nil {
			return fmt.Errorf("tick %d: %w", seq, err)
		}
		line := fmt.Sprintf("tick %d: %s", seq, FormatOutcome(outcome))
		if opts.Colorize != nil {
			line = opts.Colorize(outcome, line)
		}
		fmt.Fprintln(out, line)
		if outcome.Kind == domain.OutcomeTerminate {
			return nil
		}
	}
	return nil
}

// FormatOutcome renders an outcome on one line.
func FormatOutcome(o domain.Outcome) string {
	switch o.Kind {
	case domain.OutcomeTransition:
		from := string(o.From)
		if from == "" {
			from = "-"
		}
		parts := []string{fmt.Sprintf("%s -> %s", from, o.To)}
		if o.Pivot != "" {
			parts = append(parts, fmt.Sprintf("via %s (%s)", o.Pivot, o.Strategy))
		}
		return "transition " + strings.Join(parts, " ")
	case domain.OutcomeTerminate:
		return fmt.Sprintf("terminate from %s", o.From)
	default:
		if o.From == "" {
			return "stay"
		}
		return fmt.Sprintf("stay in %s", o.From)
	}
}
