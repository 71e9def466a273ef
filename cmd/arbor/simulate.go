package main

import (
	"fmt"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate SOURCE",
	Short: "Drive one entity with scripted conditions",
	Long: `Attaches one entity at --initial and advances it tick by tick, printing every outcome.
Conditions named by --true start true, all others false; --at TICK:NAME=BOOL switches a
condition from that tick on. With --store the instance is persisted as JSON and a later
run with --resume continues it.`,
	Example: `  arbor simulate guard.yaml --initial alive --ticks 10 --at 3:tired=true --at 6:tired=false`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initial, _ := cmd.Flags().GetString("initial")
		entity, _ := cmd.Flags().GetString("entity")
		ticks, _ := cmd.Flags().GetUint64("ticks")
		trueNames, _ := cmd.Flags().GetStringSlice("true")
		at, _ := cmd.Flags().GetStringArray("at")
		storeDir, _ := cmd.Flags().GetString("store")
		resume, _ := cmd.Flags().GetBool("resume")
		historyLimit, _ := cmd.Flags().GetInt("history")
		if !cmd.Flags().Changed("history") {
			historyLimit = env.HistoryLimit
		}

		script, err := cli.ParseScript(trueNames, at)
		if err != nil {
			return err
		}

		opts := []arbor.Option{arbor.WithHistoryLimit(historyLimit)}
		if storeDir != "" {
			opts = append(opts, arbor.WithStore(file.NewStore(storeDir)))
		}
		eng, err := cli.CreateEngine(cmd.Context(), args[0], logger, debugEnabled(cmd), opts...)
		if err != nil {
			return err
		}
		if err := script.Register(eng); err != nil {
			return err
		}
		if initial == "" && !resume {
			roots := eng.Tree().Roots()
			if len(roots) == 0 {
				return fmt.Errorf("tree has no states")
			}
			initial = string(roots[0])
		}

		simOpts := cli.SimulateOptions{
			Entity:  domain.EntityID(entity),
			Initial: domain.StateID(initial),
			Ticks:   ticks,
			Resume:  resume,
		}
		if isTerminal(cmd.OutOrStdout()) {
			simOpts.Colorize = tui.NewPalette().Outcome
		}
		return cli.Simulate(cmd.Context(), eng, simOpts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("initial", "", "Initial state (defaults to the first root)")
	simulateCmd.Flags().String("entity", "sim", "Entity id")
	simulateCmd.Flags().Uint64("ticks", 10, "Number of ticks to run")
	simulateCmd.Flags().StringSlice("true", nil, "Conditions that start true")
	simulateCmd.Flags().StringArray("at", nil, "Switch a condition at a tick: TICK:NAME=BOOL")
	simulateCmd.Flags().String("store", "", "Persist the instance in this directory")
	simulateCmd.Flags().Bool("resume", false, "Continue the stored instance instead of attaching")
	simulateCmd.Flags().Int("history", 64, "Transition history length (0 is unbounded); overrides ARBOR_HISTORY_LIMIT")
}
