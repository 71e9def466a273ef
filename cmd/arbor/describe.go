package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe SOURCE",
	Short: "Print the state tree as a table",
	Long: `Prints every state with its priority, conditions and strategy, indented by depth.
The table is rendered for the terminal unless --raw is set or output is redirected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")

		eng, err := cli.CreateEngine(cmd.Context(), args[0], logger, false)
		if err != nil {
			return err
		}
		md := tui.TreeMarkdown(eng.Name, eng.Tree())

		out := cmd.OutOrStdout()
		if raw || !isTerminal(out) {
			fmt.Fprint(out, md)
			return nil
		}
		render, err := tui.NewRenderer()
		if err != nil {
			return err
		}
		rendered, err := render(md)
		if err != nil {
			return fmt.Errorf("failed to render tree: %w", err)
		}
		fmt.Fprint(out, rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().Bool("raw", false, "Print plain markdown")
}
