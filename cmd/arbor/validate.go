package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate SOURCE",
	Short: "Check the state tree for consistency",
	Long: `Builds the tree from a YAML/JSON file or a Loam directory and reports structural
errors and malformed conditions. With --conditions, every condition leaf must be one of
the given names.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		known, _ := cmd.Flags().GetStringSlice("conditions")

		eng, err := cli.CreateEngine(cmd.Context(), args[0], logger, false)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if cmd.Flags().Changed("conditions") {
			for _, name := range known {
				_ = eng.RegisterCondition(name, func(domain.Scope) bool { return false })
			}
			if err := eng.Validate(); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Tree %q is valid: %d states, %d conditions\n",
			eng.Name, eng.Tree().Len(), len(cli.Conditions(eng)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringSlice("conditions", nil, "Names of the predicates the host registers")
}
