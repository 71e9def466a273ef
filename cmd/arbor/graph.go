package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph SOURCE",
	Short: "Export the state tree visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the state tree. With --store and --entity,
the visited and current states of a stored instance are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storeDir, _ := cmd.Flags().GetString("store")
		entity, _ := cmd.Flags().GetString("entity")

		eng, err := cli.CreateEngine(cmd.Context(), args[0], logger, false)
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if entity != "" {
			if storeDir == "" {
				return fmt.Errorf("--entity requires --store")
			}
			inst, err := file.NewStore(storeDir).Load(cmd.Context(), domain.EntityID(entity))
			if err != nil {
				return err
			}
			overlay = graph.OverlayFromHistory(inst.History.Records(), inst.Current, inst.Terminated)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(eng.Tree(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("store", "", "Directory of a file instance store")
	graphCmd.Flags().String("entity", "", "Entity whose instance is overlaid on the graph")
}
