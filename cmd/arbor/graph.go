package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <address>",
	Short: "Export the built tree as a Mermaid diagram",
	Long:  `Builds the description at <address> and outputs a Mermaid diagram (graph TD) of the node tree.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		highlight, _ := cmd.Flags().GetStringSlice("highlight")
		focus, _ := cmd.Flags().GetString("focus")

		blocks, cleanup, err := newBlocks(cfg, newLogger(cmd, cfg))
		if err != nil {
			return err
		}
		defer cleanup()

		root, err := blocks.BuildAddress(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if len(highlight) > 0 || focus != "" {
			overlay = &graph.GraphOverlay{Highlighted: highlight, Focused: focus}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(root, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringSlice("highlight", nil, "Node ids to highlight")
	graphCmd.Flags().String("focus", "", "Node id to mark as focused")
}
