package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [start]",
	Short: "Check the description library for consistency",
	Long: `Crawls the description library (--dir, default the working directory) starting from [start] (every description when
omitted), following lib:// references, and reports unknown types, unknown
actiontypes, malformed binds and dangling references.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Library == "" {
			cfg.Library = "."
		}

		blocks, cleanup, err := newBlocks(cfg, newLogger(cmd, cfg))
		if err != nil {
			return err
		}
		defer cleanup()

		start := ""
		if len(args) > 0 {
			start = args[0]
		}
		rules := validator.Rules{
			Nodes:       newNodes(),
			ActionTypes: blocks.Inspect().ActionTypes,
		}
		if err := validator.ValidateLibrary(cmd.Context(), blocks.Library(), rules, start); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Library is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
