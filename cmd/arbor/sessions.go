package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect the per-host session tokens kept by the session backend",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hosts with a stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		blocks, cleanup, err := newBlocks(cfg, newLogger(cmd, cfg))
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()
		hosts, err := blocks.Sessions().Hosts(ctx)
		if err != nil {
			return err
		}
		if len(hosts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "HOST\tUPDATED")
		for _, host := range hosts {
			rec, err := blocks.Sessions().Store().Get(ctx, host)
			if err != nil {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\n", host, rec.UpdatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var sessionsForgetCmd = &cobra.Command{
	Use:   "forget <host>",
	Short: "Drop the session stored for a scheme://host:port prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		blocks, cleanup, err := newBlocks(cfg, newLogger(cmd, cfg))
		if err != nil {
			return err
		}
		defer cleanup()

		if err := blocks.Sessions().Forget(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Forgot session of %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsForgetCmd)
}
