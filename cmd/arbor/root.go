package main

import (
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "arbor builds node trees from declarative descriptions",
	Long: `arbor assembles interactive node trees at runtime from JSON or YAML
descriptions and interprets the actions they bind to events.

Descriptions are addressed as file://, http(s)://, lib:// (a description
library directory) or relative to the configured base URL.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", config.DefaultFile, "Configuration file (YAML or JSON)")
	flags.String("dir", "", "Description library directory served as lib://")
	flags.String("base-url", "", "Base URL of app-relative addresses")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Int("workers", 0, "Concurrent asynchronous calls")
	flags.Duration("timeout", 0, "HTTP request timeout")
	flags.Bool("insecure", false, "Skip TLS certificate verification")
	flags.String("session-backend", "", "Session store: memory, redis or bolt")
	flags.Int("max-remote-hops", 0, "Longest chain of remote references")
}
