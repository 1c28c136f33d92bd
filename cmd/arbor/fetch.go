package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/client"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url> [key=value...]",
	Short: "Issue an HTTP call with per-host session affinity",
	Long: `Calls <url> through arbor's network client. A session token returned by an
earlier call to the same host is sent along, so "arbor fetch .../login" followed by
"arbor fetch .../ui/home" works against servers that require a session when the
session backend is persistent (redis or bolt).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		method, _ := cmd.Flags().GetString("method")
		files, _ := cmd.Flags().GetStringToString("file")
		headers, _ := cmd.Flags().GetStringToString("header")

		params, err := parseParams(args[1:])
		if err != nil {
			return err
		}

		blocks, cleanup, err := newBlocks(cfg, newLogger(cmd, cfg))
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := blocks.Client().Call(cmd.Context(), client.Request{
			URL:     args[0],
			Method:  strings.ToUpper(method),
			Params:  params,
			Files:   files,
			Headers: headers,
		})
		if err != nil {
			return err
		}

		if s, ok := result.(string); ok {
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringP("method", "X", "GET", "HTTP method")
	fetchCmd.Flags().StringToString("file", nil, "Multipart file fields (field=path)")
	fetchCmd.Flags().StringToString("header", nil, "Extra request headers (name=value)")
}
