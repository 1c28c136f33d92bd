package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/widget"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build <address>",
	Short: "Build a node tree and print it",
	Long: `Resolves the description at <address>, builds it with the generic widget
types and prints the resulting tree as an outline, a Mermaid graph or JSON.

With --watch, the tree is rebuilt every time the description library changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		watch, _ := cmd.Flags().GetBool("watch")

		logger := newLogger(cmd, cfg)
		blocks, cleanup, err := newBlocks(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !watch {
			return buildAndPrint(ctx, cmd.OutOrStdout(), blocks, args[0], format)
		}
		return watchAndBuild(ctx, cmd, blocks, args[0], format)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringP("format", "f", "outline", "Output format: outline, mermaid or json")
	buildCmd.Flags().BoolP("watch", "w", false, "Rebuild when the description library changes")
}

func buildAndPrint(ctx context.Context, w io.Writer, blocks *arbor.Blocks, address, format string) error {
	root, err := blocks.BuildAddress(ctx, address)
	if err != nil {
		return err
	}

	switch format {
	case "outline":
		render := tui.NewRenderer()
		out, err := render(tui.Outline(root))
		if err != nil {
			return err
		}
		fmt.Fprint(w, out)
	case "mermaid":
		fmt.Fprint(w, graph.GenerateMermaid(root, nil))
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot(root))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

// snapshot converts a built tree to plain data.
func snapshot(n domain.Node) map[string]any {
	out := map[string]any{"type": widget.TypeOf(n)}
	if id := n.ID(); id != "" {
		out["id"] = id
	}
	if al, ok := n.(interface{ AttributeNames() []string }); ok {
		attrs := make(map[string]any)
		for _, name := range al.AttributeNames() {
			v, _ := n.Attribute(name)
			if child, ok := v.(domain.Node); ok {
				v = snapshot(child)
			}
			attrs[name] = v
		}
		if len(attrs) > 0 {
			out["attributes"] = attrs
		}
	}
	if el, ok := n.(interface{ Events() []string }); ok {
		if events := el.Events(); len(events) > 0 {
			out["events"] = events
		}
	}
	if c, ok := n.(domain.Container); ok {
		var children []any
		for _, child := range c.Children() {
			children = append(children, snapshot(child))
		}
		if len(children) > 0 {
			out["children"] = children
		}
	}
	return out
}

func watchAndBuild(ctx context.Context, cmd *cobra.Command, blocks *arbor.Blocks, address, format string) error {
	changes, err := blocks.Watch(ctx)
	if err != nil {
		return fmt.Errorf("--watch needs a description library (--dir): %w", err)
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	tui.PrintBanner(errOut)

	for {
		if err := buildAndPrint(ctx, out, blocks, address, format); err != nil {
			printSystemMessage(errOut, "Build failed: %v", err)
		}
		printSystemMessage(errOut, "Waiting for changes...")

		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-changes:
			if !ok {
				return nil
			}
			printSystemMessage(errOut, "Change detected in '%s'.", id)
			// let the file system settle
			time.Sleep(100 * time.Millisecond)
		}
	}
}
