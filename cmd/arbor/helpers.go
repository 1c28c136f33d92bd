package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// printSystemMessage writes a dimmed status line.
func printSystemMessage(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, termenv.String("[arbor] "+msg).Faint())
}

// parseParams turns key=value arguments into request params.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q, want key=value", p)
		}
		params[k] = v
	}
	return params, nil
}
