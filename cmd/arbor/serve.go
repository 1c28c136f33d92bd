package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/client"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/workers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a description library over HTTP",
	Long: `Serves the descriptions of --dir at GET /ui/{path}, issues session cookies at
POST /login and exposes /health, /metrics and an /events hot-reload stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Library == "" {
			cfg.Library = "."
		}
		port, _ := cmd.Flags().GetString("port")
		requireSession, _ := cmd.Flags().GetBool("require-session")

		logger := newLogger(cmd, cfg)
		blocks, cleanup, err := newBlocks(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(client.Collectors()...)
		reg.MustRegister(workers.Collectors()...)
		reg.MustRegister(observability.Collectors()...)

		tokens, _, closeTokens, err := openSessionStore(cfg, "tokens")
		if err != nil {
			return fmt.Errorf("open token store: %w", err)
		}
		defer closeTokens()

		opts := []httpAdapter.Option{
			httpAdapter.WithRequireSession(requireSession),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithGatherer(reg),
		}
		if tokens != nil {
			opts = append(opts, httpAdapter.WithTokenStore(tokens))
		}

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           httpAdapter.NewHandler(blocks.Library(), opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting arbor server", "addr", srv.Addr, "library", cfg.Library, "require_session", requireSession)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			logger.Info("Start shutdown")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete: %w", err)
			}
			logger.Info("arbor server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Bool("require-session", false, "Answer /ui/* with 401/403 unless a valid session is sent")
}
