package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klubi/relay/internal/apiserver"
	"github.com/klubi/relay/internal/app"
	"github.com/klubi/relay/internal/config"
	"github.com/klubi/relay/internal/logging"
)

func newServeCmd() *cobra.Command {
	var (
		port      int
		host      string
		dataDir   string
		storeType string
		generator string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay API server",
		Long: `Start the relay API server.

Configuration is read from --config, then RELAY_* environment variables,
then the flags below.`,
		Example: `  relay serve
  relay serve --store bolt --data-dir ./data
  RELAY_AGENT_GENERATOR=cli relay serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Build configuration with CLI overrides.
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.Store.DataDir = dataDir
			}
			if cmd.Flags().Changed("store") {
				cfg.Store.Type = storeType
			}
			if cmd.Flags().Changed("generator") {
				cfg.Agent.Generator = generator
			}
			if cmd.Flags().Changed("ttl") {
				cfg.Store.TTL = ttl
			}

			// 2. Create logger.
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync()

			// 3. Assemble tools, agents, orchestrator and store.
			a, err := app.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Controller.Start(cmd.Context()); err != nil {
				return err
			}

			// 4. Create and start API server.
			apiSrv := apiserver.NewServer(cfg.ServerAddress(), apiserver.Deps{
				Orchestrator: a.Orchestrator,
				Tools:        a.Tools,
				Store:        a.Store,
				Gatherer:     a.Metrics,
			}, logger)

			out := cmd.OutOrStdout()
			color.New(color.FgCyan, color.Bold).Fprintln(out, "Relay")
			fmt.Fprintf(out, "   API Server: http://%s\n", cfg.ServerAddress())
			fmt.Fprintf(out, "   Generator:  %s\n", cfg.Agent.Generator)
			fmt.Fprintf(out, "   Store:      %s\n", cfg.Store.Type)
			if cfg.Store.Type == "bolt" {
				fmt.Fprintf(out, "   DB Path:    %s\n", cfg.DBPath())
			}
			fmt.Fprintf(out, "   Tools:      %d\n", a.Tools.Len())
			if cfg.Store.TTL > 0 {
				fmt.Fprintf(out, "   Run TTL:    %s\n", cfg.Store.TTL)
			}
			fmt.Fprintln(out)

			errCh := make(chan error, 1)
			go func() {
				if err := apiSrv.Start(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			// 5. Wait for interrupt signal for graceful shutdown.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case sig := <-sigCh:
				logger.Info("received shutdown signal", zap.String("signal", sig.String()))
			case err := <-errCh:
				logger.Error("API server error", zap.Error(err))
				return err
			}

			logger.Info("shutting down gracefully...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := apiSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("API server shutdown error", zap.Error(err))
			}

			logger.Info("relay stopped")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 7420, "API server port")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "API server host")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory for the bolt store (default: ~/.relay/data)")
	cmd.Flags().StringVar(&storeType, "store", "memory", "TaskRun store: memory|bolt")
	cmd.Flags().StringVar(&generator, "generator", "static", "Review text generator: static|cli|anthropic")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Delete finished task runs this long after they finish (0 keeps them)")

	return cmd
}
