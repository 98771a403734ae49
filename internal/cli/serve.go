package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielorf/ArtCaptionBot/internal/api"
	"github.com/danielorf/ArtCaptionBot/internal/pipeline"
)

var (
	serveAddr     string
	serveSchedule string
	runNow        bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run on a schedule and serve status over HTTP",
	Long: `Serve keeps the bot running: a cron schedule triggers pipeline runs and
an HTTP API reports their outcome.

Endpoints:
  GET  /health      liveness
  GET  /api/status  current step, last run report, next scheduled run
  POST /api/run     start a run now (409 if one is in progress)

Example:
  artcaptionbot serve --addr :8080 --schedule "0 */4 * * *"`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "cron schedule (overrides server.schedule)")
	serveCmd.Flags().BoolVar(&runNow, "run-now", false, "start a run immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveSchedule != "" {
		cfg.Server.Schedule = serveSchedule
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := pipeline.Assemble(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	server := api.NewServer(rt.Controller, cfg.Server.Addr, logger)
	rt.Controller.OnStep(server.SetStep)

	errCh := server.Start()
	if cfg.Server.Schedule != "" {
		if err := server.StartCron(cfg.Server.Schedule); err != nil {
			return err
		}
	}
	if runNow {
		server.TryRun()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
