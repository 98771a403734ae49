package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/pipeline"
)

var (
	dryRun           bool
	categories       []string
	noFilterExplicit bool
	runTimeout       time.Duration
	reportJSON       bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Select, caption and publish one image",
	Long: `Run performs one pipeline run:
- Read recent publications so nothing is posted twice
- Pick the first image post of a random category that passes the format check
- Describe it with the configured vision provider
- Drop explicit images (unless --no-filter-explicit)
- Publish the image with its caption

Example:
  artcaptionbot run --dry-run
  artcaptionbot run --category itookapicture --category albumartporn
  artcaptionbot run --json > report.json`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the caption instead of publishing (no history, events or archive)")
	runCmd.Flags().StringSliceVar(&categories, "category", nil, "categories to sample from (overrides pipeline.categories)")
	runCmd.Flags().BoolVar(&noFilterExplicit, "no-filter-explicit", false, "publish images flagged explicit")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "abort the run after this long (0 = no limit)")
	runCmd.Flags().BoolVar(&reportJSON, "json", false, "print the run report as JSON")
}

// applyRunFlags layers run flags over the loaded configuration
func applyRunFlags(cfg *model.Config) {
	if len(categories) > 0 {
		cfg.Pipeline.Categories = categories
	}
	if noFilterExplicit {
		cfg.Pipeline.FilterExplicit = false
	}
	if dryRun {
		cfg.Publisher.Backend = "dryrun"
		cfg.History.Backend = "none"
		cfg.Events.Enabled = false
		cfg.Archive.Enabled = false
	}
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	rt, err := pipeline.Assemble(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	if verbose {
		fmt.Fprintf(os.Stderr, "Source: %s  Annotator: %s  Publisher: %s\n", rt.Source, rt.Annotator, rt.Publisher)
		fmt.Fprintf(os.Stderr, "Categories: %v\n\n", cfg.Pipeline.Categories)
	}

	report, err := rt.Controller.Run(ctx)
	if reportJSON && report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			logger.Warn("encode report failed", "error", encErr)
		}
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if !reportJSON {
		fmt.Fprintf(os.Stderr, "✓ Published %s (%s)\n", report.Publication.ID, report.Item.ID)
		fmt.Println(report.Caption)
		if len(report.Ignored) > 0 {
			fmt.Fprintf(os.Stderr, "Ignored this run: %v\n", report.Ignored)
		}
	}
	return nil
}
