package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazardscope/hazardscope/pkg/scoring"
)

type batchOpts struct {
	subjects  string
	radius    float64
	hasRadius bool
	threshold string
	workers   int
	failOn    bool
	outputFmt string
}

func newBatchCmd(configPath *string) *cobra.Command {
	var opts batchOpts

	cmd := &cobra.Command{
		Use:   "batch [subjects.csv]",
		Short: "Score every subject in a portfolio",
		Long: `Scores each subject at its coordinate, resolving subjects without one by
address. Subjects that cannot be scored are reported and do not stop the run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.subjects = args[0]
			}
			opts.hasRadius = cmd.Flags().Changed("radius")
			return runBatch(cmd.Context(), *configPath, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.radius, "radius", 0, "Search radius in miles (default from config)")
	cmd.Flags().StringVar(&opts.threshold, "threshold", "", "Flag subjects at or worse than this tier (default from config)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent evaluations (default from config)")
	cmd.Flags().BoolVar(&opts.failOn, "fail-on-threshold", false, "Exit non-zero when any subject is flagged")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text or json")

	return cmd
}

func runBatch(ctx context.Context, configPath string, opts batchOpts) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.Data.Subjects = firstNonEmpty(opts.subjects, cfg.Data.Subjects)
	if cfg.Data.Subjects == "" {
		return fmt.Errorf("no subjects: pass a file or set data.subjects")
	}
	if opts.workers > 0 {
		cfg.Batch.Workers = opts.workers
	}
	tier, err := scoring.ParseTier(firstNonEmpty(opts.threshold, cfg.Batch.Threshold))
	if err != nil {
		return err
	}
	renderer, err := newRenderer(opts.outputFmt)
	if err != nil {
		return err
	}
	radius := cfg.Scoring.RadiusMiles
	if opts.hasRadius {
		radius = opts.radius
	}

	svc, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Fprintf(os.Stderr, "Scoring portfolio within %.1f miles (%d workers)...\n", radius, cfg.Batch.Workers)
	report, err := svc.Portfolio(ctx, radius)
	if err != nil {
		return err
	}
	if err := renderer.RenderBatch(os.Stdout, report); err != nil {
		return err
	}

	flagged := report.AtOrWorse(tier)
	fmt.Fprintf(os.Stderr, "%d of %d subjects at or worse than %s\n", len(flagged), len(report.Outcomes), tier)
	if opts.failOn && len(flagged) > 0 {
		return fmt.Errorf("%d subjects at or worse than %s", len(flagged), tier)
	}
	return nil
}
