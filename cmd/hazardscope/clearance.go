package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type clearanceOpts struct {
	subjects  string
	miles     float64
	hasMiles  bool
	outputFmt string
}

func newClearanceCmd(configPath *string) *cobra.Command {
	var opts clearanceOpts

	cmd := &cobra.Command{
		Use:   "clearance [subjects.csv]",
		Short: "List subjects farther than a distance from every site",
		Long: `Measures each subject's distance to its nearest site, whatever the site's
status, and lists the subjects whose nearest site is more than --miles away.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.subjects = args[0]
			}
			opts.hasMiles = cmd.Flags().Changed("miles")
			return runClearance(cmd.Context(), *configPath, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.miles, "miles", 0, "Minimum distance to the nearest site (default: scoring radius)")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text or json")

	return cmd
}

func runClearance(ctx context.Context, configPath string, opts clearanceOpts) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.Data.Subjects = firstNonEmpty(opts.subjects, cfg.Data.Subjects)
	if cfg.Data.Subjects == "" {
		return fmt.Errorf("no subjects: pass a file or set data.subjects")
	}
	renderer, err := newRenderer(opts.outputFmt)
	if err != nil {
		return err
	}
	miles := cfg.Scoring.RadiusMiles
	if opts.hasMiles {
		miles = opts.miles
	}

	svc, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Fprintf(os.Stderr, "Measuring distance to the nearest site (clear beyond %.1f miles)...\n", miles)
	report, err := svc.Clearance(ctx, miles)
	if err != nil {
		return err
	}
	return renderer.RenderClearance(os.Stdout, report)
}
