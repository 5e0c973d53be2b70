package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazardscope/hazardscope/pkg/geo"
)

type scoreOpts struct {
	lat, lon  float64
	hasPoint  bool
	address   string
	radius    float64
	hasRadius bool
	outputFmt string
}

func newScoreCmd(configPath *string) *cobra.Command {
	var opts scoreOpts

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one location by nearby unremediated sites",
		Long: `Scores a coordinate (--lat/--lon) or an address known to the loaded
records (--address). The score starts at 100 and loses a flat penalty per
unremediated site within the radius.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if f.Changed("lat") != f.Changed("lon") {
				return fmt.Errorf("--lat and --lon must be given together")
			}
			opts.hasPoint = f.Changed("lat")
			opts.hasRadius = f.Changed("radius")
			if !opts.hasPoint && opts.address == "" {
				return fmt.Errorf("give --lat and --lon, or --address")
			}
			return runScore(cmd.Context(), *configPath, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Latitude in decimal degrees")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "Longitude in decimal degrees")
	cmd.Flags().StringVar(&opts.address, "address", "", "Address to resolve against loaded records")
	cmd.Flags().Float64Var(&opts.radius, "radius", 0, "Search radius in miles (default from config)")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text or json")

	return cmd
}

func runScore(ctx context.Context, configPath string, opts scoreOpts) error {
	cfg, err := loadConfig(configPath)
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

	var loc *geo.Point
	if opts.hasPoint {
		loc = &geo.Point{Lat: opts.lat, Lon: opts.lon}
	}
	res, err := svc.Score(ctx, loc, opts.address, radius)
	if err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	return renderer.Render(os.Stdout, res)
}
