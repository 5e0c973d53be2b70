package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/record"
)

type sitesOpts struct {
	filter    predicate.SiteFilter
	lat, lon  float64
	hasPoint  bool
	hasRadius bool
	search    string
	limit     int
	outputFmt string
}

func newSitesCmd(configPath *string) *cobra.Command {
	var opts sitesOpts

	cmd := &cobra.Command{
		Use:   "sites",
		Short: "List or search contamination sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if f.Changed("lat") != f.Changed("lon") {
				return fmt.Errorf("--lat and --lon must be given together")
			}
			opts.hasPoint = f.Changed("lat")
			opts.hasRadius = f.Changed("radius")
			return runSites(cmd.Context(), *configPath, opts)
		},
	}

	cmd.Flags().StringVar(&opts.filter.State, "state", "", "State or province code")
	cmd.Flags().StringVar(&opts.filter.Status, "status", "", `Comma-separated statuses, or "unremediated"`)
	cmd.Flags().StringVar(&opts.filter.Contaminant, "contaminant", "", "Contaminant name (substring, case-insensitive)")
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Latitude of the search center")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "Longitude of the search center")
	cmd.Flags().Float64Var(&opts.filter.Miles, "radius", 0, "Search radius in miles (default from config)")
	cmd.Flags().StringVar(&opts.search, "search", "", "Rank sites by similarity to this text (indexed backend)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Show at most this many sites")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text or json")

	return cmd
}

func runSites(ctx context.Context, configPath string, opts sitesOpts) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	renderer, err := newRenderer(opts.outputFmt)
	if err != nil {
		return err
	}
	if opts.hasPoint {
		opts.filter.Center = &geo.Point{Lat: opts.lat, Lon: opts.lon}
		if !opts.hasRadius {
			opts.filter.Miles = cfg.Scoring.RadiusMiles
		}
	}

	svc, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	var sites []record.Site
	if opts.search != "" {
		limit := opts.limit
		if limit <= 0 {
			limit = 10
		}
		hits, err := svc.SearchSites(ctx, opts.search, limit)
		if err != nil {
			return err
		}
		for _, h := range hits {
			sites = append(sites, h.Record)
		}
	} else {
		p, err := opts.filter.Predicate()
		if err != nil {
			return err
		}
		if sites, err = svc.Sites(ctx, p); err != nil {
			return err
		}
	}
	if opts.limit > 0 && len(sites) > opts.limit {
		sites = sites[:opts.limit]
	}
	return renderer.RenderSites(os.Stdout, sites, opts.filter.Center)
}
