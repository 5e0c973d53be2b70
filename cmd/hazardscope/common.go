package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/hazardscope/hazardscope/internal/logger"
	"github.com/hazardscope/hazardscope/internal/service"
	"github.com/hazardscope/hazardscope/pkg/config"
	"github.com/hazardscope/hazardscope/pkg/surface"
)

// loadConfig reads path, or the nearest .hazardscope/config.yaml when path
// is empty, falling back to the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			path = config.FindConfigFile(cwd)
		}
	}
	if path == "" {
		cfg := config.DefaultConfig()
		cfg.ApplyEnv(os.Getenv)
		return cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// openService builds the service and loads its data, reporting progress on
// stderr.
func openService(ctx context.Context, cfg *config.Config) (*service.Service, error) {
	svc, err := service.New(ctx, cfg, logger.L())
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Loading sites from %s (%s backend)...\n", cfg.Data.Sites, cfg.Backend.Kind)
	st, err := svc.Reload(ctx)
	if err != nil {
		svc.Close()
		return nil, err
	}
	for _, r := range st.Reports {
		if len(r.Skipped) > 0 {
			fmt.Fprintf(os.Stderr, "  Warning: %s: skipped %d malformed rows\n", r.Source, len(r.Skipped))
		}
	}
	fmt.Fprintf(os.Stderr, "  %d sites, %d subjects loaded in %s\n", st.Sites, st.Subjects, st.Duration)
	return svc, nil
}

func newRenderer(format string) (surface.Renderer, error) {
	switch strings.ToLower(format) {
	case "json":
		return &surface.JSONRenderer{}, nil
	case "text", "":
		return &surface.TerminalRenderer{NoColor: !isatty.IsTerminal(os.Stdout.Fd())}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
