// Package main provides the hazardscope CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hazardscope/hazardscope/internal/logger"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	logger.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:   "hazardscope",
		Short: "Proximity safety scores from contamination site registries",
		Long: `Hazardscope scores locations by the unremediated contamination sites
within a radius, lists and searches sites, and scores whole portfolios.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .hazardscope/config.yaml in this or a parent directory)")

	rootCmd.AddCommand(
		newScoreCmd(&configPath),
		newBatchCmd(&configPath),
		newClearanceCmd(&configPath),
		newSitesCmd(&configPath),
		newIndexCmd(&configPath),
	)
	return rootCmd
}
