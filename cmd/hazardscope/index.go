package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazardscope/hazardscope/internal/logger"
	"github.com/hazardscope/hazardscope/internal/service"
)

func newIndexCmd(configPath *string) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Publish the configured records to Qdrant or Postgres",
		Long: `Reads sites (and subjects, if configured) from the data source and
replaces the Qdrant collections or Postgres tables with them, in order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Publishing %s to %s...\n", cfg.Data.Sites, target)
			res, err := service.Publish(ctx, cfg, target, logger.L())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "  %d sites, %d subjects written\n", res.Sites, res.Subjects)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", service.TargetQdrant, "Where to publish: qdrant or postgres")
	return cmd
}
