package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazardscope/hazardscope/internal/index"
	"github.com/hazardscope/hazardscope/internal/platform"
	"github.com/hazardscope/hazardscope/internal/source"
	"github.com/hazardscope/hazardscope/pkg/backend"
	"github.com/hazardscope/hazardscope/pkg/config"
	"github.com/hazardscope/hazardscope/pkg/record"
)

// Publish targets.
const (
	TargetQdrant   = "qdrant"
	TargetPostgres = "postgres"
)

// PublishResult counts the records written by Publish.
type PublishResult struct {
	Target   string `json:"target"`
	Sites    int    `json:"sites"`
	Subjects int    `json:"subjects"`
}

// Publish reads the configured data source and writes its records to
// target: the Qdrant collections the indexed backend reads, or the Postgres
// tables the postgres source reads.
func Publish(ctx context.Context, cfg *config.Config, target string, logger *slog.Logger) (*PublishResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if target == TargetPostgres && cfg.Data.Source == "postgres" {
		return nil, fmt.Errorf("data source is already postgres")
	}
	sources, err := source.NewFactory(ctx, cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("data source: %w", err)
	}
	defer sources.Close()

	sites, err := read(ctx, sources, cfg.Data.Sites, record.Codec[record.Site](record.SiteCodec{}), logger)
	if err != nil {
		return nil, err
	}
	var subjects []record.Subject
	if cfg.Data.Subjects != "" {
		if subjects, err = read(ctx, sources, cfg.Data.Subjects, record.Codec[record.Subject](record.SubjectCodec{}), logger); err != nil {
			return nil, err
		}
	}

	res := &PublishResult{Target: target}
	switch target {
	case TargetQdrant:
		store := index.NewQdrant(index.QdrantConfig{URL: cfg.Backend.Qdrant.URL, APIKey: cfg.Backend.Qdrant.APIKey})
		if res.Sites, err = backend.Sync(ctx, store, cfg.Backend.SitesCollection, record.SiteCodec{}, sites, nil); err != nil {
			return nil, fmt.Errorf("publish sites: %w", err)
		}
		if subjects != nil {
			if res.Subjects, err = backend.Sync(ctx, store, cfg.Backend.SubjectsCollection, record.SubjectCodec{}, subjects, nil); err != nil {
				return nil, fmt.Errorf("publish subjects: %w", err)
			}
		}
	case TargetPostgres:
		db, err := platform.OpenPostgres(ctx, cfg.Data.Postgres.URL, true)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		if res.Sites, err = source.ImportPostgres(ctx, db, "sites", record.SiteCodec{}, sites); err != nil {
			return nil, fmt.Errorf("publish sites: %w", err)
		}
		if subjects != nil {
			if res.Subjects, err = source.ImportPostgres(ctx, db, "subjects", record.SubjectCodec{}, subjects); err != nil {
				return nil, fmt.Errorf("publish subjects: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unknown publish target %q (want %s or %s)", target, TargetQdrant, TargetPostgres)
	}
	logger.Info("publish_ok", "target", target, "sites", res.Sites, "subjects", res.Subjects)
	return res, nil
}

func read[T backend.Item](ctx context.Context, sources *source.Factory, location string, codec record.Codec[T], logger *slog.Logger) ([]T, error) {
	src, err := sources.Source(location)
	if err != nil {
		return nil, err
	}
	return backend.NewTabular(src, codec, backend.WithLogger(logger)).Load(ctx)
}
