// Package source opens the flat record sources a tabular backend reads:
// local files, S3 or GCS objects, and Postgres staging tables.
package source

import (
	"context"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jmoiron/sqlx"

	"github.com/hazardscope/hazardscope/internal/platform"
	"github.com/hazardscope/hazardscope/pkg/backend"
	"github.com/hazardscope/hazardscope/pkg/config"
)

// File reads a delimited file from the local filesystem.
type File struct {
	Path string
}

func (f File) Name() string { return f.Path }

func (f File) Open(ctx context.Context) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// Factory builds sources of the configured kind, sharing one client.
type Factory struct {
	cfg config.DataConfig
	s3  *s3.Client
	gcs *gcs.Client
	db  *sqlx.DB
}

// NewFactory creates the client cfg.Source needs.
func NewFactory(ctx context.Context, cfg config.DataConfig) (*Factory, error) {
	f := &Factory{cfg: cfg}
	var err error
	switch cfg.Source {
	case "", "file":
	case "s3":
		f.s3, err = NewS3Client(ctx, cfg.S3)
	case "gcs":
		f.gcs, err = gcs.NewClient(ctx)
		if err != nil {
			err = fmt.Errorf("create gcs client: %w", err)
		}
	case "postgres":
		f.db, err = platform.OpenPostgres(ctx, cfg.Postgres.URL, cfg.Postgres.AutoMigrate)
	default:
		err = fmt.Errorf("unknown data source %q", cfg.Source)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Source returns the source for location: a path, an object key or a
// table name depending on the configured kind.
func (f *Factory) Source(location string) (backend.Source, error) {
	if location == "" {
		return nil, fmt.Errorf("empty source location")
	}
	switch {
	case f.s3 != nil:
		return &S3Object{client: f.s3, bucket: f.cfg.S3.Bucket, key: location}, nil
	case f.gcs != nil:
		return &GCSObject{client: f.gcs, bucket: f.cfg.GCS.Bucket, object: location}, nil
	case f.db != nil:
		return NewPostgresTable(f.db, location)
	default:
		return File{Path: location}, nil
	}
}

// DB returns the Postgres handle, or nil for other source kinds.
func (f *Factory) DB() *sqlx.DB { return f.db }

func (f *Factory) Close() error {
	switch {
	case f.gcs != nil:
		return f.gcs.Close()
	case f.db != nil:
		return f.db.Close()
	}
	return nil
}
