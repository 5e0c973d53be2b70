package source

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSObject reads one object from a Google Cloud Storage bucket using
// Application Default Credentials.
type GCSObject struct {
	client *gcs.Client
	bucket string
	object string
}

func (o *GCSObject) Name() string { return "gs://" + o.bucket + "/" + o.object }

func (o *GCSObject) Open(ctx context.Context) (io.ReadCloser, error) {
	r, err := o.client.Bucket(o.bucket).Object(o.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", o.object, err)
	}
	return r, nil
}
