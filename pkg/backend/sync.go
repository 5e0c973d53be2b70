package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazardscope/hazardscope/pkg/record"
)

// syncBatch is the number of documents sent per Upsert call.
const syncBatch = 256

// Sync replaces the contents of collection with items, in order. Each
// document carries the codec's field map and an embedding of its text, so
// an Indexed backend over the collection decodes exactly what a Tabular
// backend would have read.
func Sync[T Item](ctx context.Context, store DocumentStore, collection string, codec record.Codec[T], items []T, embedder Embedder) (int, error) {
	if embedder == nil {
		embedder = NewHashEmbedder(DefaultEmbeddingDim)
	}
	if err := store.DropCollection(ctx, collection); err != nil {
		return 0, fmt.Errorf("drop collection %s: %w", collection, err)
	}
	if err := store.EnsureCollection(ctx, collection, embedder.Dim()); err != nil {
		return 0, fmt.Errorf("ensure collection %s: %w", collection, err)
	}

	cols := codec.Columns()
	written := 0
	for start := 0; start < len(items); start += syncBatch {
		end := start + syncBatch
		if end > len(items) {
			end = len(items)
		}
		docs := make([]Document, 0, end-start)
		for i := start; i < end; i++ {
			fields := codec.Encode(items[i])
			docs = append(docs, Document{
				Seq:    uint64(i + 1),
				Fields: fields,
				Vector: embedder.Embed(DocumentText(fields, cols)),
			})
		}
		if err := store.Upsert(ctx, collection, docs); err != nil {
			return written, fmt.Errorf("upsert batch %d-%d: %w", start, end-1, err)
		}
		written += len(docs)
	}
	return written, nil
}

// DocumentText is the text embedded for a document: every descriptive
// field in column order, without identifiers or coordinates.
func DocumentText(fields map[string]string, columns []string) string {
	var parts []string
	for _, c := range columns {
		switch c {
		case record.FieldID, record.FieldLatitude, record.FieldLongitude:
			continue
		}
		if v := strings.TrimSpace(fields[c]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
