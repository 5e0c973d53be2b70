// Package index holds the network-backed stores behind the indexed
// backend: a Qdrant document store and a Redis GEO spatial index.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/hazardscope/hazardscope/pkg/backend"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/record"
)

// payloadGeohashPrecision is the precision of the geohash stored with each
// point, for filtering in the Qdrant console.
const payloadGeohashPrecision = 6

const scrollPage = 256

// QdrantConfig holds Qdrant connection configuration.
type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Qdrant is a backend.DocumentStore over the Qdrant REST API. Point ids are
// document sequence numbers, so a scroll returns documents in load order.
type Qdrant struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

var _ backend.DocumentStore = (*Qdrant)(nil)

func NewQdrant(cfg QdrantConfig) *Qdrant {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Qdrant{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
	}
}

func (q *Qdrant) Name() string { return "qdrant" }

// apiError is a non-2xx response.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string { return fmt.Sprintf("qdrant API error %d: %s", e.Status, e.Body) }

func isNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

func (q *Qdrant) collectionURL(collection string, parts ...string) string {
	u := q.baseURL + "/collections/" + url.PathEscape(collection)
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

func (q *Qdrant) EnsureCollection(ctx context.Context, collection string, dim int) error {
	err := q.makeRequest(ctx, http.MethodGet, q.collectionURL(collection), nil, nil)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("collection %s: vector size must be positive, got %d", collection, dim)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	return q.makeRequest(ctx, http.MethodPut, q.collectionURL(collection), body, nil)
}

func (q *Qdrant) DropCollection(ctx context.Context, collection string) error {
	err := q.makeRequest(ctx, http.MethodDelete, q.collectionURL(collection), nil, nil)
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

type qdrantPayload struct {
	Fields  map[string]string `json:"fields"`
	Geohash string            `json:"geohash,omitempty"`
}

type qdrantPoint struct {
	ID      uint64        `json:"id"`
	Vector  []float32     `json:"vector,omitempty"`
	Payload qdrantPayload `json:"payload"`
	Score   float64       `json:"score,omitempty"`
}

func (q *Qdrant) Upsert(ctx context.Context, collection string, docs []backend.Document) error {
	points := make([]qdrantPoint, len(docs))
	for i, d := range docs {
		if len(d.Vector) == 0 {
			return fmt.Errorf("document %d has no vector", d.Seq)
		}
		points[i] = qdrantPoint{
			ID:      d.Seq,
			Vector:  d.Vector,
			Payload: qdrantPayload{Fields: d.Fields, Geohash: geohashOf(d.Fields)},
		}
	}
	u := q.collectionURL(collection, "points") + "?wait=true"
	return q.makeRequest(ctx, http.MethodPut, u, map[string]any{"points": points}, nil)
}

func geohashOf(fields map[string]string) string {
	lat, err1 := strconv.ParseFloat(fields[record.FieldLatitude], 64)
	lon, err2 := strconv.ParseFloat(fields[record.FieldLongitude], 64)
	p := geo.Point{Lat: lat, Lon: lon}
	if err1 != nil || err2 != nil || !p.Valid() {
		return ""
	}
	return geo.Cell(p, payloadGeohashPrecision)
}

type scrollResponse struct {
	Result struct {
		Points         []qdrantPoint `json:"points"`
		NextPageOffset *uint64       `json:"next_page_offset"`
	} `json:"result"`
}

func (q *Qdrant) Scroll(ctx context.Context, collection string) ([]backend.Document, error) {
	var docs []backend.Document
	var offset *uint64
	for {
		req := map[string]any{
			"limit":        scrollPage,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = *offset
		}
		var resp scrollResponse
		if err := q.makeRequest(ctx, http.MethodPost, q.collectionURL(collection, "points", "scroll"), req, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			docs = append(docs, backend.Document{Seq: p.ID, Fields: p.Payload.Fields})
		}
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	return docs, nil
}

type searchResponse struct {
	Result []qdrantPoint `json:"result"`
}

func (q *Qdrant) Search(ctx context.Context, collection string, vector []float32, limit int) ([]backend.Document, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if limit <= 0 {
		limit = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	var resp searchResponse
	if err := q.makeRequest(ctx, http.MethodPost, q.collectionURL(collection, "points", "search"), req, &resp); err != nil {
		return nil, err
	}
	out := make([]backend.Document, len(resp.Result))
	for i, p := range resp.Result {
		out[i] = backend.Document{Seq: p.ID, Fields: p.Payload.Fields, Score: p.Score}
	}
	return out, nil
}

// makeRequest handles HTTP requests to the Qdrant API.
func (q *Qdrant) makeRequest(ctx context.Context, method, endpoint string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &apiError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
