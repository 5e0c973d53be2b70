package index

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/hazardscope/hazardscope/pkg/backend"
	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/record"
)

// fakeQdrant implements the handful of endpoints the store uses.
type fakeQdrant struct {
	mu          sync.Mutex
	apiKey      string
	collections map[string]map[uint64]qdrantPoint
	scrolls     int
}

func newFakeQdrant(apiKey string) *fakeQdrant {
	return &fakeQdrant{apiKey: apiKey, collections: map[string]map[uint64]qdrantPoint{}}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.apiKey != "" && r.Header.Get("api-key") != f.apiKey {
		http.Error(w, `{"status":"forbidden"}`, http.StatusForbidden)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "collections" {
		http.NotFound(w, r)
		return
	}
	name := parts[1]
	coll, exists := f.collections[name]
	op := strings.Join(parts[2:], "/")

	switch {
	case op == "" && r.Method == http.MethodGet:
		if !exists {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		writeResult(w, map[string]any{"points_count": len(coll)})
	case op == "" && r.Method == http.MethodPut:
		f.collections[name] = map[uint64]qdrantPoint{}
		writeResult(w, true)
	case op == "" && r.Method == http.MethodDelete:
		if !exists {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		delete(f.collections, name)
		writeResult(w, true)
	case !exists:
		http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
	case op == "points" && r.Method == http.MethodPut:
		var body struct {
			Points []qdrantPoint `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, p := range body.Points {
			coll[p.ID] = p
		}
		writeResult(w, map[string]any{"status": "completed"})
	case op == "points/scroll":
		f.scrolls++
		var body struct {
			Limit  int     `json:"limit"`
			Offset *uint64 `json:"offset"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		ids := sortedIDs(coll)
		var page []qdrantPoint
		var next *uint64
		for _, id := range ids {
			if body.Offset != nil && id < *body.Offset {
				continue
			}
			if len(page) == body.Limit {
				n := id
				next = &n
				break
			}
			p := coll[id]
			p.Vector = nil
			page = append(page, p)
		}
		writeResult(w, map[string]any{"points": page, "next_page_offset": next})
	case op == "points/search":
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		var hits []qdrantPoint
		for _, id := range sortedIDs(coll) {
			p := coll[id]
			p.Score = cosine(body.Vector, p.Vector)
			p.Vector = nil
			hits = append(hits, p)
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if len(hits) > body.Limit {
			hits = hits[:body.Limit]
		}
		writeResult(w, hits)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func sortedIDs(coll map[uint64]qdrantPoint) []uint64 {
	ids := make([]uint64, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
}

type csvSource string

func (s csvSource) Name() string { return "sites.csv" }

func (s csvSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(s))), nil
}

func sitesCSV(n int) string {
	var b strings.Builder
	b.WriteString("id,name,status,contaminants,state,latitude,longitude\n")
	statuses := []string{"Active", "Completed", "Not Started"}
	for i := 0; i < n; i++ {
		lat := 30 + float64(i%37)*0.25
		lon := -120 + float64(i%53)*0.2
		b.WriteString(strings.Join([]string{
			"S" + strconv.Itoa(i), "Site " + strconv.Itoa(i), statuses[i%3], "Lead; Arsenic", []string{"CA", "NV"}[i%2],
			strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lon, 'f', -1, 64),
		}, ",") + "\n")
	}
	return b.String()
}

func TestQdrantStoreBacksIndexedBackend(t *testing.T) {
	fake := newFakeQdrant("secret")
	srv := httptest.NewServer(fake)
	defer srv.Close()
	store := NewQdrant(QdrantConfig{URL: srv.URL, APIKey: "secret"})
	ctx := context.Background()

	tab := backend.NewTabular[record.Site](csvSource(sitesCSV(600)), record.SiteCodec{})
	sites, err := tab.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	n, err := backend.Sync(ctx, store, "sites", record.SiteCodec{}, sites, nil)
	if err != nil || n != 600 {
		t.Fatalf("Sync = %d, %v", n, err)
	}

	idx := backend.NewIndexed[record.Site](store, "sites", record.SiteCodec{}, backend.WithGeoIndex(backend.GeohashGrid{}))
	loaded, err := idx.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 600 || loaded[0].ID != "S0" || loaded[599].ID != "S599" {
		t.Fatalf("loaded %d records, first %s", len(loaded), loaded[0].ID)
	}
	if fake.scrolls < 3 {
		t.Errorf("expected paged scroll, got %d requests", fake.scrolls)
	}

	within, _ := predicate.Within(geo.Point{Lat: 33, Lon: -117}, 60)
	for _, p := range []predicate.Predicate{
		within,
		predicate.And(within, predicate.Unremediated()),
		predicate.Equals(record.FieldState, "nv"),
	} {
		want, _ := tab.Query(ctx, p)
		got, err := idx.Query(ctx, p)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(want) {
			t.Fatalf("%s: got %d, want %d", p, len(got), len(want))
		}
		for i := range got {
			if got[i].ID != want[i].ID {
				t.Fatalf("%s: position %d is %s, want %s", p, i, got[i].ID, want[i].ID)
			}
		}
	}

	hits, err := idx.Search(ctx, "Site 7 Lead", 3)
	if err != nil || len(hits) == 0 {
		t.Fatalf("Search = %v, %v", hits, err)
	}
}

func TestQdrantPayloadCarriesGeohash(t *testing.T) {
	fake := newFakeQdrant("")
	srv := httptest.NewServer(fake)
	defer srv.Close()
	store := NewQdrant(QdrantConfig{URL: srv.URL})
	ctx := context.Background()

	if err := store.EnsureCollection(ctx, "c", 2); err != nil {
		t.Fatal(err)
	}
	docs := []backend.Document{
		{Seq: 2, Fields: map[string]string{"id": "B", "latitude": "37.77", "longitude": "-122.42"}, Vector: []float32{1, 0}},
		{Seq: 1, Fields: map[string]string{"id": "A", "latitude": "", "longitude": ""}, Vector: []float32{0, 1}},
	}
	if err := store.Upsert(ctx, "c", docs); err != nil {
		t.Fatal(err)
	}
	if got := fake.collections["c"][2].Payload.Geohash; got != "9q8yy7" {
		t.Errorf("geohash = %q, want 9q8yy7", got)
	}
	if got := fake.collections["c"][1].Payload.Geohash; got != "" {
		t.Errorf("location-less geohash = %q", got)
	}

	out, err := store.Scroll(ctx, "c")
	if err != nil || len(out) != 2 || out[0].Fields["id"] != "A" {
		t.Errorf("Scroll = %+v, %v", out, err)
	}
	if err := store.Upsert(ctx, "c", []backend.Document{{Seq: 3}}); err == nil {
		t.Error("upsert without vector accepted")
	}
}

func TestQdrantErrors(t *testing.T) {
	srv := httptest.NewServer(newFakeQdrant("right"))
	defer srv.Close()
	ctx := context.Background()

	wrongKey := NewQdrant(QdrantConfig{URL: srv.URL, APIKey: "wrong"})
	var ae *apiError
	if err := wrongKey.EnsureCollection(ctx, "c", 4); !errors.As(err, &ae) || ae.Status != http.StatusForbidden {
		t.Errorf("wrong key err = %v", err)
	}

	store := NewQdrant(QdrantConfig{URL: srv.URL, APIKey: "right"})
	if err := store.DropCollection(ctx, "missing"); err != nil {
		t.Errorf("dropping a missing collection: %v", err)
	}
	if _, err := store.Scroll(ctx, "missing"); !isNotFound(err) {
		t.Errorf("scroll missing err = %v", err)
	}

	idx := backend.NewIndexed[record.Site](store, "missing", record.SiteCodec{})
	_, err := idx.Load(ctx)
	if !errors.Is(err, fault.ErrDataLoad) || !strings.Contains(err.Error(), "qdrant/missing") {
		t.Errorf("Load err = %v, want DATA_LOAD naming qdrant/missing", err)
	}
}
