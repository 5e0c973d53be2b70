// Package service assembles the configured backends, resolver, scoring
// engine and batch evaluator, and owns reloading them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hazardscope/hazardscope/internal/index"
	"github.com/hazardscope/hazardscope/internal/metrics"
	"github.com/hazardscope/hazardscope/internal/platform"
	"github.com/hazardscope/hazardscope/internal/source"
	"github.com/hazardscope/hazardscope/pkg/backend"
	"github.com/hazardscope/hazardscope/pkg/batch"
	"github.com/hazardscope/hazardscope/pkg/config"
	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/record"
	"github.com/hazardscope/hazardscope/pkg/resolve"
	"github.com/hazardscope/hazardscope/pkg/scoring"
)

// Status describes the most recent successful reload.
type Status struct {
	Backend   string               `json:"backend"`
	Sites     int                  `json:"sites"`
	Subjects  int                  `json:"subjects"`
	Addresses int                  `json:"addresses"`
	LoadedAt  time.Time            `json:"loaded_at"`
	Duration  string               `json:"duration"`
	Reports   []*record.LoadReport `json:"reports"`
}

// Service is safe for concurrent use. Queries run against whichever
// snapshot is current; Reload swaps new ones in.
type Service struct {
	cfg     *config.Config
	logger  *slog.Logger
	sources *source.Factory
	store   backend.DocumentStore
	redis   *redis.Client

	siteSrc    backend.Source
	subjectSrc backend.Source // nil when no subjects are configured

	sites    *metrics.Instrumented[record.Site]
	subjects *metrics.Instrumented[record.Subject]
	search   *backend.Indexed[record.Site] // nil for the tabular backend

	book   *resolve.AddressBook
	engine *scoring.Engine

	reloadMu sync.Mutex
	status   atomic.Pointer[Status]
	gen      atomic.Uint64
}

// New connects to every collaborator cfg names. Nothing is loaded until
// Reload.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	sources, err := source.NewFactory(ctx, cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("data source: %w", err)
	}
	s := &Service{cfg: cfg, logger: logger, sources: sources, book: resolve.NewAddressBook()}
	if err := s.build(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(ctx context.Context) error {
	var err error
	if s.siteSrc, err = s.sources.Source(s.cfg.Data.Sites); err != nil {
		return fmt.Errorf("sites source: %w", err)
	}
	if s.cfg.Data.Subjects != "" {
		if s.subjectSrc, err = s.sources.Source(s.cfg.Data.Subjects); err != nil {
			return fmt.Errorf("subjects source: %w", err)
		}
	}

	kind := backend.Kind(s.cfg.Backend.Kind)
	opts := []backend.Option{backend.WithLogger(s.logger)}
	if kind == backend.KindIndexed {
		if s.store, err = s.openStore(); err != nil {
			return err
		}
		geoIndex, err := s.openGeoIndex(ctx)
		if err != nil {
			return err
		}
		if geoIndex != nil {
			opts = append(opts, backend.WithGeoIndex(geoIndex))
		}
		opts = append(opts, backend.WithIndexFields(s.cfg.Backend.IndexFields...))
	}

	sites, err := backend.NewSites(backend.Options[record.Site]{
		Kind:       kind,
		Source:     s.siteSrc,
		Store:      s.store,
		Collection: s.cfg.Backend.SitesCollection,
		Options:    opts,
	})
	if err != nil {
		return fmt.Errorf("sites backend: %w", err)
	}
	s.sites = metrics.Instrument(sites, "site")
	s.search, _ = sites.(*backend.Indexed[record.Site])

	if s.subjectSrc != nil {
		subjects, err := backend.NewSubjects(backend.Options[record.Subject]{
			Kind:       kind,
			Source:     s.subjectSrc,
			Store:      s.store,
			Collection: s.cfg.Backend.SubjectsCollection,
			Options:    opts,
		})
		if err != nil {
			return fmt.Errorf("subjects backend: %w", err)
		}
		s.subjects = metrics.Instrument(subjects, "subject")
	}

	s.engine = scoring.NewEngine(s.sites,
		scoring.WithResolver(s.book),
		scoring.WithWeights(s.cfg.Scoring.Weights()),
		scoring.WithLogger(s.logger),
	)
	return nil
}

func (s *Service) openStore() (backend.DocumentStore, error) {
	switch s.cfg.Backend.Store {
	case "qdrant":
		return index.NewQdrant(index.QdrantConfig{
			URL:    s.cfg.Backend.Qdrant.URL,
			APIKey: s.cfg.Backend.Qdrant.APIKey,
		}), nil
	case "memory", "":
		return backend.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown document store %q", s.cfg.Backend.Store)
}

func (s *Service) openGeoIndex(ctx context.Context) (backend.GeoIndex, error) {
	switch s.cfg.Backend.GeoIndex {
	case "geohash":
		return backend.GeohashGrid{Precision: s.cfg.Backend.GeohashPrecision}, nil
	case "redis":
		client, err := platform.OpenRedis(ctx, s.cfg.Backend.Redis)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("backend.redis.addr is required for the redis geo index")
		}
		s.redis = client
		return index.NewRedisGeo(client, s.cfg.Backend.Redis.KeyPrefix), nil
	}
	return nil, nil
}

// staged reports whether the document store only lives in this process and
// so has to be filled from the data source before every load.
func (s *Service) staged() bool {
	_, ok := s.store.(*backend.MemoryStore)
	return ok
}

// Reload loads sites and subjects concurrently, then rebuilds the address
// book from both. A backend whose load fails keeps its previous snapshot.
func (s *Service) Reload(ctx context.Context) (*Status, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	// Bumped even on failure: one backend may have swapped before the
	// other failed.
	defer s.gen.Add(1)
	start := time.Now()

	var (
		sites    []record.Site
		subjects []record.Subject
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.staged() {
			if err := stage(gctx, s.store, s.cfg.Backend.SitesCollection, s.siteSrc, record.Codec[record.Site](record.SiteCodec{}), s.logger); err != nil {
				return err
			}
		}
		var err error
		sites, err = s.sites.Load(gctx)
		return err
	})
	if s.subjects != nil {
		g.Go(func() error {
			if s.staged() {
				if err := stage(gctx, s.store, s.cfg.Backend.SubjectsCollection, s.subjectSrc, record.Codec[record.Subject](record.SubjectCodec{}), s.logger); err != nil {
					return err
				}
			}
			var err error
			subjects, err = s.subjects.Load(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("reload_failed", "err", err)
		return nil, err
	}

	// Subjects come first so a policy address wins over a site with the
	// same street address.
	entries := append(resolve.EntriesOf(subjects), resolve.EntriesOf(sites)...)
	s.book.Replace(entries)

	st := &Status{
		Backend:   s.sites.Name(),
		Sites:     len(sites),
		Subjects:  len(subjects),
		Addresses: s.book.Len(),
		LoadedAt:  time.Now().UTC(),
		Duration:  time.Since(start).Round(time.Millisecond).String(),
		Reports:   []*record.LoadReport{s.sites.LoadReport()},
	}
	if s.subjects != nil {
		st.Reports = append(st.Reports, s.subjects.LoadReport())
	}
	s.status.Store(st)
	s.logger.Info("reload_ok", "backend", st.Backend, "sites", st.Sites, "subjects", st.Subjects,
		"addresses", st.Addresses, "duration", st.Duration)
	return st, nil
}

// stage reads src and replaces collection with its records.
func stage[T backend.Item](ctx context.Context, store backend.DocumentStore, collection string, src backend.Source, codec record.Codec[T], logger *slog.Logger) error {
	items, err := backend.NewTabular(src, codec, backend.WithLogger(logger)).Load(ctx)
	if err != nil {
		return err
	}
	if _, err := backend.Sync(ctx, store, collection, codec, items, nil); err != nil {
		return fmt.Errorf("stage %s into %s: %w", src.Name(), collection, err)
	}
	return nil
}

// Status returns the last successful reload, or nil before the first.
func (s *Service) Status() *Status { return s.status.Load() }

// Generation counts finished reloads. Anything derived from the loaded data
// is valid only for the generation it was computed under.
func (s *Service) Generation() uint64 { return s.gen.Load() }

func (s *Service) Config() *config.Config { return s.cfg }

func (s *Service) Engine() *scoring.Engine { return s.engine }

// DefaultRadius is the configured search radius in miles.
func (s *Service) DefaultRadius() float64 { return s.cfg.Scoring.RadiusMiles }

// Score scores a coordinate, or an address when loc is nil.
func (s *Service) Score(ctx context.Context, loc *geo.Point, address string, radius float64) (*scoring.Result, error) {
	if loc == nil && address != "" {
		return s.engine.ScoreAddress(ctx, address, radius)
	}
	return s.engine.Score(ctx, loc, radius)
}

// Sites returns the sites matching p, or every site when p is nil.
func (s *Service) Sites(ctx context.Context, p predicate.Predicate) ([]record.Site, error) {
	if p == nil {
		return s.sites.All()
	}
	return s.sites.Query(ctx, p)
}

// SearchSites ranks sites by similarity to text. Only the indexed backend
// keeps embeddings.
func (s *Service) SearchSites(ctx context.Context, text string, limit int) ([]backend.Match[record.Site], error) {
	if s.search == nil {
		return nil, fault.Precondition("service.SearchSites", "search needs the indexed backend")
	}
	return s.search.Search(ctx, text, limit)
}

// Subjects returns every loaded subject.
func (s *Service) Subjects() ([]record.Subject, error) {
	if s.subjects == nil {
		return nil, fault.Precondition("service.Subjects", "no subjects source configured")
	}
	return s.subjects.All()
}

// Portfolio scores every loaded subject.
func (s *Service) Portfolio(ctx context.Context, radius float64) (*batch.Report, error) {
	subjects, err := s.Subjects()
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, subjects, radius), nil
}

// Clearance lists loaded subjects that lie more than miles from every site,
// measured against one site snapshot.
func (s *Service) Clearance(ctx context.Context, miles float64) (*batch.ClearanceReport, error) {
	subjects, err := s.Subjects()
	if err != nil {
		return nil, err
	}
	sites, err := s.sites.All()
	if err != nil {
		return nil, err
	}
	return batch.Clear(ctx, subjects, sites, miles, s.book)
}

// Evaluate scores subjects with the configured worker pool.
func (s *Service) Evaluate(ctx context.Context, subjects []record.Subject, radius float64) *batch.Report {
	ev := batch.NewEvaluator(s.engine,
		batch.WithResolver(s.book),
		batch.WithWorkers(s.cfg.Batch.Workers),
		batch.WithLogger(s.logger),
		batch.WithObserver(metrics.ObserveOutcome),
	)
	return ev.EvaluateAll(ctx, subjects, radius)
}

func (s *Service) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.sources != nil {
		errs = append(errs, s.sources.Close())
	}
	return errors.Join(errs...)
}
