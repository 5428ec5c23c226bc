package browsecatalog

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"admissions-gateway/internal/common/database"
	"admissions-gateway/internal/common/erp"
	"admissions-gateway/internal/common/errors"
	commonhttp "admissions-gateway/internal/common/http"
	"admissions-gateway/internal/common/logger"
	"admissions-gateway/internal/common/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	resourceEvents     = "événements"
	resourceFormations = "formations"
)

// Upstream is the read side of the ERP client.
type Upstream interface {
	Configured(ops ...erp.Operation) error
	ListEvents(ctx context.Context) (*commonhttp.Response, error)
	ListFormations(ctx context.Context) (*commonhttp.Response, error)
}

// Cache stores encoded snapshots shared between gateway instances.
type Cache interface {
	GetJSON(ctx context.Context, key string, v interface{}) error
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type ServiceDependencies struct {
	Upstream Upstream
	Cache    Cache
	Logger   logger.Logger
	Now      func() time.Time
}

// Service loads and serves the catalog snapshot.
type Service struct {
	upstream Upstream
	cache    Cache
	logger   logger.Logger
	now      func() time.Time
	config   *Config

	group singleflight.Group

	mu        sync.RWMutex
	snapshot  *erp.Catalog
	expiresAt time.Time
}

func NewService(deps ServiceDependencies, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	cache := deps.Cache
	if !cfg.CacheEnabled {
		cache = nil
	}
	return &Service{
		upstream: deps.Upstream,
		cache:    cache,
		logger:   log,
		now:      now,
		config:   cfg,
	}
}

// Snapshot returns a fresh catalog, loading it from the ERP when neither
// the in-process copy nor the shared cache has one.
func (s *Service) Snapshot(ctx context.Context) (*erp.Catalog, error) {
	if catalog := s.memory(); catalog != nil {
		metrics.CatalogCacheLookups.WithLabelValues("memory").Inc()
		return catalog, nil
	}
	if catalog := s.fromCache(ctx); catalog != nil {
		return catalog, nil
	}

	// The shared load outlives any single caller; LoadTimeout bounds it.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(s.config.CacheKey, func() (interface{}, error) {
		if catalog := s.memory(); catalog != nil {
			return catalog, nil
		}
		return s.load(loadCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*erp.Catalog), nil
	case <-ctx.Done():
		return nil, errors.NewCatalogUnavailableError(resourceEvents, 0, ctx.Err())
	}
}

// Cached returns whatever snapshot is already available without calling
// the ERP. It returns nil when there is none.
func (s *Service) Cached(ctx context.Context) *erp.Catalog {
	if catalog := s.memory(); catalog != nil {
		return catalog
	}
	return s.fromCache(ctx)
}

// Invalidate drops the in-process copy and the shared one, so the next
// Snapshot reloads from the ERP.
func (s *Service) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.snapshot = nil
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, s.config.CacheKey)
}

func (s *Service) memory() *erp.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot != nil && s.now().Before(s.expiresAt) {
		return s.snapshot
	}
	return nil
}

func (s *Service) remember(catalog *erp.Catalog) {
	s.mu.Lock()
	s.snapshot = catalog
	s.expiresAt = catalog.LoadedAt.Add(s.config.CacheTTL)
	s.mu.Unlock()
}

func (s *Service) fromCache(ctx context.Context) *erp.Catalog {
	if s.cache == nil {
		return nil
	}

	var catalog erp.Catalog
	err := s.cache.GetJSON(ctx, s.config.CacheKey, &catalog)
	switch {
	case err == nil:
		metrics.CatalogCacheLookups.WithLabelValues("hit").Inc()
		if catalog.LoadedAt.IsZero() {
			catalog.LoadedAt = s.now()
		}
		s.remember(&catalog)
		return &catalog
	case stderrors.Is(err, database.ErrCacheMiss):
		metrics.CatalogCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CatalogCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("Catalog cache read failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return nil
}

func (s *Service) load(ctx context.Context) (*erp.Catalog, error) {
	if err := s.upstream.Configured(erp.OpListEvents, erp.OpListFormations); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("admissions-gateway/catalog").Start(ctx, "catalog.load")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.config.LoadTimeout)
	defer cancel()

	catalog := &erp.Catalog{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := s.upstream.ListEvents(gctx)
		if err := checkResponse(resourceEvents, resp, err); err != nil {
			return err
		}
		events, err := erp.ParseEvents(resp.Body)
		if err != nil {
			return errors.NewCatalogUnavailableError(resourceEvents, 0, err)
		}
		catalog.Events = events
		return nil
	})

	g.Go(func() error {
		resp, err := s.upstream.ListFormations(gctx)
		if err := checkResponse(resourceFormations, resp, err); err != nil {
			return err
		}
		formations, err := erp.ParseFormations(resp.Body)
		if err != nil {
			return errors.NewCatalogUnavailableError(resourceFormations, 0, err)
		}
		catalog.Formations = formations
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		s.logger.Error("Catalog load failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	catalog.LoadedAt = s.now()
	span.SetAttributes(
		attribute.Int("catalog.events", len(catalog.Events)),
		attribute.Int("catalog.formations", len(catalog.Formations)),
	)
	s.remember(catalog)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, s.config.CacheKey, catalog, s.config.CacheTTL); err != nil {
			s.logger.Warn("Catalog cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	s.logger.Info("Catalog loaded", map[string]interface{}{
		"events":     len(catalog.Events),
		"formations": len(catalog.Formations),
	})
	return catalog, nil
}

func checkResponse(resource string, resp *commonhttp.Response, err error) error {
	if err != nil {
		return errors.NewCatalogUnavailableError(resource, 0, err)
	}
	if !resp.IsSuccess() {
		return errors.NewCatalogUnavailableError(resource, resp.StatusCode, nil)
	}
	return nil
}

// Events returns the normalized events matching f.
func (s *Service) Events(ctx context.Context, f EventFilter) ([]Event, error) {
	catalog, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return FilterEvents(MapEvents(catalog.Events), f), nil
}

// Occurrences returns the sessions of the event with the given id. An
// occurrence id resolves to its parent series.
func (s *Service) Occurrences(ctx context.Context, id erp.ID) ([]Event, error) {
	catalog, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	src, ok := catalog.FindEvent(id)
	if !ok {
		return nil, errors.NewNotFoundError("event", id.String())
	}
	if !src.ParentID.IsZero() {
		if parent, ok := catalog.FindEvent(src.ParentID); ok {
			src = parent
		}
	}
	return Occurrences(MapEvents(catalog.Events), MapEvent(*src)), nil
}

// Formations returns the normalized formations, optionally only active ones.
func (s *Service) Formations(ctx context.Context, activeOnly bool) ([]Formation, error) {
	catalog, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Formation, 0, len(catalog.Formations))
	for _, f := range catalog.Formations {
		formation := MapFormation(f)
		if activeOnly && !formation.Active {
			continue
		}
		out = append(out, formation)
	}
	return out, nil
}
