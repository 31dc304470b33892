package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tfmcp/internal/cache"
)

// TTLs are the per-class cache lifetimes.
type TTLs struct {
	Provider time.Duration
	Module   time.Duration
	Docs     time.Duration
	Versions time.Duration
	Search   time.Duration
}

// DefaultTTLs returns the documented defaults.
func DefaultTTLs() TTLs {
	return TTLs{
		Provider: 10 * time.Minute,
		Module:   10 * time.Minute,
		Docs:     30 * time.Minute,
		Versions: 5 * time.Minute,
		Search:   5 * time.Minute,
	}
}

func (t TTLs) withDefaults() TTLs {
	d := DefaultTTLs()
	if t.Provider <= 0 {
		t.Provider = d.Provider
	}
	if t.Module <= 0 {
		t.Module = d.Module
	}
	if t.Docs <= 0 {
		t.Docs = d.Docs
	}
	if t.Versions <= 0 {
		t.Versions = d.Versions
	}
	if t.Search <= 0 {
		t.Search = d.Search
	}
	return t
}

// Caches groups the process-wide caches used by an Engine. Construct once and
// share; tests build isolated instances with a fake clock.
type Caches struct {
	Records  *cache.Cache[Record]
	Versions *cache.Cache[[]string]
	Docs     *cache.Cache[ProviderDocs]
	Search   *cache.Cache[[]Record]
}

// NewCaches creates empty caches sharing opts.
func NewCaches(opts ...cache.Option) *Caches {
	return &Caches{
		Records:  cache.New[Record](opts...),
		Versions: cache.New[[]string](opts...),
		Docs:     cache.New[ProviderDocs](opts...),
		Search:   cache.New[[]Record](opts...),
	}
}

// CacheStats reports every cache.
type CacheStats struct {
	Records  cache.Stats `json:"records"`
	Versions cache.Stats `json:"versions"`
	Docs     cache.Stats `json:"docs"`
	Search   cache.Stats `json:"search"`
}

// Stats snapshots all caches.
func (c *Caches) Stats() CacheStats {
	return CacheStats{
		Records:  c.Records.Stats(),
		Versions: c.Versions.Stats(),
		Docs:     c.Docs.Stats(),
		Search:   c.Search.Stats(),
	}
}

// Sweep drops expired entries from every cache.
func (c *Caches) Sweep() int {
	return c.Records.Sweep() + c.Versions.Sweep() + c.Docs.Sweep() + c.Search.Sweep()
}

// EngineOptions configures NewEngine.
type EngineOptions struct {
	Client     *Client
	Caches     *Caches
	Namespaces []string
	TTLs       TTLs
	Batch      BatchOptions
	Logger     *slog.Logger
}

// Engine answers provider and module queries: cache first, then namespace
// fallback against the registry, storing successes with the class TTL.
type Engine struct {
	client   *Client
	caches   *Caches
	fallback *Fallback
	ttls     TTLs
	batch    BatchOptions
	logger   *slog.Logger
}

// NewEngine creates an Engine. Nil Caches get a private set.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	caches := opts.Caches
	if caches == nil {
		caches = NewCaches()
	}
	return &Engine{
		client:   opts.Client,
		caches:   caches,
		fallback: NewFallback(opts.Namespaces, logger),
		ttls:     opts.TTLs.withDefaults(),
		batch:    opts.Batch,
		logger:   logger,
	}
}

// Namespaces returns the fallback order.
func (e *Engine) Namespaces() []string { return e.fallback.Namespaces() }

// CacheStats snapshots the engine's caches.
func (e *Engine) CacheStats() CacheStats { return e.caches.Stats() }

// ResolveProvider resolves a provider query.
func (e *Engine) ResolveProvider(ctx context.Context, q Query) (Record, error) {
	q.Kind = KindProvider
	return e.Resolve(ctx, q)
}

// ResolveModule resolves a module query.
func (e *Engine) ResolveModule(ctx context.Context, q Query) (Record, error) {
	q.Kind = KindModule
	return e.Resolve(ctx, q)
}

// Resolve dispatches on q.Kind.
func (e *Engine) Resolve(ctx context.Context, q Query) (Record, error) {
	rec, _, err := e.resolve(ctx, q)
	return rec, err
}

// ResolveCached is Resolve that also reports whether the record was served
// from cache.
func (e *Engine) ResolveCached(ctx context.Context, q Query) (Record, bool, error) {
	return e.resolve(ctx, q)
}

// ResolveBatch resolves queries concurrently. Cache hits are answered before
// any permit is taken. Zero-valued opts fields fall back to the engine's
// batch defaults.
func (e *Engine) ResolveBatch(ctx context.Context, queries []Query, opts BatchOptions) []Result[Record] {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = e.batch.MaxConcurrency
	}
	if opts.Deadline <= 0 {
		opts.Deadline = e.batch.Deadline
	}

	ctx, span := tracer.Start(ctx, "registry.batch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(queries)))

	probe := func(i int) (Record, bool) {
		if queries[i].Validate() != nil {
			return Record{}, false
		}
		return e.caches.Records.Peek(recordKey(queries[i]))
	}
	fetch := func(ctx context.Context, i int) (Record, error) {
		rec, _, err := e.resolve(ctx, queries[i])
		return rec, err
	}
	results := FetchAll(ctx, opts, len(queries), probe, fetch)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("batch.failed", failed))
	e.logger.Info("registry batch resolved", "queries", len(queries), "failed", failed)
	return results
}

func recordKey(q Query) string {
	return cache.Key(string(q.Kind), q.Address(), q.Version)
}

func (e *Engine) ttlFor(k Kind) time.Duration {
	if k == KindModule {
		return e.ttls.Module
	}
	return e.ttls.Provider
}

func (e *Engine) resolve(ctx context.Context, q Query) (Record, bool, error) {
	if err := q.Validate(); err != nil {
		return Record{}, false, err
	}
	if err := ValidateConstraint(q.Version); err != nil {
		return Record{}, false, err
	}

	ctx, span := tracer.Start(ctx, "registry.resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("registry.kind", string(q.Kind)),
		attribute.String("registry.address", q.Address()),
	)

	rec, hit, err := e.caches.Records.GetOrFetch(ctx, recordKey(q), e.ttlFor(q.Kind), func(ctx context.Context) (Record, error) {
		rec, attempted, err := e.fallback.Resolve(ctx, q, e.lookup)
		span.SetAttributes(attribute.StringSlice("registry.attempted", attempted))
		if err != nil {
			e.logger.Debug("registry resolve failed", "query", q.String(), "attempted", strings.Join(attempted, ","), "error", err)
			return Record{}, err
		}
		rec.Constraint = q.Version
		rec.Attempted = attempted
		return rec, nil
	})
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if err != nil {
		if KindOf(err) == "" && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			err = timeoutError(q.String(), err)
		}
		span.SetStatus(codes.Error, err.Error())
		return Record{}, false, err
	}
	return rec, hit, nil
}

// lookup resolves q within q.Namespace.
func (e *Engine) lookup(ctx context.Context, q Query) (Record, error) {
	var version string
	if q.Version != "" {
		available, err := e.versions(ctx, q)
		if err != nil {
			return Record{}, err
		}
		v, ok, err := SelectVersion(available, q.Version)
		if err != nil {
			return Record{}, err
		}
		if !ok {
			return Record{}, &Error{Kind: ErrNotFound, Subject: q.String(), Err: fmt.Errorf("no version satisfies %q", q.Version)}
		}
		version = v
	}

	if q.Kind == KindModule {
		return e.client.Module(ctx, q.Namespace, q.Name, q.Provider, version)
	}
	rec, docs, err := e.client.Provider(ctx, q.Namespace, q.Name, version)
	if err != nil {
		return Record{}, err
	}
	e.caches.Docs.Set(docsKey(rec), ProviderDocs{Provider: rec, Docs: docs}, e.ttls.Docs)
	return rec, nil
}

func versionsKey(q Query) string {
	return cache.Key("versions", string(q.Kind), q.Address())
}

func docsKey(rec Record) string {
	return cache.Key("docs", rec.Namespace, rec.Name, rec.Version)
}

// versions returns the published versions for a namespaced query, cached
// with the version-list TTL.
func (e *Engine) versions(ctx context.Context, q Query) ([]string, error) {
	vs, _, err := e.caches.Versions.GetOrFetch(ctx, versionsKey(q), e.ttls.Versions, func(ctx context.Context) ([]string, error) {
		if q.Kind == KindModule {
			return e.client.ModuleVersions(ctx, q.Namespace, q.Name, q.Provider)
		}
		return e.client.ProviderVersions(ctx, q.Namespace, q.Name)
	})
	return vs, err
}

// Versions lists published versions newest first, walking the namespace
// fallback when q has no namespace.
func (e *Engine) Versions(ctx context.Context, q Query) ([]string, string, error) {
	if err := q.Validate(); err != nil {
		return nil, "", err
	}
	rec, _, err := e.fallback.Resolve(ctx, q, func(ctx context.Context, nq Query) (Record, error) {
		vs, err := e.versions(ctx, nq)
		if err != nil {
			return Record{}, err
		}
		if len(vs) == 0 {
			return Record{}, &Error{Kind: ErrNotFound, Subject: nq.String()}
		}
		return Record{Namespace: nq.Namespace, Versions: vs}, nil
	})
	if err != nil {
		return nil, "", err
	}
	return SortVersions(rec.Versions), rec.Namespace, nil
}

// ProviderDocs returns the documentation index for the provider version q
// resolves to.
func (e *Engine) ProviderDocs(ctx context.Context, q Query) (ProviderDocs, error) {
	rec, err := e.ResolveProvider(ctx, q)
	if err != nil {
		return ProviderDocs{}, err
	}
	docs, _, err := e.caches.Docs.GetOrFetch(ctx, docsKey(rec), e.ttls.Docs, func(ctx context.Context) (ProviderDocs, error) {
		prec, entries, err := e.client.Provider(ctx, rec.Namespace, rec.Name, rec.Version)
		if err != nil {
			return ProviderDocs{}, err
		}
		return ProviderDocs{Provider: prec, Docs: entries}, nil
	})
	return docs, err
}

// SearchProviders runs a cached provider search.
func (e *Engine) SearchProviders(ctx context.Context, term string, limit int) ([]Record, error) {
	return e.search(ctx, KindProvider, term, limit)
}

// SearchModules runs a cached module search.
func (e *Engine) SearchModules(ctx context.Context, term string, limit int) ([]Record, error) {
	return e.search(ctx, KindModule, term, limit)
}

func (e *Engine) search(ctx context.Context, kind Kind, term string, limit int) ([]Record, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("search term is required")
	}
	key := cache.Key("search", string(kind), term, fmt.Sprint(limit))
	recs, _, err := e.caches.Search.GetOrFetch(ctx, key, e.ttls.Search, func(ctx context.Context) ([]Record, error) {
		if kind == KindModule {
			return e.client.SearchModules(ctx, term, limit)
		}
		return e.client.SearchProviders(ctx, term, limit)
	})
	return recs, err
}
