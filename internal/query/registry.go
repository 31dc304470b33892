package query

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"tfmcp/internal/errors"
	"tfmcp/internal/registry"
)

// MaxBatchSize bounds the number of queries in one batch request.
const MaxBatchSize = 100

// ResolveResult is a single resolved record.
type ResolveResult struct {
	Record     registry.Record `json:"record"`
	Provenance Provenance      `json:"provenance"`
}

// ResolveProvider resolves a provider, walking the namespace fallback when
// q has no namespace.
func (e *Engine) ResolveProvider(ctx context.Context, q registry.Query) (*ResolveResult, error) {
	q.Kind = registry.KindProvider
	return e.resolve(ctx, q)
}

// ResolveModule resolves a module.
func (e *Engine) ResolveModule(ctx context.Context, q registry.Query) (*ResolveResult, error) {
	q.Kind = registry.KindModule
	return e.resolve(ctx, q)
}

func (e *Engine) resolve(ctx context.Context, q registry.Query) (*ResolveResult, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	start := time.Now()
	rec, hit, err := e.registry.ResolveCached(ctx, q)
	if err != nil {
		return nil, errors.FromError(err)
	}
	prov := Provenance{Cached: hit, DurationMs: elapsedMs(start)}
	if q.Namespace == "" {
		prov.Namespaces = rec.Attempted
	}
	return &ResolveResult{Record: rec, Provenance: prov}, nil
}

func validateQuery(q registry.Query) error {
	if err := q.Validate(); err != nil {
		return errors.New(errors.InvalidParameter, "invalid query", err)
	}
	if err := registry.ValidateConstraint(q.Version); err != nil {
		return errors.New(errors.InvalidParameter, "invalid query", err)
	}
	return nil
}

// BatchOptions override the configured batch limits for one call.
type BatchOptions struct {
	MaxConcurrency int
	Deadline       time.Duration
}

// BatchEntry is the outcome of one query in a batch. Exactly one of Record
// and Error is set.
type BatchEntry struct {
	Query  registry.Query    `json:"query"`
	Record *registry.Record  `json:"record,omitempty"`
	Error  *errors.ToolError `json:"error,omitempty"`
	Cached bool              `json:"cached,omitempty"`
}

// BatchResult holds batch entries in input order.
type BatchResult struct {
	Entries    []BatchEntry `json:"entries"`
	Resolved   int          `json:"resolved"`
	Failed     int          `json:"failed"`
	Cached     int          `json:"cached"`
	Provenance Provenance   `json:"provenance"`
}

// ResolveBatch resolves queries concurrently. Invalid entries fail on their
// own without touching the network; other entries are unaffected.
func (e *Engine) ResolveBatch(ctx context.Context, queries []registry.Query, opts BatchOptions) (*BatchResult, error) {
	if len(queries) == 0 {
		return nil, errors.New(errors.InvalidParameter, "at least one query is required", nil)
	}
	if len(queries) > MaxBatchSize {
		return nil, errors.New(errors.InvalidParameter, fmt.Sprintf("batch of %d queries exceeds the limit of %d", len(queries), MaxBatchSize), nil)
	}

	start := time.Now()
	results := e.registry.ResolveBatch(ctx, queries, registry.BatchOptions{
		MaxConcurrency: opts.MaxConcurrency,
		Deadline:       opts.Deadline,
	})

	out := &BatchResult{Entries: make([]BatchEntry, len(results))}
	tried := map[string]bool{}
	for i, r := range results {
		entry := BatchEntry{Query: queries[i], Cached: r.Cached}
		for _, ns := range attemptedBy(r) {
			tried[ns] = true
		}
		if r.Err != nil {
			entry.Error = batchError(queries[i], r.Err)
			out.Failed++
		} else {
			rec := r.Value
			entry.Record = &rec
			out.Resolved++
			if r.Cached {
				out.Cached++
			}
		}
		out.Entries[i] = entry
	}
	out.Provenance = Provenance{
		Cached:     out.Cached == len(queries),
		Namespaces: e.orderNamespaces(tried),
		DurationMs: elapsedMs(start),
	}
	if out.Failed > 0 {
		out.Provenance.Warnings = append(out.Provenance.Warnings,
			fmt.Sprintf("%d of %d queries failed", out.Failed, len(queries)))
	}
	return out, nil
}

// attemptedBy returns the namespaces one batch entry tried.
func attemptedBy(r registry.Result[registry.Record]) []string {
	if r.Err == nil {
		return r.Value.Attempted
	}
	var rerr *registry.Error
	if stderrors.As(r.Err, &rerr) {
		return rerr.Attempted
	}
	return nil
}

// orderNamespaces lists the tried namespaces in fallback order, followed by
// explicitly requested ones sorted by name.
func (e *Engine) orderNamespaces(tried map[string]bool) []string {
	var out []string
	for _, ns := range e.registry.Namespaces() {
		if tried[ns] {
			out = append(out, ns)
			delete(tried, ns)
		}
	}
	rest := make([]string, 0, len(tried))
	for ns := range tried {
		rest = append(rest, ns)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func batchError(q registry.Query, err error) *errors.ToolError {
	if registry.KindOf(err) == "" {
		if verr := validateQuery(q); verr != nil {
			return errors.FromError(verr)
		}
	}
	return errors.FromError(err)
}

// VersionsResult lists published versions newest first.
type VersionsResult struct {
	Query     registry.Query `json:"query"`
	Namespace string         `json:"namespace"`
	Versions  []string       `json:"versions"`
	// Selected is the newest version matching the query's constraint.
	Selected string `json:"selected,omitempty"`
}

// Versions lists the published versions of a provider or module.
func (e *Engine) Versions(ctx context.Context, q registry.Query) (*VersionsResult, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	vs, ns, err := e.registry.Versions(ctx, q)
	if err != nil {
		return nil, errors.FromError(err)
	}
	out := &VersionsResult{Query: q, Namespace: ns, Versions: vs}
	if q.Version != "" {
		if v, ok, err := registry.SelectVersion(vs, q.Version); err == nil && ok {
			out.Selected = v
		}
	}
	return out, nil
}

// DocsResult is a provider's documentation index, optionally filtered.
type DocsResult struct {
	Provider registry.Record     `json:"provider"`
	Category string              `json:"category,omitempty"`
	Term     string              `json:"term,omitempty"`
	Total    int                 `json:"total"`
	Docs     []registry.DocEntry `json:"docs"`
}

// ProviderDocs returns documentation entries for the provider version q
// resolves to, filtered by category and search term.
func (e *Engine) ProviderDocs(ctx context.Context, q registry.Query, category, term string) (*DocsResult, error) {
	q.Kind = registry.KindProvider
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	docs, err := e.registry.ProviderDocs(ctx, q)
	if err != nil {
		return nil, errors.FromError(err)
	}
	entries := docs.Filter(category, term)
	if entries == nil {
		entries = []registry.DocEntry{}
	}
	return &DocsResult{
		Provider: docs.Provider,
		Category: category,
		Term:     term,
		Total:    len(docs.Docs),
		Docs:     entries,
	}, nil
}

// SearchResult is a registry search answer.
type SearchResult struct {
	Kind    registry.Kind     `json:"kind"`
	Term    string            `json:"term"`
	Records []registry.Record `json:"records"`
}

// SearchProviders searches the registry for providers.
func (e *Engine) SearchProviders(ctx context.Context, term string, limit int) (*SearchResult, error) {
	return e.search(ctx, registry.KindProvider, term, limit)
}

// SearchModules searches the registry for modules.
func (e *Engine) SearchModules(ctx context.Context, term string, limit int) (*SearchResult, error) {
	return e.search(ctx, registry.KindModule, term, limit)
}

func (e *Engine) search(ctx context.Context, kind registry.Kind, term string, limit int) (*SearchResult, error) {
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	var (
		recs []registry.Record
		err  error
	)
	if kind == registry.KindModule {
		recs, err = e.registry.SearchModules(ctx, term, limit)
	} else {
		recs, err = e.registry.SearchProviders(ctx, term, limit)
	}
	if err != nil {
		if registry.KindOf(err) == "" && ctx.Err() == nil {
			return nil, errors.New(errors.InvalidParameter, "invalid search", err)
		}
		return nil, errors.FromError(err)
	}
	if recs == nil {
		recs = []registry.Record{}
	}
	return &SearchResult{Kind: kind, Term: term, Records: recs}, nil
}
