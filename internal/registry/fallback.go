package registry

import (
	"context"
	"log/slog"
)

// DefaultNamespaces is the fallback order used when a query has no namespace.
var DefaultNamespaces = []string{"hashicorp", "terraform-providers", "community"}

// LookupFunc resolves q within a single namespace.
type LookupFunc func(ctx context.Context, q Query) (Record, error)

// Fallback walks an ordered namespace list for queries without a namespace.
type Fallback struct {
	namespaces []string
	logger     *slog.Logger
}

// NewFallback creates a resolver over namespaces; an empty list selects
// DefaultNamespaces.
func NewFallback(namespaces []string, logger *slog.Logger) *Fallback {
	if len(namespaces) == 0 {
		namespaces = DefaultNamespaces
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ns := make([]string, len(namespaces))
	copy(ns, namespaces)
	return &Fallback{namespaces: ns, logger: logger}
}

// Namespaces returns the configured order.
func (f *Fallback) Namespaces() []string {
	out := make([]string, len(f.namespaces))
	copy(out, f.namespaces)
	return out
}

// Resolve runs lookup against q.Namespace when set, otherwise against each
// candidate namespace in order. A not-found result advances to the next
// candidate; any other failure stops the walk and is returned as is. The
// namespaces actually attempted are returned in order.
func (f *Fallback) Resolve(ctx context.Context, q Query, lookup LookupFunc) (Record, []string, error) {
	candidates := f.namespaces
	if q.Namespace != "" {
		candidates = []string{q.Namespace}
	}

	attempted := make([]string, 0, len(candidates))
	for _, ns := range candidates {
		if err := ctx.Err(); err != nil {
			return Record{}, attempted, timeoutError(q.String(), err)
		}
		attempted = append(attempted, ns)

		rec, err := lookup(ctx, q.WithNamespace(ns))
		if err == nil {
			return rec, attempted, nil
		}
		if !IsNotFound(err) {
			return Record{}, attempted, err
		}
		f.logger.Debug("namespace miss", "query", q.String(), "namespace", ns)
	}

	return Record{}, attempted, &Error{
		Kind:      ErrNotFoundAfterFallback,
		Subject:   q.String(),
		Attempted: attempted,
	}
}
