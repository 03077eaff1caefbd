package storage

import (
	"context"
	"strings"
)

// Router dispatches identifiers to one of several Adapters by prefix,
// letting a single deployment serve some identifiers from local disk and
// others from S3 (e.g. migrating a collection between backends).
// Identifiers with no matching prefix fall through to Default.
type Router struct {
	routes  map[string]Adapter // prefix -> adapter
	Default Adapter
}

// NewRouter creates a Router that falls back to def when no prefix matches.
func NewRouter(def Adapter) *Router {
	return &Router{routes: make(map[string]Adapter), Default: def}
}

// Mount registers adapter to serve any identifier beginning with prefix.
func (r *Router) Mount(prefix string, adapter Adapter) {
	r.routes[prefix] = adapter
}

func (r *Router) resolve(identifier string) Adapter {
	for prefix, adapter := range r.routes {
		if strings.HasPrefix(identifier, prefix) {
			return adapter
		}
	}
	return r.Default
}

func (r *Router) Open(ctx context.Context, identifier string) (*Object, error) {
	return r.resolve(identifier).Open(ctx, identifier)
}

func (r *Router) Stat(ctx context.Context, identifier string) (*Object, error) {
	return r.resolve(identifier).Stat(ctx, identifier)
}
