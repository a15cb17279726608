// Package testsupport provides in-memory fakes for tests: a LookupService
// backed by a plain map, and a registry that serves them, so package tests
// elsewhere never need a real database/cache/REST backend.
package testsupport

import (
	"context"
	"fmt"

	"github.com/apex/engine/enrich"
)

// MapLookupService implements enrich.LookupService over a fixed table
// keyed by fmt.Sprintf("%v", key).
type MapLookupService struct {
	Table map[string]map[string]any
	Err   error
}

func NewMapLookupService(table map[string]map[string]any) *MapLookupService {
	return &MapLookupService{Table: table}
}

func (s *MapLookupService) Lookup(ctx context.Context, key any) (map[string]any, bool, error) {
	if s.Err != nil {
		return nil, false, s.Err
	}
	row, ok := s.Table[fmt.Sprintf("%v", key)]
	return row, ok, nil
}

var _ enrich.LookupService = (*MapLookupService)(nil)

// Registry implements enrich.Registry over a plain map, for tests wiring a
// Processor without a full registry.Registry/registry.Loader.
type Registry struct {
	Services map[string]enrich.LookupService
}

func NewRegistry() *Registry { return &Registry{Services: map[string]enrich.LookupService{}} }

func (r *Registry) LookupService(name string) (enrich.LookupService, bool) {
	svc, ok := r.Services[name]
	return svc, ok
}

var _ enrich.Registry = (*Registry)(nil)
