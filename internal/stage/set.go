package stage

import (
	"context"
	"sort"
)

// Set maps pipeline positions to their implementations.
type Set map[Name]Stage

// Lookup returns the stage registered for name.
func (s Set) Lookup(name Name) (Stage, bool) {
	stg, ok := s[name]
	return stg, ok && stg != nil
}

// Missing lists the names in plan that have no implementation.
func (s Set) Missing(plan []Name) []Name {
	var out []Name
	for _, name := range plan {
		if _, ok := s.Lookup(name); !ok {
			out = append(out, name)
		}
	}
	return out
}

// Health collects every stage's health in pipeline order.
func (s Set) Health(ctx context.Context) []Health {
	names := make([]Name, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Rank() < names[j].Rank() })
	out := make([]Health, 0, len(names))
	for _, name := range names {
		if stg, ok := s.Lookup(name); ok {
			out = append(out, stg.HealthCheck(ctx))
		} else {
			out = append(out, Unhealthy(name, "stage not configured"))
		}
	}
	return out
}
