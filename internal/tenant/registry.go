// Package tenant holds the static tenant registry and resolves a caller's
// tenant and role from the directory and weaker request hints.
package tenant

import (
	"sort"
	"strings"
)

// Registration maps a canonical tenant key to its store locations
type Registration struct {
	Key                string
	ComplaintsLocation string
	CategoriesLocation string
}

// Registry is process-wide, read-only configuration. It is safe for
// concurrent reads without locking once built.
type Registry struct {
	byKey map[string]Registration
}

// NewRegistry builds a registry from registrations. Later duplicates win.
func NewRegistry(regs []Registration) *Registry {
	r := &Registry{byKey: make(map[string]Registration, len(regs))}
	for _, reg := range regs {
		r.byKey[reg.Key] = reg
	}
	return r
}

// Normalize trims the raw name and maps it onto a canonical key: exact match
// first, then case-insensitive match. When neither matches the trimmed raw
// value is returned unchanged so the later lookup fails loudly.
func (r *Registry) Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if _, ok := r.byKey[trimmed]; ok {
		return trimmed
	}
	// iterate in sorted order so ambiguous casings resolve deterministically
	for _, key := range r.Keys() {
		if strings.EqualFold(key, trimmed) {
			return key
		}
	}
	return trimmed
}

// Lookup returns the registration for a canonical key
func (r *Registry) Lookup(key string) (Registration, bool) {
	reg, ok := r.byKey[key]
	return reg, ok
}

// Keys returns the canonical keys in sorted order
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Registrations returns every registration sorted by key
func (r *Registry) Registrations() []Registration {
	out := make([]Registration, 0, len(r.byKey))
	for _, k := range r.Keys() {
		out = append(out, r.byKey[k])
	}
	return out
}
