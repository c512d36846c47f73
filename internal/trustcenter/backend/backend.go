// Package backend adapts the interchangeable pseudonym services (gPAS, Vfps,
// entici) to one fetch-or-create contract.
package backend

//go:generate mockgen -source=backend.go -destination=mocks/mocks.go -package=mocks Adapter

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Type names a backend implementation.
type Type string

const (
	TypeGPAS   Type = "gpas"
	TypeVFPS   Type = "vfps"
	TypeEntici Type = "entici"
)

// Adapter fetches or creates durable pseudonyms for originals in a domain.
//
// Implementations return a map containing every original. Empty input
// returns an empty map without any network call. Failures are *AdapterError
// values; callers translate them with ToDomainError and never retry.
type Adapter interface {
	FetchOrCreatePseudonyms(ctx context.Context, domain string, originals []string) (map[string]string, error)
	Type() Type
}

// Config selects and configures one backend.
type Config struct {
	Type        Type
	BaseURL     string
	Timeout     time.Duration
	Concurrency int

	// entici only
	EnticiResourceType string
	EnticiProject      string
}

// Factory builds an adapter from config.
type Factory func(cfg Config, client *http.Client) (Adapter, error)

// Registry maps backend types to factories.
type Registry struct {
	factories map[Type]Factory
}

// NewRegistry returns a registry with the built-in backends registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[Type]Factory)}
	r.Register(TypeGPAS, func(cfg Config, client *http.Client) (Adapter, error) {
		return NewGPAS(cfg.BaseURL, client)
	})
	r.Register(TypeVFPS, func(cfg Config, client *http.Client) (Adapter, error) {
		return NewVFPS(cfg.BaseURL, client, cfg.Concurrency)
	})
	r.Register(TypeEntici, func(cfg Config, client *http.Client) (Adapter, error) {
		return NewEntici(cfg.BaseURL, client, cfg.Concurrency, cfg.EnticiResourceType, cfg.EnticiProject)
	})
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(t Type, f Factory) {
	r.factories[t] = f
}

// Types returns the registered backend types, sorted.
func (r *Registry) Types() []Type {
	out := make([]Type, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Build constructs the adapter cfg selects. The HTTP client enforces cfg.Timeout
// per request.
func (r *Registry) Build(cfg Config) (Adapter, error) {
	f, ok := r.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown backend type %q", cfg.Type)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend %s: base url is required", cfg.Type)
	}
	return f(cfg, &http.Client{Timeout: cfg.Timeout})
}
