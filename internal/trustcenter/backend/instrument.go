package backend

import (
	"context"
	"time"
)

// Observer records backend call outcomes.
type Observer interface {
	ObserveBackendRequest(backend string, duration time.Duration)
	IncrementBackendError(backend, category string)
}

type instrumented struct {
	Adapter
	observer Observer
}

// Instrument wraps a with latency and error accounting.
func Instrument(a Adapter, observer Observer) Adapter {
	if observer == nil {
		return a
	}
	return &instrumented{Adapter: a, observer: observer}
}

func (i *instrumented) FetchOrCreatePseudonyms(ctx context.Context, domain string, originals []string) (map[string]string, error) {
	start := time.Now()
	out, err := i.Adapter.FetchOrCreatePseudonyms(ctx, domain, originals)
	i.observer.ObserveBackendRequest(string(i.Type()), time.Since(start))
	if err != nil {
		i.observer.IncrementBackendError(string(i.Type()), string(GetCategory(err)))
	}
	return out, err
}
