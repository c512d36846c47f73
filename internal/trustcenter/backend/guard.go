package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fts/pkg/platform/circuit"
)

type guarded struct {
	Adapter
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// Guard wraps a with a circuit breaker. Only timeouts and outages count as
// failures; an answer the backend gave, even a refusal, proves it is up.
// While the breaker is open calls fail fast as outages.
func Guard(a Adapter, breaker *circuit.Breaker, logger *slog.Logger) Adapter {
	if breaker == nil {
		return a
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &guarded{Adapter: a, breaker: breaker, logger: logger}
}

func (g *guarded) FetchOrCreatePseudonyms(ctx context.Context, domain string, originals []string) (map[string]string, error) {
	if !g.breaker.Allow() {
		return nil, NewAdapterError(ErrorOutage, g.Type(), fmt.Sprintf("%s circuit open", g.Type()), nil)
	}

	out, err := g.Adapter.FetchOrCreatePseudonyms(ctx, domain, originals)
	if err != nil && countsAsFailure(err) {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "backend circuit opened", "backend", g.Type(), "error", err)
		}
		return out, err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "backend circuit closed", "backend", g.Type())
	}
	return out, err
}

func countsAsFailure(err error) bool {
	switch GetCategory(err) {
	case ErrorTimeout, ErrorOutage:
		return true
	default:
		return false
	}
}
