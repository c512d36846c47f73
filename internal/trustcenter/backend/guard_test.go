package backend

import (
	"context"
	"errors"
	"time"

	"fts/internal/platform/logger"
	"fts/pkg/platform/circuit"
)

type scriptedAdapter struct {
	calls int
	errs  []error
}

func (a *scriptedAdapter) Type() Type { return TypeGPAS }

func (a *scriptedAdapter) FetchOrCreatePseudonyms(_ context.Context, _ string, originals []string) (map[string]string, error) {
	var err error
	if a.calls < len(a.errs) {
		err = a.errs[a.calls]
	}
	a.calls++
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(originals))
	for _, o := range originals {
		out[o] = "psn-" + o
	}
	return out, nil
}

// =============================================================================
// Circuit breaker guard
// =============================================================================

func (s *BackendSuite) TestGuardOpensOnOutages() {
	outage := NewAdapterError(ErrorOutage, TypeGPAS, "down", nil)
	inner := &scriptedAdapter{errs: []error{outage, outage}}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	breaker := circuit.New("gpas", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }))
	a := Guard(inner, breaker, logger.Discard())

	for range 2 {
		_, err := a.FetchOrCreatePseudonyms(context.Background(), "d", []string{"x"})
		s.Require().ErrorIs(err, outage)
	}
	s.True(breaker.IsOpen())

	_, err := a.FetchOrCreatePseudonyms(context.Background(), "d", []string{"x"})
	s.Equal(ErrorOutage, GetCategory(err))
	s.Equal(2, inner.calls, "open circuit must not reach the backend")

	now = now.Add(time.Minute)
	out, err := a.FetchOrCreatePseudonyms(context.Background(), "d", []string{"x"})
	s.Require().NoError(err)
	s.Equal("psn-x", out["x"])
	s.Equal(circuit.StateClosed, breaker.State())
}

func (s *BackendSuite) TestGuardIgnoresClientErrors() {
	unknown := NewAdapterError(ErrorUnknownDomain, TypeGPAS, "Unknown domain d", nil)
	inner := &scriptedAdapter{errs: []error{unknown, unknown, unknown}}
	breaker := circuit.New("gpas", circuit.WithFailureThreshold(1))
	a := Guard(inner, breaker, logger.Discard())

	for range 3 {
		_, err := a.FetchOrCreatePseudonyms(context.Background(), "d", []string{"x"})
		s.Require().True(errors.Is(err, unknown))
	}
	s.False(breaker.IsOpen())
	s.Equal(3, inner.calls)
}

func (s *BackendSuite) TestGuardWithoutBreaker() {
	inner := &scriptedAdapter{}
	s.Same(Adapter(inner), Guard(inner, nil, nil))
}
