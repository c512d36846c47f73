package backend

import (
	"context"
	"fmt"
	"net/http"

	platformstrings "fts/pkg/platform/strings"
)

// GPAS talks to a gPAS FHIR gateway, which pseudonymizes a whole batch in one
// $pseudonymizeAllowCreate call.
type GPAS struct {
	client *fhirClient
}

// NewGPAS creates a gPAS adapter for baseURL.
func NewGPAS(baseURL string, client *http.Client) (*GPAS, error) {
	c, err := newFHIRClient(TypeGPAS, baseURL, client, false)
	if err != nil {
		return nil, err
	}
	return &GPAS{client: c}, nil
}

func (g *GPAS) Type() Type { return TypeGPAS }

// FetchOrCreatePseudonyms sends all originals in a single request.
func (g *GPAS) FetchOrCreatePseudonyms(ctx context.Context, domain string, originals []string) (map[string]string, error) {
	originals = platformstrings.Dedupe(originals)
	if len(originals) == 0 {
		return map[string]string{}, nil
	}

	params := make([]parameter, 0, len(originals)+1)
	params = append(params, parameter{Name: "target", ValueString: domain})
	for _, o := range originals {
		params = append(params, parameter{Name: "original", ValueString: o})
	}

	var resp parameters
	if err := g.client.post(ctx, "$pseudonymizeAllowCreate", newParameters(params...), &resp); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(originals))
	for _, p := range resp.Parameter {
		original, ok1 := find(p.Part, "original")
		pseudonym, ok2 := find(p.Part, "pseudonym")
		if !ok1 || !ok2 || original.ValueIdentifier == nil || pseudonym.ValueIdentifier == nil {
			continue
		}
		out[original.ValueIdentifier.Value] = pseudonym.ValueIdentifier.Value
	}
	for _, o := range originals {
		if out[o] == "" {
			return nil, NewAdapterError(ErrorBadData, TypeGPAS, fmt.Sprintf("response lacks a pseudonym for %d of %d originals", missing(out, originals), len(originals)), nil)
		}
	}
	return out, nil
}

func missing(got map[string]string, originals []string) int {
	n := 0
	for _, o := range originals {
		if got[o] == "" {
			n++
		}
	}
	return n
}
