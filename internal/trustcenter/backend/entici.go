package backend

import (
	"context"
	"net/http"

	platformstrings "fts/pkg/platform/strings"
)

// Entici talks to an entici FHIR endpoint. Like Vfps it only pseudonymizes one
// identifier per $pseudonymize call; the domain becomes the identifier system.
type Entici struct {
	client       *fhirClient
	concurrency  int
	resourceType string
	project      string
}

// NewEntici creates an entici adapter for baseURL. resourceType defaults to Patient.
func NewEntici(baseURL string, client *http.Client, concurrency int, resourceType, project string) (*Entici, error) {
	c, err := newFHIRClient(TypeEntici, baseURL, client, true)
	if err != nil {
		return nil, err
	}
	if resourceType == "" {
		resourceType = "Patient"
	}
	return &Entici{
		client:       c,
		concurrency:  max(concurrency, 1),
		resourceType: resourceType,
		project:      project,
	}, nil
}

func (e *Entici) Type() Type { return TypeEntici }

// FetchOrCreatePseudonyms resolves every original under identifier system domain.
func (e *Entici) FetchOrCreatePseudonyms(ctx context.Context, domain string, originals []string) (map[string]string, error) {
	originals = platformstrings.Dedupe(originals)
	if len(originals) == 0 {
		return map[string]string{}, nil
	}
	return fanOut(ctx, originals, e.concurrency, func(ctx context.Context, original string) (string, error) {
		return e.pseudonymize(ctx, domain, original)
	})
}

func (e *Entici) pseudonymize(ctx context.Context, domain, original string) (string, error) {
	params := []parameter{
		{Name: "identifier", ValueIdentifier: &valueIdentifier{System: domain, Value: original}},
		{Name: "resourceType", ValueString: e.resourceType},
	}
	if e.project != "" {
		params = append(params, parameter{Name: "project", ValueString: e.project})
	}
	var resp parameters
	if err := e.client.post(ctx, "$pseudonymize", newParameters(params...), &resp); err != nil {
		return "", err
	}
	p, ok := find(resp.Parameter, "pseudonym")
	if !ok || p.ValueIdentifier == nil || p.ValueIdentifier.Value == "" {
		return "", NewAdapterError(ErrorBadData, TypeEntici, "no pseudonym in response", nil)
	}
	return p.ValueIdentifier.Value, nil
}
