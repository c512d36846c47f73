package backend

import (
	"context"
	"net/http"

	platformstrings "fts/pkg/platform/strings"
)

// VFPS talks to a Vfps FHIR endpoint. Vfps has no batch operation, so batches
// fan out to one $create-pseudonym call per original, bounded by concurrency.
type VFPS struct {
	client      *fhirClient
	concurrency int
}

// NewVFPS creates a Vfps adapter for baseURL.
func NewVFPS(baseURL string, client *http.Client, concurrency int) (*VFPS, error) {
	c, err := newFHIRClient(TypeVFPS, baseURL, client, true)
	if err != nil {
		return nil, err
	}
	return &VFPS{client: c, concurrency: max(concurrency, 1)}, nil
}

func (v *VFPS) Type() Type { return TypeVFPS }

// FetchOrCreatePseudonyms resolves every original in namespace domain.
func (v *VFPS) FetchOrCreatePseudonyms(ctx context.Context, domain string, originals []string) (map[string]string, error) {
	originals = platformstrings.Dedupe(originals)
	if len(originals) == 0 {
		return map[string]string{}, nil
	}
	return fanOut(ctx, originals, v.concurrency, func(ctx context.Context, original string) (string, error) {
		return v.createPseudonym(ctx, domain, original)
	})
}

func (v *VFPS) createPseudonym(ctx context.Context, namespace, original string) (string, error) {
	req := newParameters(
		parameter{Name: "namespace", ValueString: namespace},
		parameter{Name: "originalValue", ValueString: original},
	)
	var resp parameters
	if err := v.client.post(ctx, "$create-pseudonym", req, &resp); err != nil {
		return "", err
	}
	p, ok := find(resp.Parameter, "pseudonymValue")
	if !ok || p.ValueString == "" {
		return "", NewAdapterError(ErrorBadData, TypeVFPS, "no pseudonymValue in response", nil)
	}
	return p.ValueString, nil
}
