package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const mediaTypeFHIRJSON = "application/fhir+json"

// maxResponseBytes bounds backend response bodies.
const maxResponseBytes = 4 << 20

// parameters is the FHIR Parameters resource as sent to and returned by the backends.
type parameters struct {
	ResourceType string      `json:"resourceType"`
	Parameter    []parameter `json:"parameter"`
}

type parameter struct {
	Name            string           `json:"name"`
	ValueString     string           `json:"valueString,omitempty"`
	ValueIdentifier *valueIdentifier `json:"valueIdentifier,omitempty"`
	Part            []parameter      `json:"part,omitempty"`
}

type valueIdentifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value"`
}

func newParameters(params ...parameter) parameters {
	return parameters{ResourceType: "Parameters", Parameter: params}
}

// find returns the first parameter named name.
func find(params []parameter, name string) (parameter, bool) {
	for _, p := range params {
		if p.Name == name {
			return p, true
		}
	}
	return parameter{}, false
}

type operationOutcome struct {
	Issue []struct {
		Diagnostics string `json:"diagnostics"`
	} `json:"issue"`
}

func (o operationOutcome) diagnostics() string {
	if len(o.Issue) == 0 {
		return ""
	}
	return o.Issue[0].Diagnostics
}

// fhirClient posts FHIR operations to one backend base URL.
type fhirClient struct {
	backend Type
	baseURL string
	http    *http.Client
	// notFoundIsUnknownDomain maps 404 answers to ErrorUnknownDomain, as the
	// FHIR gateways of Vfps and entici report missing namespaces that way.
	notFoundIsUnknownDomain bool
}

func newFHIRClient(backend Type, baseURL string, client *http.Client, notFoundIsUnknownDomain bool) (*fhirClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend %s: base url is required", backend)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &fhirClient{
		backend:                 backend,
		baseURL:                 strings.TrimRight(baseURL, "/"),
		http:                    client,
		notFoundIsUnknownDomain: notFoundIsUnknownDomain,
	}, nil
}

func (c *fhirClient) post(ctx context.Context, operation string, in parameters, out *parameters) error {
	body, err := json.Marshal(in)
	if err != nil {
		return NewAdapterError(ErrorBadData, c.backend, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+operation, bytes.NewReader(body))
	if err != nil {
		return NewAdapterError(ErrorMisconfigured, c.backend, "build request", err)
	}
	req.Header.Set("Content-Type", mediaTypeFHIRJSON)
	req.Header.Set("Accept", mediaTypeFHIRJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.transportError(err)
	}
	if resp.StatusCode >= 300 {
		return c.statusError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewAdapterError(ErrorBadData, c.backend, "decode response", err)
	}
	return nil
}

func (c *fhirClient) transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewAdapterError(ErrorTimeout, c.backend, "request timed out", err)
	}
	return NewAdapterError(ErrorOutage, c.backend, fmt.Sprintf("no connection to %s server", c.backend), err)
}

func (c *fhirClient) statusError(status int, body []byte) error {
	var outcome operationOutcome
	_ = json.Unmarshal(body, &outcome)
	diag := outcome.diagnostics()

	switch {
	case status == http.StatusBadRequest && strings.HasPrefix(diag, "Unknown domain"):
		return NewAdapterError(ErrorUnknownDomain, c.backend, diag, nil)
	case status == http.StatusNotFound && c.notFoundIsUnknownDomain:
		return NewAdapterError(ErrorUnknownDomain, c.backend, fmt.Sprintf("%s domain not found", c.backend), nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return NewAdapterError(ErrorRejected, c.backend, orDefault(diag, "invalid parameters"), nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewAdapterError(ErrorMisconfigured, c.backend, fmt.Sprintf("invalid %s gateway configuration", c.backend), nil)
	default:
		return NewAdapterError(ErrorOutage, c.backend, fmt.Sprintf("unexpected status %d", status), nil)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// fanOut calls one for every original with at most limit calls in flight.
// The first failure cancels the remaining calls.
func fanOut(ctx context.Context, originals []string, limit int, one func(ctx context.Context, original string) (string, error)) (map[string]string, error) {
	if limit < 1 {
		limit = 1
	}
	var mu sync.Mutex
	out := make(map[string]string, len(originals))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, original := range originals {
		g.Go(func() error {
			pseudonym, err := one(ctx, original)
			if err != nil {
				return err
			}
			mu.Lock()
			out[original] = pseudonym
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
