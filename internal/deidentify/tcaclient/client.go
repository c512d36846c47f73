// Package tcaclient is the clinical domain's client for the broker.
package tcaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fts/internal/trustcenter/handler"
	dErrors "fts/pkg/domain-errors"
	"fts/pkg/platform/httputil"
	"fts/pkg/platform/middleware/requestid"
	"fts/pkg/requestcontext"
	"fts/pkg/transportid"
)

const (
	apiPrefix = "/api/v2"

	// maxResponseBytes bounds broker responses.
	maxResponseBytes = 16 << 20
)

// Client calls the broker's clinical- and research-domain endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http = &http.Client{Timeout: d}
	}
}

// New returns a client for the broker at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid broker url %q: %w", baseURL, err)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TransportMapping requests transport ids for the keys harvested from one
// patient's resources.
func (c *Client) TransportMapping(ctx context.Context, req handler.TransportMappingRequest) (*handler.TransportMappingResponse, error) {
	var out handler.TransportMappingResponse
	if err := c.do(ctx, http.MethodPost, "/cd/transport-mapping", req, &out); err != nil {
		return nil, err
	}
	for key, tid := range out.TransportMapping {
		if !transportid.Valid(tid) {
			return nil, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("broker returned malformed transport id for %q", key))
		}
	}
	return &out, nil
}

// DateShift requests a stand-alone clinical-domain date shift.
func (c *Client) DateShift(ctx context.Context, req handler.DateShiftRequest) (*handler.DateShiftResponse, error) {
	var out handler.DateShiftResponse
	if err := c.do(ctx, http.MethodPost, "/cd/dateshift", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SecureMapping fetches the research-domain mapping of a transfer.
func (c *Client) SecureMapping(ctx context.Context, transferID string) (*handler.SecureMappingResponse, error) {
	var out handler.SecureMappingResponse
	if err := c.do(ctx, http.MethodPost, "/rd/secure-mapping", handler.SecureMappingRequest{TransferID: transferID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetrieveDateShift claims the research-domain date shift of a transfer.
func (c *Client) RetrieveDateShift(ctx context.Context, transferID string) (*handler.RetrievedDateShiftResponse, error) {
	var out handler.RetrievedDateShiftResponse
	path := "/rd/dateshift?transferId=" + url.QueryEscape(transferID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encode broker request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build broker request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(err)
	}
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "undecodable broker response")
	}
	return nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "broker request timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "broker unreachable")
}

// statusError turns a broker error body back into a coded error so callers
// can tell an unknown domain from an outage.
func statusError(status int, body []byte) error {
	var resp httputil.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == "" {
		return dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("broker returned status %d", status))
	}
	msg := resp.ErrorDescription
	if msg == "" {
		msg = fmt.Sprintf("broker returned status %d", status)
	}
	return dErrors.New(dErrors.Code(resp.Error), msg)
}
