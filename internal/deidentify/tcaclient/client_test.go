package tcaclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fts/internal/trustcenter/handler"
	dErrors "fts/pkg/domain-errors"
	"fts/pkg/platform/httputil"
	"fts/pkg/requestcontext"
)

const patientTID = "bCDFGHJKLMNPQRTWbcdfg"

type ClientSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) client(h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	s.T().Cleanup(srv.Close)
	c, err := New(srv.URL)
	s.Require().NoError(err)
	return c
}

func (s *ClientSuite) TestNewRejectsInvalidURL() {
	_, err := New("not a url")
	s.Error(err)
}

func (s *ClientSuite) TestTransportMapping() {
	c := s.client(func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPost, r.Method)
		s.Equal("/api/v2/cd/transport-mapping", r.URL.Path)
		s.Equal("req-1", r.Header.Get("X-Request-ID"))

		var req handler.TransportMappingRequest
		s.NoError(json.NewDecoder(r.Body).Decode(&req))
		s.Equal("p1", req.PatientID)
		s.Equal([]string{"p1.id.Patient:p1"}, req.OriginalKeys)

		httputil.WriteJSON(w, http.StatusOK, handler.TransportMappingResponse{
			TransferID:       "transfer-1",
			TransportMapping: map[string]string{"p1.id.Patient:p1": patientTID},
			DateShiftValue:   -86400000,
		})
	})

	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	resp, err := c.TransportMapping(ctx, handler.TransportMappingRequest{
		PatientID:    "p1",
		OriginalKeys: []string{"p1.id.Patient:p1"},
		Domains:      handler.DomainsRequest{Pseudonym: "psn", Salt: "salt", DateShift: "ds"},
	})
	s.Require().NoError(err)
	s.Equal("transfer-1", resp.TransferID)
	s.Equal(patientTID, resp.TransportMapping["p1.id.Patient:p1"])
	s.Equal(int64(-86400000), resp.DateShiftValue)
}

func (s *ClientSuite) TestTransportMappingRejectsMalformedTransportID() {
	for _, tid := range []string{"", "tid-1", "p1", patientTID + "x", "0OlI1bCDFGHJKLMNPQRTW"} {
		s.Run(tid, func() {
			c := s.client(func(w http.ResponseWriter, r *http.Request) {
				httputil.WriteJSON(w, http.StatusOK, handler.TransportMappingResponse{
					TransferID: "transfer-1",
					TransportMapping: map[string]string{
						"p1.id.Patient:p1":   patientTID,
						"p1.id.Encounter:e1": tid,
					},
				})
			})

			resp, err := c.TransportMapping(context.Background(), handler.TransportMappingRequest{PatientID: "p1"})
			s.Nil(resp)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeUnavailable), err.Error())
		})
	}
}

func (s *ClientSuite) TestErrorsKeepTheirCode() {
	cases := []struct {
		name   string
		status int
		body   any
		code   dErrors.Code
	}{
		{"unknown domain", http.StatusBadRequest, httputil.ErrorResponse{Error: "unknown_domain", ErrorDescription: "Unknown domain: psn"}, dErrors.CodeUnknownDomain},
		{"not found", http.StatusNotFound, httputil.ErrorResponse{Error: "not_found"}, dErrors.CodeNotFound},
		{"gateway failure without body", http.StatusBadGateway, "upstream down", dErrors.CodeUnavailable},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			c := s.client(func(w http.ResponseWriter, _ *http.Request) {
				httputil.WriteJSON(w, tc.status, tc.body)
			})
			_, err := c.RetrieveDateShift(context.Background(), "transfer-1")
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func (s *ClientSuite) TestRetrieveDateShiftEscapesTransferID() {
	c := s.client(func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodGet, r.Method)
		s.Equal("a b&c", r.URL.Query().Get("transferId"))
		httputil.WriteJSON(w, http.StatusOK, handler.RetrievedDateShiftResponse{TransferID: "a b&c", DateShiftDays: 1, DateShiftMillis: 86400000})
	})
	resp, err := c.RetrieveDateShift(context.Background(), "a b&c")
	s.Require().NoError(err)
	s.Equal(int64(1), resp.DateShiftDays)
}

func (s *ClientSuite) TestSecureMappingAndDateShift() {
	c := s.client(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/rd/secure-mapping":
			httputil.WriteJSON(w, http.StatusOK, handler.SecureMappingResponse{TIDPIDMap: map[string]string{"tid": "sid"}, DateShiftBy: 5})
		case "/api/v2/cd/dateshift":
			httputil.WriteJSON(w, http.StatusOK, handler.DateShiftResponse{TransferID: "t2", DateShiftDays: -4})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	m, err := c.SecureMapping(context.Background(), "t1")
	s.Require().NoError(err)
	s.Equal("sid", m.TIDPIDMap["tid"])

	ds, err := c.DateShift(context.Background(), handler.DateShiftRequest{PatientID: "p1", DateShiftDomain: "ds"})
	s.Require().NoError(err)
	s.Equal(int64(-4), ds.DateShiftDays)
}

func (s *ClientSuite) TestTimeout() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	s.T().Cleanup(srv.Close)

	c, err := New(srv.URL, WithTimeout(50*time.Millisecond))
	s.Require().NoError(err)

	_, err = c.SecureMapping(context.Background(), "t1")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout), "got %v", err)
}

func (s *ClientSuite) TestUnreachable() {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	s.Require().NoError(err)
	_, err = c.SecureMapping(context.Background(), "t1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable), "got %v", err)
}
