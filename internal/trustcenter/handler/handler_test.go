package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"fts/internal/trustcenter/dateshift"
	"fts/internal/trustcenter/handler/mocks"
	"fts/internal/trustcenter/transport"
	dErrors "fts/pkg/domain-errors"
	"fts/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)

	h := New(s.service, nil, Defaults{MaxDateShift: 14 * dateshift.Day, Preserve: dateshift.PreserveDaytime})
	s.router = chi.NewRouter()
	s.router.Route("/api/v2", h.Register)
	s.router.Get("/health", h.HandleHealth)
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// POST /cd/transport-mapping
// =============================================================================

func (s *HandlerSuite) TestTransportMapping() {
	s.Run("maps the wire request and response", func() {
		s.service.EXPECT().
			GenerateTransportMapping(gomock.Any(), transport.MappingRequest{
				PatientID:    "p1",
				OriginalKeys: []string{"p1.id.Patient:p1"},
				Domains:      transport.Domains{Pseudonym: "psn", Salt: "salt", DateShift: "ds"},
				MaxDateShift: 30 * dateshift.Day,
				Preserve:     dateshift.PreserveWeekday,
			}).
			Return(&transport.MappingResult{
				TransferID:       "transfer-1",
				TransportMapping: map[string]string{"p1.id.Patient:p1": "tid-1"},
				DateShift:        -2 * dateshift.Day,
			}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/cd/transport-mapping", TransportMappingRequest{
			PatientID:         "p1",
			OriginalKeys:      []string{"p1.id.Patient:p1"},
			Domains:           DomainsRequest{Pseudonym: "psn", Salt: "salt", DateShift: "ds"},
			MaxDateShift:      ptr(int64(30 * dateshift.Day / time.Millisecond)),
			DateShiftPreserve: "weekday",
		})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[TransportMappingResponse](s.T(), rr)
		s.Equal("transfer-1", resp.TransferID)
		s.Equal(map[string]string{"p1.id.Patient:p1": "tid-1"}, resp.TransportMapping)
		s.Equal(int64(-2*24*60*60*1000), resp.DateShiftValue)
	})

	s.Run("applies defaults", func() {
		s.service.EXPECT().
			GenerateTransportMapping(gomock.Any(), gomock.Cond(func(x any) bool {
				r, ok := x.(transport.MappingRequest)
				return ok && r.MaxDateShift == 14*dateshift.Day && r.Preserve == dateshift.PreserveDaytime
			})).
			Return(&transport.MappingResult{TransferID: "transfer-2"}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/cd/transport-mapping", map[string]any{
			"patientId":    "p1",
			"originalKeys": []string{},
			"domains":      map[string]string{"pseudonym": "psn", "salt": "salt", "dateShift": "ds"},
		})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "transportMapping", map[string]any{})
	})

	s.Run("missing domain is rejected before the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/cd/transport-mapping", map[string]any{
			"patientId": "p1",
			"domains":   map[string]string{"pseudonym": "psn", "salt": "salt"},
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("unknown preserve mode", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/cd/transport-mapping", map[string]any{
			"patientId":         "p1",
			"domains":           map[string]string{"pseudonym": "psn", "salt": "salt", "dateShift": "ds"},
			"dateShiftPreserve": "MONTH",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("malformed body", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/v2/cd/transport-mapping", "{")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}

func (s *HandlerSuite) TestTransportMappingErrors() {
	cases := []struct {
		name   string
		err    error
		status int
		code   dErrors.Code
	}{
		{"unknown domain", dErrors.New(dErrors.CodeUnknownDomain, "Unknown domain: psn"), http.StatusBadRequest, dErrors.CodeUnknownDomain},
		{"backend timeout", dErrors.New(dErrors.CodeTimeout, "pseudonym backend timed out"), http.StatusGatewayTimeout, dErrors.CodeTimeout},
		{"backend outage", dErrors.New(dErrors.CodeUnavailable, "pseudonym backend unavailable"), http.StatusBadGateway, dErrors.CodeUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, dErrors.CodeInternal},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().GenerateTransportMapping(gomock.Any(), gomock.Any()).Return(nil, tc.err)

			req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/cd/transport-mapping", map[string]any{
				"patientId": "p1",
				"domains":   map[string]string{"pseudonym": "psn", "salt": "salt", "dateShift": "ds"},
			})
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatusAndError(s.T(), rr, tc.status, string(tc.code))
		})
	}
}

// =============================================================================
// POST /rd/secure-mapping
// =============================================================================

func (s *HandlerSuite) TestSecureMapping() {
	s.Run("returns the mapping", func() {
		s.service.EXPECT().FetchResearchMapping(gomock.Any(), "transfer-1").
			Return(&transport.ResearchMapping{
				TIDPIDMap:   map[string]string{"tid-1": "sid-1"},
				DateShiftBy: 1500 * time.Millisecond,
			}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/rd/secure-mapping", SecureMappingRequest{TransferID: "transfer-1"})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[SecureMappingResponse](s.T(), rr)
		s.Equal(map[string]string{"tid-1": "sid-1"}, resp.TIDPIDMap)
		s.Equal(int64(1500), resp.DateShiftBy)
	})

	s.Run("unknown transfer is an empty 200", func() {
		s.service.EXPECT().FetchResearchMapping(gomock.Any(), "unknown").
			Return(&transport.ResearchMapping{TIDPIDMap: map[string]string{}}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/rd/secure-mapping", SecureMappingRequest{TransferID: "unknown"})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "tidPidMap", map[string]any{})
	})

	s.Run("transfer id is required", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/rd/secure-mapping", map[string]any{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("malformed stored data", func() {
		s.service.EXPECT().FetchResearchMapping(gomock.Any(), "bad").
			Return(nil, dErrors.New(dErrors.CodeInvalidInput, "stored date shift is not a valid integer"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/rd/secure-mapping", SecureMappingRequest{TransferID: "bad"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

// =============================================================================
// Date shift
// =============================================================================

func (s *HandlerSuite) TestGenerateDateShift() {
	s.service.EXPECT().
		GenerateDateShift(gomock.Any(), transport.DateShiftRequest{
			PatientID:    "p1",
			MaxDateShift: 14 * dateshift.Day,
			Preserve:     dateshift.PreserveNone,
			Domain:       "ds",
		}).
		Return(&transport.DateShiftResult{TransferID: "transfer-1", DateShiftDays: -3}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/cd/dateshift", DateShiftRequest{
		PatientID:         "p1",
		DateShiftPreserve: "NONE",
		DateShiftDomain:   "ds",
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[DateShiftResponse](s.T(), rr)
	s.Equal(DateShiftResponse{TransferID: "transfer-1", DateShiftDays: -3}, *resp)
}

func (s *HandlerSuite) TestGenerateDateShiftRejectsNegativeMax() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/cd/dateshift", DateShiftRequest{
		PatientID:       "p1",
		MaxDateShift:    ptr(int64(-1)),
		DateShiftDomain: "ds",
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
}

func (s *HandlerSuite) TestMaxDateShiftOutOfRange() {
	// 18446744073710 ms wraps to roughly 448µs when multiplied into a Duration.
	for _, ms := range []int64{18446744073710, dateshift.MaxShiftLimit.Milliseconds() + 1} {
		s.Run("transport mapping", func() {
			req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/cd/transport-mapping", map[string]any{
				"patientId":    "p1",
				"domains":      map[string]string{"pseudonym": "psn", "salt": "salt", "dateShift": "ds"},
				"maxDateShift": ms,
			})
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
		})
		s.Run("date shift", func() {
			req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/cd/dateshift", DateShiftRequest{
				PatientID:       "p1",
				MaxDateShift:    ptr(ms),
				DateShiftDomain: "ds",
			})
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
		})
	}
}

func (s *HandlerSuite) TestMaxDateShiftAtLimit() {
	s.service.EXPECT().
		GenerateDateShift(gomock.Any(), transport.DateShiftRequest{
			PatientID:    "p1",
			MaxDateShift: dateshift.MaxShiftLimit,
			Preserve:     dateshift.PreserveDaytime,
			Domain:       "ds",
		}).
		Return(&transport.DateShiftResult{TransferID: "transfer-1"}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v2/cd/dateshift", DateShiftRequest{
		PatientID:       "p1",
		MaxDateShift:    ptr(dateshift.MaxShiftLimit.Milliseconds()),
		DateShiftDomain: "ds",
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
}

func (s *HandlerSuite) TestRetrieveDateShift() {
	s.Run("returns the research-domain shift", func() {
		s.service.EXPECT().RetrieveDateShift(gomock.Any(), "transfer-1").
			Return(&transport.StoredDateShift{TransferID: "transfer-1", DateShiftDays: 2, DateShift: 2*dateshift.Day + time.Hour}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/v2/rd/dateshift?transferId=transfer-1"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[RetrievedDateShiftResponse](s.T(), rr)
		s.Equal(int64(2), resp.DateShiftDays)
		s.Equal((2*dateshift.Day + time.Hour).Milliseconds(), resp.DateShiftMillis)
	})

	s.Run("unknown or already retrieved is 404", func() {
		s.service.EXPECT().RetrieveDateShift(gomock.Any(), "gone").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "unknown or expired transfer id"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/v2/rd/dateshift?transferId=gone"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("transfer id is required", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/v2/rd/dateshift"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

// =============================================================================
// Health
// =============================================================================

func (s *HandlerSuite) TestHealth() {
	s.Run("healthy", func() {
		s.service.EXPECT().Health(gomock.Any()).Return(nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "ok")
	})

	s.Run("store down", func() {
		s.service.EXPECT().Health(gomock.Any()).Return(context.DeadlineExceeded)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
		testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
	})
}
