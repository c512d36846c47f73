// Package handler exposes the broker over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fts/internal/trustcenter/transport"
	dErrors "fts/pkg/domain-errors"
	"fts/pkg/platform/httputil"
	"fts/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the broker service the handlers call.
type Service interface {
	GenerateTransportMapping(ctx context.Context, req transport.MappingRequest) (*transport.MappingResult, error)
	FetchResearchMapping(ctx context.Context, transferID string) (*transport.ResearchMapping, error)
	GenerateDateShift(ctx context.Context, req transport.DateShiftRequest) (*transport.DateShiftResult, error)
	RetrieveDateShift(ctx context.Context, transferID string) (*transport.StoredDateShift, error)
	Health(ctx context.Context) error
}

// Handler wires broker endpoints to the transport service.
type Handler struct {
	service  Service
	logger   *slog.Logger
	defaults Defaults
}

// New constructs a handler. defaults fill date shift settings omitted by
// clinical-domain requests.
func New(service Service, logger *slog.Logger, defaults Defaults) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		service:  service,
		logger:   logger,
		defaults: defaults,
	}
}

// Register mounts the versioned broker endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cd/transport-mapping", h.HandleTransportMapping)
	r.Post("/cd/dateshift", h.HandleGenerateDateShift)
	r.Post("/rd/secure-mapping", h.HandleSecureMapping)
	r.Get("/rd/dateshift", h.HandleRetrieveDateShift)
}

// HandleTransportMapping handles POST /cd/transport-mapping.
func (h *Handler) HandleTransportMapping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[TransportMappingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.GenerateTransportMapping(ctx, req.ToDomain(h.defaults))
	if err != nil {
		h.logFailure(ctx, "transport mapping failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "transport mapping served",
		"request_id", requestID,
		"transfer_id", res.TransferID,
		"keys", len(res.TransportMapping),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromMappingResult(res))
}

// HandleSecureMapping handles POST /rd/secure-mapping.
func (h *Handler) HandleSecureMapping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SecureMappingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.FetchResearchMapping(ctx, req.TransferID)
	if err != nil {
		h.logFailure(ctx, "secure mapping failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResearchMapping(m))
}

// HandleGenerateDateShift handles POST /cd/dateshift.
func (h *Handler) HandleGenerateDateShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DateShiftRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.GenerateDateShift(ctx, req.ToDomain(h.defaults))
	if err != nil {
		h.logFailure(ctx, "date shift generation failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &DateShiftResponse{
		TransferID:    res.TransferID,
		DateShiftDays: res.DateShiftDays,
	})
}

// HandleRetrieveDateShift handles GET /rd/dateshift?transferId=.
func (h *Handler) HandleRetrieveDateShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	transferID := strings.TrimSpace(r.URL.Query().Get("transferId"))
	if transferID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "transferId query parameter is required"))
		return
	}

	res, err := h.service.RetrieveDateShift(ctx, transferID)
	if err != nil {
		h.logFailure(ctx, "date shift retrieval failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &RetrievedDateShiftResponse{
		TransferID:      res.TransferID,
		DateShiftDays:   res.DateShiftDays,
		DateShiftMillis: res.DateShift.Milliseconds(),
	})
}

// HandleHealth reports whether the transfer store is reachable.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg, requestID string, err error) {
	level := slog.LevelError
	if dErrors.IsClientError(err) {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestID,
		"code", dErrors.CodeOf(err),
		"error", err,
	)
}
