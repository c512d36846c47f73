// Package transport issues transport ids for one transfer, keeps the matching
// backend pseudonyms in a TTL store for the research domain and splits the
// patient's date shift between both domains.
package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fts/internal/deidentify/compartment"
	"fts/internal/deidentify/replacement"
	"fts/internal/platform/metrics"
	"fts/internal/trustcenter/backend"
	"fts/internal/trustcenter/dateshift"
	dErrors "fts/pkg/domain-errors"
	"fts/pkg/platform/sentinel"
	platformstrings "fts/pkg/platform/strings"
	"fts/pkg/requestcontext"
	"fts/pkg/transportid"
)

// Reserved hash fields. Transport ids are transportid.Size characters long
// and never collide with them.
const (
	FieldDateShiftMillis = "dateShiftMillis"
	fieldRetrievedAt     = "retrievedAt"
)

const (
	// DefaultTTL bounds how long transfer state is kept.
	DefaultTTL = 10 * time.Minute

	// claimedRetention is how long a retrieved date shift stays in the store.
	claimedRetention = time.Minute

	saltKeyPrefix = "Salt_"
)

const (
	operationTransportMapping  = "transport_mapping"
	operationResearchMapping   = "research_mapping"
	operationDateShift         = "date_shift"
	operationDateShiftRetrieve = "date_shift_retrieval"
)

// Service is the broker side of a transfer.
type Service struct {
	adapter       backend.Adapter
	store         Store
	policy        *compartment.Policy
	tids          transportid.Generator
	newTransferID func() string
	ttl           time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPolicy sets the compartment policy used to tell patient-owned keys from
// shared ones. Defaults to compartment.DefaultPolicy.
func WithPolicy(policy *compartment.Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

func WithTransportIDGenerator(g transportid.Generator) Option {
	return func(s *Service) {
		s.tids = g
	}
}

func WithTransferIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newTransferID = fn
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

func New(adapter backend.Adapter, store Store, opts ...Option) (*Service, error) {
	if adapter == nil {
		return nil, errors.New("backend adapter is required")
	}
	if store == nil {
		return nil, errors.New("transfer store is required")
	}

	svc := &Service{
		adapter:       adapter,
		store:         store,
		tids:          transportid.NewNanoID(),
		newTransferID: uuid.NewString,
		ttl:           DefaultTTL,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.policy == nil {
		policy, err := compartment.DefaultPolicy()
		if err != nil {
			return nil, fmt.Errorf("load compartment policy: %w", err)
		}
		svc.policy = policy
	}
	if svc.ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %s", svc.ttl)
	}
	return svc, nil
}

// =============================================================================
// Transport mapping
// =============================================================================

// seeds are the backend pseudonyms one transport mapping is derived from.
type seeds struct {
	salt      string
	dateShift string
	// pseudonyms holds the pseudonym-domain values, keyed by original.
	pseudonyms map[string]string
}

// GenerateTransportMapping mints one transport id per distinct original key
// and stores, under a fresh transfer id, what each transport id resolves to
// in the research domain:
//   - the patient identifier key resolves to the patient's pseudonym,
//   - keys of resources outside any patient compartment resolve to the
//     pseudonym of their un-namespaced key, so shared resources keep one
//     research identity across patients,
//   - every other key resolves to sha256(salt + key), with salt being the
//     patient's salt pseudonym.
//
// The research-domain date shift is stored alongside. The result carries
// only transport ids and the clinical-domain shift.
func (s *Service) GenerateTransportMapping(ctx context.Context, req MappingRequest) (*MappingResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	keys := platformstrings.Dedupe(req.OriginalKeys)
	_, outside := s.policy.SplitKeys(keys)
	shared := make(map[string]string, len(outside))
	for _, key := range outside {
		if k, ok := replacement.ParseKey(key); ok {
			shared[key] = k.Unnamespaced()
		}
	}

	patientKey := ""
	if req.PatientIdentifierSystem != "" {
		patientKey = replacement.WithNamespacing(req.PatientID).
			IdentifierKey(req.PatientIdentifierSystem, req.PatientID)
	}

	pseudonymOriginals := make([]string, 0, len(shared)+1)
	if patientKey != "" && slices.Contains(keys, patientKey) {
		pseudonymOriginals = append(pseudonymOriginals, req.PatientID)
	}
	for _, key := range outside {
		pseudonymOriginals = append(pseudonymOriginals, shared[key])
	}

	sd, err := s.fetchSeeds(ctx, req.PatientID, req.Domains, req.MaxDateShift, pseudonymOriginals)
	if err != nil {
		return nil, err
	}

	pair, err := dateshift.GenerateFromSeed(sd.dateShift, req.MaxDateShift, req.Preserve)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid date shift parameters")
	}

	mapping := make(map[string]string, len(keys))
	fields := make(map[string]string, len(keys)+1)
	for _, key := range keys {
		tid := s.tids.Generate()
		mapping[key] = tid
		switch original, isShared := shared[key]; {
		case key == patientKey:
			fields[tid] = sd.pseudonyms[req.PatientID]
		case isShared:
			fields[tid] = sd.pseudonyms[original]
		default:
			fields[tid] = transportHash(sd.salt, key)
		}
	}
	fields[FieldDateShiftMillis] = strconv.FormatInt(pair.RD.Milliseconds(), 10)

	transferID := s.newTransferID()
	if err := s.store.PutAll(ctx, transferID, fields, s.ttl); err != nil {
		return nil, storeError(err, "failed to store transport mapping")
	}

	s.logger.InfoContext(ctx, "transport mapping generated",
		"request_id", requestcontext.RequestID(ctx),
		"transfer_id", transferID,
		"keys", len(keys),
		"shared_keys", len(shared),
	)
	if s.metrics != nil {
		s.metrics.IncrementTransfers(operationTransportMapping)
		s.metrics.AddTransportIDs(len(mapping))
	}

	return &MappingResult{
		TransferID:       transferID,
		TransportMapping: mapping,
		DateShift:        pair.CD,
	}, nil
}

// fetchSeeds issues the salt, date shift seed and pseudonym lookups
// concurrently, one backend call per domain.
func (s *Service) fetchSeeds(ctx context.Context, patientID string, domains Domains, maxShift time.Duration, originals []string) (*seeds, error) {
	saltKey := saltKeyPrefix + patientID
	seedKey := dateShiftSeedKey(maxShift, patientID)

	out := &seeds{pseudonyms: map[string]string{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		salt, err := s.fetchOne(gctx, domains.Salt, saltKey)
		out.salt = salt
		return err
	})
	g.Go(func() error {
		seed, err := s.fetchOne(gctx, domains.DateShift, seedKey)
		out.dateShift = seed
		return err
	})
	if len(originals) > 0 {
		g.Go(func() error {
			got, err := s.adapter.FetchOrCreatePseudonyms(gctx, domains.Pseudonym, originals)
			if err != nil {
				return err
			}
			for _, original := range originals {
				if _, ok := got[original]; !ok {
					return missingPseudonym(s.adapter.Type())
				}
			}
			out.pseudonyms = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "pseudonym backend call failed",
			"request_id", requestcontext.RequestID(ctx),
			"backend", s.adapter.Type(),
			"category", backend.GetCategory(err),
		)
		return nil, backend.ToDomainError(err)
	}
	return out, nil
}

func (s *Service) fetchOne(ctx context.Context, domain, original string) (string, error) {
	got, err := s.adapter.FetchOrCreatePseudonyms(ctx, domain, []string{original})
	if err != nil {
		return "", err
	}
	value, ok := got[original]
	if !ok {
		return "", missingPseudonym(s.adapter.Type())
	}
	return value, nil
}

func missingPseudonym(t backend.Type) error {
	return backend.NewAdapterError(backend.ErrorBadData, t, "backend response is missing a requested pseudonym", nil)
}

// FetchResearchMapping returns the transport id to pseudonym pairs stored
// under transferID. Unknown or expired transfers yield an empty mapping.
func (s *Service) FetchResearchMapping(ctx context.Context, transferID string) (*ResearchMapping, error) {
	if transferID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "transferId is required")
	}

	fields, err := s.store.ReadAll(ctx, transferID)
	if err != nil {
		return nil, storeError(err, "failed to read transport mapping")
	}
	if len(fields) == 0 {
		s.logger.InfoContext(ctx, "research mapping not found",
			"request_id", requestcontext.RequestID(ctx),
			"transfer_id", transferID,
		)
		return &ResearchMapping{TIDPIDMap: map[string]string{}}, nil
	}

	shift, err := parseMillis(fields[FieldDateShiftMillis])
	if err != nil {
		return nil, err
	}

	tidPid := make(map[string]string, len(fields))
	for k, v := range fields {
		if isReserved(k) {
			continue
		}
		tidPid[k] = v
	}

	s.logger.InfoContext(ctx, "research mapping fetched",
		"request_id", requestcontext.RequestID(ctx),
		"transfer_id", transferID,
		"entries", len(tidPid),
	)
	if s.metrics != nil {
		s.metrics.IncrementTransfers(operationResearchMapping)
	}
	return &ResearchMapping{TIDPIDMap: tidPid, DateShiftBy: shift}, nil
}

// =============================================================================
// Stand-alone date shift
// =============================================================================

// GenerateDateShift splits the patient's date shift so the clinical domain
// receives whole days and the research domain the remainder, which is stored
// under a fresh transfer id.
func (s *Service) GenerateDateShift(ctx context.Context, req DateShiftRequest) (*DateShiftResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	seed, err := s.fetchOne(ctx, req.Domain, dateShiftSeedKey(req.MaxDateShift, req.PatientID))
	if err != nil {
		return nil, backend.ToDomainError(err)
	}
	pair, err := dateshift.GenerateFromSeed(seed, req.MaxDateShift, req.Preserve)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid date shift parameters")
	}
	cdDays, rd := pair.SplitDays()

	transferID := s.newTransferID()
	fields := map[string]string{FieldDateShiftMillis: strconv.FormatInt(rd.Milliseconds(), 10)}
	if err := s.store.PutAll(ctx, transferID, fields, s.ttl); err != nil {
		return nil, storeError(err, "failed to store date shift")
	}

	s.logger.InfoContext(ctx, "date shift generated",
		"request_id", requestcontext.RequestID(ctx),
		"transfer_id", transferID,
	)
	if s.metrics != nil {
		s.metrics.IncrementTransfers(operationDateShift)
	}
	return &DateShiftResult{TransferID: transferID, DateShiftDays: cdDays}, nil
}

// RetrieveDateShift hands out the research-domain shift stored by
// GenerateDateShift. Each transfer can be retrieved once; unknown, expired
// and already retrieved transfers are reported as not found.
func (s *Service) RetrieveDateShift(ctx context.Context, transferID string) (*StoredDateShift, error) {
	if transferID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "transferId is required")
	}

	retrievedAt := requestcontext.Now(ctx).UTC().Format(time.RFC3339Nano)
	claimed, err := s.store.SetIfAbsent(ctx, transferID, fieldRetrievedAt, retrievedAt)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown or expired transfer id")
	}
	if err != nil {
		return nil, storeError(err, "failed to claim date shift")
	}
	if !claimed {
		s.logger.WarnContext(ctx, "date shift retrieved twice",
			"request_id", requestcontext.RequestID(ctx),
			"transfer_id", transferID,
		)
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown or expired transfer id")
	}

	fields, err := s.store.ReadAll(ctx, transferID)
	if err != nil {
		return nil, storeError(err, "failed to read date shift")
	}
	if len(fields) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown or expired transfer id")
	}
	rd, err := parseMillis(fields[FieldDateShiftMillis])
	if err != nil {
		return nil, err
	}

	if s.ttl > claimedRetention {
		if err := s.store.Expire(ctx, transferID, claimedRetention); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to shorten retention of retrieved date shift",
				"transfer_id", transferID,
				"error", err,
			)
		}
	}

	s.logger.InfoContext(ctx, "date shift retrieved",
		"request_id", requestcontext.RequestID(ctx),
		"transfer_id", transferID,
	)
	if s.metrics != nil {
		s.metrics.IncrementTransfers(operationDateShiftRetrieve)
	}
	return &StoredDateShift{
		TransferID:    transferID,
		DateShiftDays: int64(rd / dateshift.Day),
		DateShift:     rd,
	}, nil
}

// Health reports whether the transfer store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

// =============================================================================
// Helpers
// =============================================================================

func (r MappingRequest) validate() error {
	if r.PatientID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "patientId is required")
	}
	if r.Domains.Pseudonym == "" || r.Domains.Salt == "" || r.Domains.DateShift == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "pseudonym, salt and dateShift domains are required")
	}
	return validateMaxShift(r.MaxDateShift)
}

func (r DateShiftRequest) validate() error {
	if r.PatientID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "patientId is required")
	}
	if r.Domain == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "dateShiftDomain is required")
	}
	return validateMaxShift(r.MaxDateShift)
}

func validateMaxShift(d time.Duration) error {
	if d < 0 || d > dateshift.MaxShiftLimit {
		return dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("maxDateShift must be between 0 and %d days", dateshift.MaxShiftLimit/dateshift.Day))
	}
	return nil
}

func isReserved(field string) bool {
	return field == FieldDateShiftMillis || field == fieldRetrievedAt
}

func parseMillis(value string) (time.Duration, error) {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "stored date shift is not a valid integer")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func transportHash(salt, key string) string {
	sum := sha256.Sum256([]byte(salt + key))
	return hex.EncodeToString(sum[:])
}

// dateShiftSeedKey names the backend original whose pseudonym seeds the
// patient's date shift, e.g. "PT336H_p1" for 14 days.
func dateShiftSeedKey(maxShift time.Duration, patientID string) string {
	return isoDuration(maxShift) + "_" + patientID
}

// isoDuration formats d as an ISO-8601 time duration ("PT336H", "PT1H30M",
// "PT0.5S"). d must not be negative.
func isoDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	out := "PT"
	if h := d / time.Hour; h > 0 {
		out += strconv.FormatInt(int64(h), 10) + "H"
	}
	if m := (d % time.Hour) / time.Minute; m > 0 {
		out += strconv.FormatInt(int64(m), 10) + "M"
	}
	if rest := d % time.Minute; rest > 0 {
		out += strconv.FormatFloat(rest.Seconds(), 'f', -1, 64) + "S"
	}
	return out
}

func storeError(err error, msg string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
