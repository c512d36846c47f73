package handler

import (
	"fmt"
	"strings"
	"time"

	"fts/internal/trustcenter/dateshift"
	"fts/internal/trustcenter/transport"
	dErrors "fts/pkg/domain-errors"
)

// Durations on the wire are integer milliseconds.

// DomainsRequest names the backend domains of a transfer.
type DomainsRequest struct {
	Pseudonym string `json:"pseudonym" validate:"required,max=256"`
	Salt      string `json:"salt" validate:"required,max=256"`
	DateShift string `json:"dateShift" validate:"required,max=256"`
}

// TransportMappingRequest is the body of POST /cd/transport-mapping.
type TransportMappingRequest struct {
	PatientID               string         `json:"patientId" validate:"required,max=256"`
	PatientIdentifierSystem string         `json:"patientIdentifierSystem,omitempty" validate:"max=1024"`
	OriginalKeys            []string       `json:"originalKeys" validate:"max=100000,dive,required,max=4096"`
	Domains                 DomainsRequest `json:"domains"`
	MaxDateShift            *int64         `json:"maxDateShift,omitempty"`
	DateShiftPreserve       string         `json:"dateShiftPreserve,omitempty"`

	parsedPreserve dateshift.Preserve
}

// Validate parses the preserve mode. Implements httputil.Validatable.
func (r *TransportMappingRequest) Validate() error {
	r.PatientID = strings.TrimSpace(r.PatientID)
	if r.PatientID == "" {
		return dErrors.New(dErrors.CodeValidation, "patientId is required")
	}
	if err := validateMaxDateShift(r.MaxDateShift); err != nil {
		return err
	}
	preserve, err := parsePreserve(r.DateShiftPreserve)
	if err != nil {
		return err
	}
	r.parsedPreserve = preserve
	return nil
}

// ToDomain builds the service request, filling omitted date shift settings
// from d.
func (r *TransportMappingRequest) ToDomain(d Defaults) transport.MappingRequest {
	return transport.MappingRequest{
		PatientID:               r.PatientID,
		PatientIdentifierSystem: r.PatientIdentifierSystem,
		OriginalKeys:            r.OriginalKeys,
		Domains: transport.Domains{
			Pseudonym: r.Domains.Pseudonym,
			Salt:      r.Domains.Salt,
			DateShift: r.Domains.DateShift,
		},
		MaxDateShift: d.maxDateShift(r.MaxDateShift),
		Preserve:     d.preserve(r.parsedPreserve),
	}
}

// SecureMappingRequest is the body of POST /rd/secure-mapping.
type SecureMappingRequest struct {
	TransferID string `json:"transferId" validate:"required,max=128"`
}

// DateShiftRequest is the body of POST /cd/dateshift.
type DateShiftRequest struct {
	PatientID         string `json:"patientId" validate:"required,max=256"`
	MaxDateShift      *int64 `json:"maxDateShift,omitempty"`
	DateShiftPreserve string `json:"dateShiftPreserve,omitempty"`
	DateShiftDomain   string `json:"dateShiftDomain" validate:"required,max=256"`

	parsedPreserve dateshift.Preserve
}

func (r *DateShiftRequest) Validate() error {
	r.PatientID = strings.TrimSpace(r.PatientID)
	if r.PatientID == "" {
		return dErrors.New(dErrors.CodeValidation, "patientId is required")
	}
	if err := validateMaxDateShift(r.MaxDateShift); err != nil {
		return err
	}
	preserve, err := parsePreserve(r.DateShiftPreserve)
	if err != nil {
		return err
	}
	r.parsedPreserve = preserve
	return nil
}

func (r *DateShiftRequest) ToDomain(d Defaults) transport.DateShiftRequest {
	return transport.DateShiftRequest{
		PatientID:    r.PatientID,
		MaxDateShift: d.maxDateShift(r.MaxDateShift),
		Preserve:     d.preserve(r.parsedPreserve),
		Domain:       r.DateShiftDomain,
	}
}

// Defaults fill date shift settings a request leaves out.
type Defaults struct {
	MaxDateShift time.Duration
	Preserve     dateshift.Preserve
}

// maxDateShiftMillis is the largest accepted maxDateShift. Anything above it
// would also overflow the conversion to time.Duration.
var maxDateShiftMillis = dateshift.MaxShiftLimit.Milliseconds()

func validateMaxDateShift(ms *int64) error {
	if ms == nil {
		return nil
	}
	if *ms < 0 || *ms > maxDateShiftMillis {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("maxDateShift must be between 0 and %d milliseconds", maxDateShiftMillis))
	}
	return nil
}

func (d Defaults) maxDateShift(ms *int64) time.Duration {
	if ms == nil {
		return d.MaxDateShift
	}
	return time.Duration(*ms) * time.Millisecond
}

func (d Defaults) preserve(p dateshift.Preserve) dateshift.Preserve {
	if p != "" {
		return p
	}
	if d.Preserve != "" {
		return d.Preserve
	}
	return dateshift.PreserveNone
}

// parsePreserve returns "" for an omitted mode so defaults can apply.
func parsePreserve(s string) (dateshift.Preserve, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	p, err := dateshift.ParsePreserve(s)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "dateShiftPreserve must be NONE, DAYTIME or WEEKDAY")
	}
	return p, nil
}
