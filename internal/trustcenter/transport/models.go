package transport

import (
	"time"

	"fts/internal/trustcenter/dateshift"
)

// Domains names the backend pseudonymization domains used for one transfer.
type Domains struct {
	Pseudonym string
	Salt      string
	DateShift string
}

// MappingRequest asks for transport ids for the keys harvested from one
// patient's resources.
type MappingRequest struct {
	PatientID string
	// PatientIdentifierSystem, when set, marks the key
	// "{patientID}.identifier.{system}:{patientID}" as the patient identifier;
	// its stored value is the patient's backend pseudonym.
	PatientIdentifierSystem string
	OriginalKeys            []string
	Domains                 Domains
	MaxDateShift            time.Duration
	Preserve                dateshift.Preserve
}

// MappingResult is returned to the clinical domain. It never carries a
// backend pseudonym.
type MappingResult struct {
	TransferID       string
	TransportMapping map[string]string
	// DateShift is the clinical-domain portion of the patient's date shift.
	DateShift time.Duration
}

// ResearchMapping is what the research domain resolves transport ids with.
type ResearchMapping struct {
	TIDPIDMap   map[string]string
	DateShiftBy time.Duration
}

// DateShiftRequest asks for a stand-alone date shift split.
type DateShiftRequest struct {
	PatientID    string
	MaxDateShift time.Duration
	Preserve     dateshift.Preserve
	Domain       string
}

// DateShiftResult carries the clinical-domain portion in whole days.
type DateShiftResult struct {
	TransferID    string
	DateShiftDays int64
}

// StoredDateShift is the research-domain portion of a date shift split.
type StoredDateShift struct {
	TransferID    string
	DateShiftDays int64
	DateShift     time.Duration
}
