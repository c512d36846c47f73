package handler

import (
	"fts/internal/trustcenter/transport"
)

// TransportMappingResponse is returned to the clinical domain.
type TransportMappingResponse struct {
	TransferID       string            `json:"transferId"`
	TransportMapping map[string]string `json:"transportMapping"`
	DateShiftValue   int64             `json:"dateShiftValue"`
}

func FromMappingResult(res *transport.MappingResult) *TransportMappingResponse {
	mapping := res.TransportMapping
	if mapping == nil {
		mapping = map[string]string{}
	}
	return &TransportMappingResponse{
		TransferID:       res.TransferID,
		TransportMapping: mapping,
		DateShiftValue:   res.DateShift.Milliseconds(),
	}
}

// SecureMappingResponse is returned to the research domain.
type SecureMappingResponse struct {
	TIDPIDMap   map[string]string `json:"tidPidMap"`
	DateShiftBy int64             `json:"dateShiftBy"`
}

func FromResearchMapping(m *transport.ResearchMapping) *SecureMappingResponse {
	tidPid := m.TIDPIDMap
	if tidPid == nil {
		tidPid = map[string]string{}
	}
	return &SecureMappingResponse{TIDPIDMap: tidPid, DateShiftBy: m.DateShiftBy.Milliseconds()}
}

// DateShiftResponse carries the clinical-domain shift in whole days.
type DateShiftResponse struct {
	TransferID    string `json:"transferId"`
	DateShiftDays int64  `json:"dateShiftDays"`
}

// RetrievedDateShiftResponse carries the research-domain shift.
type RetrievedDateShiftResponse struct {
	TransferID      string `json:"transferId"`
	DateShiftDays   int64  `json:"dateShiftDays"`
	DateShiftMillis int64  `json:"dateShiftMillis"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status string `json:"status"`
}
