// Package fhir holds the minimal FHIR R4 JSON model used by the de-identification
// pipeline. Resources stay as decoded JSON maps; only the handful of fields the
// pipeline reads structurally get helpers here.
package fhir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Resource is a decoded FHIR resource.
type Resource = map[string]any

// TypePatient is the resource type that anchors a compartment.
const TypePatient = "Patient"

// ResourceType returns r.resourceType or "".
func ResourceType(r Resource) string {
	s, _ := r["resourceType"].(string)
	return s
}

// ID returns r.id or "".
func ID(r Resource) string {
	s, _ := r["id"].(string)
	return s
}

// Key returns the "Type:id" form used to index bundle entries.
func Key(r Resource) string {
	return ResourceType(r) + ":" + ID(r)
}

// Values walks path from node, fanning out across arrays at every step, and
// returns the leaf values. Arrays at the leaf are flattened. Missing or mistyped
// steps yield no values.
func Values(node any, path ...string) []any {
	if node == nil {
		return nil
	}
	if list, ok := node.([]any); ok {
		var out []any
		for _, item := range list {
			out = append(out, Values(item, path...)...)
		}
		return out
	}
	if len(path) == 0 {
		return []any{node}
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	return Values(obj[path[0]], path[1:]...)
}

// SplitPath splits a dotted field path.
func SplitPath(path string) []string {
	return strings.Split(path, ".")
}

// Bundle is the subset of a FHIR Bundle the pipeline reads.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleEntry wraps one resource in a bundle.
type BundleEntry struct {
	FullURL  string   `json:"fullUrl,omitempty"`
	Resource Resource `json:"resource,omitempty"`
}

// ParseBundle decodes a Bundle document.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.ResourceType != "Bundle" {
		return nil, fmt.Errorf("expected resourceType Bundle, got %q", b.ResourceType)
	}
	return &b, nil
}

// Resources returns the non-empty entry resources in bundle order.
func (b *Bundle) Resources() []Resource {
	out := make([]Resource, 0, len(b.Entry))
	for _, e := range b.Entry {
		if len(e.Resource) > 0 {
			out = append(out, e.Resource)
		}
	}
	return out
}
