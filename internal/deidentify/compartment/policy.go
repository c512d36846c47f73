// Package compartment decides which resources of a record graph belong to one
// patient's compartment.
//
// Membership is driven by a FHIR CompartmentDefinition: each resource type lists
// the search parameters that may point at the patient. Parameters are mapped to
// resource fields once, at load time, into a registry of accessors; resolution
// itself never inspects field names it was not configured with.
package compartment

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"fts/internal/fhir"
)

//go:embed compartmentdefinition-patient.json
var patientCompartmentDefinition []byte

// searchParamFields maps compartment search parameters to the resource fields
// carrying them. Parameters not listed map to the field of the same name.
var searchParamFields = map[string][]string{
	"patient":       {"subject", "patient"},
	"subject":       {"subject"},
	"policy-holder": {"policyHolder"},
}

// nestedPaths overrides the field mapping for parameters whose reference sits
// below a repeating backbone element.
var nestedPaths = map[string]map[string][]string{
	"Appointment":              {"actor": {"participant.actor"}},
	"CareTeam":                 {"participant": {"participant.member"}},
	"RequestGroup":             {"participant": {"action.participant.actor"}},
	"Claim":                    {"payee": {"payee.party"}},
	"ExplanationOfBenefit":     {"payee": {"payee.party"}},
	"Composition":              {"attester": {"attester.party"}},
	"MedicationAdministration": {"performer": {"performer.actor"}},
	"Group":                    {"member": {"member.entity"}},
	"Patient":                  {"link": {"link.other"}},
}

type definition struct {
	ResourceType string          `json:"resourceType"`
	Resource     []resourceEntry `json:"resource"`
}

type resourceEntry struct {
	Code  string   `json:"code"`
	Param []string `json:"param"`
}

// Policy is the immutable resource type -> reference field path table.
type Policy struct {
	fields    map[string][]string
	accessors map[string][]accessor
}

// LoadPolicy parses a CompartmentDefinition. Resource types without parameters
// are not part of the compartment.
func LoadPolicy(data []byte) (*Policy, error) {
	var def definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse compartment definition: %w", err)
	}
	if def.ResourceType != "" && def.ResourceType != "CompartmentDefinition" {
		return nil, fmt.Errorf("expected CompartmentDefinition, got %q", def.ResourceType)
	}
	if def.Resource == nil {
		return nil, fmt.Errorf("invalid compartment definition: missing resource array")
	}

	fields := make(map[string][]string, len(def.Resource))
	for i, entry := range def.Resource {
		if strings.TrimSpace(entry.Code) == "" {
			return nil, fmt.Errorf("invalid compartment definition: resource[%d] has no code", i)
		}
		if _, dup := fields[entry.Code]; dup {
			continue
		}
		var paths []string
		for _, param := range entry.Param {
			if strings.TrimSpace(param) == "" {
				return nil, fmt.Errorf("invalid compartment definition: %s has an empty param", entry.Code)
			}
			paths = appendUnique(paths, fieldPaths(entry.Code, param)...)
		}
		if len(paths) > 0 {
			fields[entry.Code] = paths
		}
	}
	return newPolicy(fields), nil
}

// NewPolicy builds a policy directly from resource type -> field paths.
func NewPolicy(fields map[string][]string) *Policy {
	cp := make(map[string][]string, len(fields))
	for t, paths := range fields {
		if len(paths) > 0 {
			cp[t] = append([]string(nil), paths...)
		}
	}
	return newPolicy(cp)
}

// DefaultPolicy returns the FHIR R4 patient compartment.
func DefaultPolicy() (*Policy, error) {
	return LoadPolicy(patientCompartmentDefinition)
}

func newPolicy(fields map[string][]string) *Policy {
	p := &Policy{fields: fields, accessors: make(map[string][]accessor, len(fields))}
	for t, paths := range fields {
		for _, path := range paths {
			p.accessors[t] = append(p.accessors[t], newAccessor(path))
		}
	}
	return p
}

// paths returns the configured field paths for resourceType.
func (p *Policy) paths(resourceType string) []string {
	return append([]string(nil), p.fields[resourceType]...)
}

// Contains reports whether resourceType can be part of the compartment.
func (p *Policy) Contains(resourceType string) bool {
	_, ok := p.fields[resourceType]
	return ok
}

// ResourceTypes returns the compartment resource types, sorted.
func (p *Policy) ResourceTypes() []string {
	out := make([]string, 0, len(p.fields))
	for t := range p.fields {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func fieldPaths(resourceType, param string) []string {
	if nested, ok := nestedPaths[resourceType][param]; ok {
		return nested
	}
	if mapped, ok := searchParamFields[param]; ok {
		return mapped
	}
	return []string{param}
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

// accessor reads the literal references at one field path.
type accessor struct {
	path []string
}

func newAccessor(path string) accessor {
	return accessor{path: fhir.SplitPath(path)}
}

func (a accessor) references(r fhir.Resource) []string {
	return fhir.ReferenceValues(r, a.path...)
}
