package compartment

import (
	"errors"
	"io"
	"log/slog"

	"fts/internal/fhir"
)

// Resolver answers compartment membership questions against a Policy.
// It is safe for concurrent use.
type Resolver struct {
	policy *Policy
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for trace output.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver for policy.
func NewResolver(policy *Policy, opts ...Option) (*Resolver, error) {
	if policy == nil {
		return nil, errors.New("compartment policy is required")
	}
	r := &Resolver{
		policy: policy,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// IsInCompartment reports whether res belongs to patientID's compartment.
//
// The Patient resource itself is a member exactly when its id matches. Any
// other resource is a member when at least one of its configured reference
// fields resolves to Patient/{patientID}. Absent fields, unexpected shapes and
// unresolvable references count as no match.
func (r *Resolver) IsInCompartment(res fhir.Resource, patientID string) bool {
	if res == nil || patientID == "" {
		return false
	}
	resourceType := fhir.ResourceType(res)
	if resourceType == fhir.TypePatient {
		return fhir.ID(res) == patientID
	}

	accessors, ok := r.policy.accessors[resourceType]
	if !ok {
		return false
	}
	for _, a := range accessors {
		for _, ref := range a.references(res) {
			if fhir.References(ref, fhir.TypePatient, patientID) {
				r.logger.Debug("resource in compartment",
					"resource_type", resourceType,
					"field", a.path,
				)
				return true
			}
		}
	}
	return false
}

// Membership records compartment membership per "Type:id" for one collection.
type Membership map[string]bool

// Partition resolves membership for every resource in resources.
func (r *Resolver) Partition(resources []fhir.Resource, patientID string) Membership {
	m := make(Membership, len(resources))
	for _, res := range resources {
		if fhir.ResourceType(res) == "" || fhir.ID(res) == "" {
			continue
		}
		m[fhir.Key(res)] = r.IsInCompartment(res, patientID)
	}
	return m
}

// Lookup returns the membership of resourceType/id and whether it is known.
func (m Membership) Lookup(resourceType, id string) (in, known bool) {
	in, known = m[resourceType+":"+id]
	return in, known
}

// OutsideCompartment reports whether resourceType/id is a known non-member.
// Resources not in the collection are not known to be outside.
func (m Membership) OutsideCompartment(resourceType, id string) bool {
	in, known := m.Lookup(resourceType, id)
	return known && !in
}
