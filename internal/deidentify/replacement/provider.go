package replacement

import (
	"errors"
	"maps"

	"fts/pkg/transportid"
)

// ErrNamespaceRequired is returned when a Provider is built without a namespace.
var ErrNamespaceRequired = errors.New("namespace is required")

// Provider issues transport ids for one transfer. The same key always yields
// the same transport id within an instance; ids are drawn fresh per instance
// and are never derived from the key. A Provider is transfer-scoped and not
// safe for concurrent use.
type Provider struct {
	keys KeyCreator
	gen  transportid.Generator

	idMappings   map[string]string // namespaced key -> tid
	dateMappings map[string]string // tid -> original date
	dateTids     map[string]string // original date -> tid
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithGenerator overrides the transport id generator.
func WithGenerator(gen transportid.Generator) ProviderOption {
	return func(p *Provider) {
		if gen != nil {
			p.gen = gen
		}
	}
}

// WithKeyCreator overrides the namespacing strategy.
func WithKeyCreator(keys KeyCreator) ProviderOption {
	return func(p *Provider) {
		p.keys = keys
	}
}

// NewProvider creates a Provider that namespaces keys with namespace.
func NewProvider(namespace string, opts ...ProviderOption) (*Provider, error) {
	if namespace == "" {
		return nil, ErrNamespaceRequired
	}
	p := &Provider{
		keys:         WithNamespacing(namespace),
		gen:          transportid.NewNanoID(),
		idMappings:   make(map[string]string),
		dateMappings: make(map[string]string),
		dateTids:     make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Keys returns the provider's key creator.
func (p *Provider) Keys() KeyCreator {
	return p.keys
}

// GetIDReplacement returns the transport id for resourceType/id.
func (p *Provider) GetIDReplacement(resourceType, id string) string {
	return p.replace(p.keys.IDKey(resourceType, id))
}

// GetValueReplacement returns the transport id for an identifier system/value.
func (p *Provider) GetValueReplacement(system, value string) string {
	return p.replace(p.keys.IdentifierKey(system, value))
}

// GenerateDateTid returns the transport id for a literal date string. Dates
// are memoized by value within the provider and are not namespaced.
func (p *Provider) GenerateDateTid(date string) string {
	if tid, ok := p.dateTids[date]; ok {
		return tid
	}
	tid := p.gen.Generate()
	p.dateTids[date] = tid
	p.dateMappings[tid] = date
	return tid
}

// IDMappings returns a copy of the namespaced key -> tid mappings.
func (p *Provider) IDMappings() map[string]string {
	return maps.Clone(p.idMappings)
}

// DateMappings returns a copy of the tid -> original date mappings.
func (p *Provider) DateMappings() map[string]string {
	return maps.Clone(p.dateMappings)
}

// Freeze returns an immutable snapshot of the current mappings. Later
// generation does not affect it.
func (p *Provider) Freeze() *Mappings {
	return &Mappings{
		keys:  p.keys,
		ids:   maps.Clone(p.idMappings),
		dates: maps.Clone(p.dateMappings),
	}
}

func (p *Provider) replace(key string) string {
	if tid, ok := p.idMappings[key]; ok {
		return tid
	}
	tid := p.gen.Generate()
	p.idMappings[key] = tid
	return tid
}
