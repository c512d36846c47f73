// Package scrape harvests, from one patient's resource collection, every
// identifier key and every shiftable date that must be replaced before the
// collection leaves the clinical domain.
package scrape

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"

	"fts/internal/deidentify/compartment"
	"fts/internal/deidentify/profile"
	"fts/internal/deidentify/replacement"
	"fts/internal/fhir"
)

// Scraper is transfer-scoped: it shares its Provider with the rewriting
// engine of the same transfer and must not be reused across transfers.
type Scraper struct {
	profile   *profile.Profile
	resolver  *compartment.Resolver
	provider  *replacement.Provider
	patientID string
	logger    *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		s.logger = logger
	}
}

// New creates a Scraper for patientID.
func New(p *profile.Profile, resolver *compartment.Resolver, provider *replacement.Provider, patientID string, opts ...Option) (*Scraper, error) {
	if p == nil {
		return nil, errors.New("profile is required")
	}
	if resolver == nil {
		return nil, errors.New("compartment resolver is required")
	}
	if provider == nil {
		return nil, errors.New("replacement provider is required")
	}
	if patientID == "" {
		return nil, errors.New("patient id is required")
	}
	s := &Scraper{
		profile:   p,
		resolver:  resolver,
		provider:  provider,
		patientID: patientID,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Scrape walks resources and returns the harvested keys and date mappings.
// Only resources in the patient's compartment contribute.
func (s *Scraper) Scrape(resources []fhir.Resource) *Data {
	membership := s.resolver.Partition(resources, s.patientID)
	b := newBuilder(s.provider.Keys())

	skipped := 0
	for _, res := range resources {
		if !s.inCompartment(res, membership) {
			skipped++
			continue
		}
		rules, ok := s.profile.Rules(fhir.ResourceType(res))
		if !ok {
			continue
		}
		s.harvest(b, res, rules, membership)
	}

	data := b.build()
	s.logger.Debug("scraped resource collection",
		"resources", len(resources),
		"outside_compartment", skipped,
		"ids", len(data.ids),
		"dates", len(data.dates),
	)
	return data
}

func (s *Scraper) inCompartment(res fhir.Resource, membership compartment.Membership) bool {
	if in, known := membership.Lookup(fhir.ResourceType(res), fhir.ID(res)); known {
		return in
	}
	return s.resolver.IsInCompartment(res, s.patientID)
}

func (s *Scraper) harvest(b *builder, res fhir.Resource, rules profile.ResourceRules, membership compartment.Membership) {
	resourceType := fhir.ResourceType(res)

	if id := fhir.ID(res); rules.ID && id != "" {
		b.addID(resourceType, id)
	}

	for _, path := range rules.Identifiers {
		for _, v := range fhir.Values(res, fhir.SplitPath(path)...) {
			ident, ok := v.(map[string]any)
			if !ok {
				continue
			}
			system, _ := ident["system"].(string)
			value, _ := ident["value"].(string)
			if system == "" || value == "" {
				s.logger.Debug("identifier skipped, system and value are both required",
					"resource_type", resourceType,
					"path", path,
					"has_system", system != "",
					"has_value", value != "",
				)
				continue
			}
			b.addIdentifier(system, value)
		}
	}

	for _, path := range rules.References {
		for _, raw := range fhir.ReferenceValues(res, fhir.SplitPath(path)...) {
			ref, ok := fhir.ParseReference(raw)
			if !ok || membership.OutsideCompartment(ref.Type, ref.ID) {
				continue
			}
			b.addID(ref.Type, ref.ID)
		}
	}

	for _, date := range rules.Dates {
		if date.Handler != profile.HandlerShift {
			continue
		}
		for _, v := range fhir.Values(res, fhir.SplitPath(date.Path)...) {
			value, ok := v.(string)
			if !ok || value == "" {
				continue
			}
			b.addDate(s.provider.GenerateDateTid(value), value)
		}
	}
}

// Data is the immutable result of one scrape.
type Data struct {
	ids   []string
	dates map[string]string
}

// IDs returns the harvested namespaced keys, sorted.
func (d *Data) IDs() []string {
	return slices.Clone(d.ids)
}

// DateTransportMappings returns tid -> original date for every shifted date.
func (d *Data) DateTransportMappings() map[string]string {
	return maps.Clone(d.dates)
}

// HasID reports whether key was harvested.
func (d *Data) HasID(key string) bool {
	_, found := slices.BinarySearch(d.ids, key)
	return found
}

type builder struct {
	keys  replacement.KeyCreator
	ids   map[string]struct{}
	dates map[string]string
}

func newBuilder(keys replacement.KeyCreator) *builder {
	return &builder{
		keys:  keys,
		ids:   make(map[string]struct{}),
		dates: make(map[string]string),
	}
}

func (b *builder) addID(resourceType, id string) {
	b.ids[b.keys.IDKey(resourceType, id)] = struct{}{}
}

func (b *builder) addIdentifier(system, value string) {
	b.ids[b.keys.IdentifierKey(system, value)] = struct{}{}
}

func (b *builder) addDate(tid, value string) {
	b.dates[tid] = value
}

func (b *builder) build() *Data {
	return &Data{
		ids:   slices.Sorted(maps.Keys(b.ids)),
		dates: maps.Clone(b.dates),
	}
}
