package replacement

import "maps"

// Mappings is the frozen replacement registry handed to the rewriting engine.
type Mappings struct {
	keys  KeyCreator
	ids   map[string]string
	dates map[string]string
}

// NewMappings builds a registry from mappings minted elsewhere, e.g. the
// transport mapping returned by the broker.
func NewMappings(keys KeyCreator, ids, dates map[string]string) *Mappings {
	return &Mappings{
		keys:  keys,
		ids:   maps.Clone(ids),
		dates: maps.Clone(dates),
	}
}

// IDReplacement returns the transport id for resourceType/id.
func (m *Mappings) IDReplacement(resourceType, id string) (string, bool) {
	tid, ok := m.ids[m.keys.IDKey(resourceType, id)]
	return tid, ok
}

// ValueReplacement returns the transport id for an identifier system/value.
func (m *Mappings) ValueReplacement(system, value string) (string, bool) {
	tid, ok := m.ids[m.keys.IdentifierKey(system, value)]
	return tid, ok
}

// Date returns the original date behind a date transport id.
func (m *Mappings) Date(tid string) (string, bool) {
	d, ok := m.dates[tid]
	return d, ok
}

// IDs returns a copy of the key -> tid mappings.
func (m *Mappings) IDs() map[string]string {
	return maps.Clone(m.ids)
}

// Dates returns a copy of the tid -> date mappings.
func (m *Mappings) Dates() map[string]string {
	return maps.Clone(m.dates)
}
