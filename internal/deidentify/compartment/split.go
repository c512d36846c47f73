package compartment

import (
	"fts/internal/deidentify/replacement"
)

// SplitKeys partitions namespaced keys by whether the resource they name can
// belong to a patient compartment. Identifier keys and unparseable keys are
// treated as inside. Order within each half follows keys.
func (p *Policy) SplitKeys(keys []string) (inside, outside []string) {
	for _, key := range keys {
		k, ok := replacement.ParseKey(key)
		if ok && k.Kind == replacement.KindID && !p.Contains(k.ResourceType) {
			outside = append(outside, key)
			continue
		}
		inside = append(inside, key)
	}
	return inside, outside
}
