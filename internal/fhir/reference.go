package fhir

import (
	"slices"
	"strings"
)

// Reference is a parsed literal reference.
type Reference struct {
	Type string
	ID   string
}

// ReferenceValues returns the literal reference strings of the Reference
// elements found at path under node.
func ReferenceValues(node any, path ...string) []string {
	var out []string
	for _, v := range Values(node, path...) {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if ref, ok := obj["reference"].(string); ok && ref != "" {
			out = append(out, ref)
		}
	}
	return out
}

// ParseReference resolves a literal reference to its type and id. Relative
// ("Patient/1"), absolute ("https://host/fhir/Patient/1"), versioned
// ("Patient/1/_history/2"), operation ("Patient/1/$everything") and
// query-suffixed forms all resolve to the same result. Bare ids, contained
// ("#x") and URN references do not resolve.
//
// Type and id are the last two segments once the suffixes are removed, so an
// id that looks like a type name ("Patient/Abc/_history/2") stays the id.
func ParseReference(ref string) (Reference, bool) {
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "urn:") {
		return Reference{}, false
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	segs := strings.Split(ref, "/")
	if i := slices.Index(segs, "_history"); i >= 0 {
		segs = segs[:i]
	}
	for len(segs) > 0 {
		last := segs[len(segs)-1]
		if last != "" && !strings.HasPrefix(last, "$") {
			break
		}
		segs = segs[:len(segs)-1]
	}
	if len(segs) < 2 || !isTypeName(segs[len(segs)-2]) {
		return Reference{}, false
	}
	return Reference{Type: segs[len(segs)-2], ID: segs[len(segs)-1]}, true
}

// References reports whether ref points at resourceType/id.
func References(ref, resourceType, id string) bool {
	r, ok := ParseReference(ref)
	return ok && r.Type == resourceType && r.ID == id
}

// isTypeName matches FHIR resource type names: an upper-case ASCII letter
// followed by ASCII letters.
func isTypeName(s string) bool {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}
