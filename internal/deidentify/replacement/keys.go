// Package replacement formats namespaced keys and issues memoized transport ids
// for identifiers, identifier values and dates.
package replacement

import (
	"strings"
)

// Key kinds.
const (
	KindID         = "id"
	KindIdentifier = "identifier"
)

// KeyCreator formats the lookup keys shared by the scraper, the broker and the
// rewriting engine.
type KeyCreator struct {
	prefix string
}

// WithNamespacing prefixes every key with namespace.
func WithNamespacing(namespace string) KeyCreator {
	return KeyCreator{prefix: namespace + "."}
}

// WithoutNamespacing formats keys without a namespace. Used for resources
// shared across patients.
func WithoutNamespacing() KeyCreator {
	return KeyCreator{}
}

// IDKey returns "{ns}.id.{resourceType}:{id}".
func (k KeyCreator) IDKey(resourceType, id string) string {
	return k.prefix + KindID + "." + resourceType + ":" + id
}

// IdentifierKey returns "{ns}.identifier.{system}:{value}".
func (k KeyCreator) IdentifierKey(system, value string) string {
	return k.prefix + KindIdentifier + "." + system + ":" + value
}

// Key is a parsed namespaced key.
type Key struct {
	Namespace string
	Kind      string
	// ResourceType and ID are set for KindID.
	ResourceType string
	ID           string
	// Rest holds everything after the kind marker ("{system}:{value}" for identifiers).
	Rest string
}

// Unnamespaced returns the key without its namespace.
func (k Key) Unnamespaced() string {
	if k.Kind == KindID {
		return WithoutNamespacing().IDKey(k.ResourceType, k.ID)
	}
	return k.Kind + "." + k.Rest
}

// ParseKey splits a key produced by a KeyCreator. Namespaces may themselves
// contain dots; the first kind marker wins.
func ParseKey(key string) (Key, bool) {
	var ns, kind, rest string
	switch {
	case strings.HasPrefix(key, KindID+"."):
		kind, rest = KindID, key[len(KindID)+1:]
	case strings.HasPrefix(key, KindIdentifier+"."):
		kind, rest = KindIdentifier, key[len(KindIdentifier)+1:]
	default:
		idIdx := strings.Index(key, "."+KindID+".")
		identIdx := strings.Index(key, "."+KindIdentifier+".")
		switch {
		case idIdx < 0 && identIdx < 0:
			return Key{}, false
		case idIdx >= 0 && (identIdx < 0 || idIdx < identIdx):
			ns, kind, rest = key[:idIdx], KindID, key[idIdx+len(KindID)+2:]
		default:
			ns, kind, rest = key[:identIdx], KindIdentifier, key[identIdx+len(KindIdentifier)+2:]
		}
	}

	sep := strings.IndexByte(rest, ':')
	if sep <= 0 || sep == len(rest)-1 {
		return Key{}, false
	}
	k := Key{Namespace: ns, Kind: kind, Rest: rest}
	if kind == KindID {
		k.ResourceType, k.ID = rest[:sep], rest[sep+1:]
	}
	return k, true
}
