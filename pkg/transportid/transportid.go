// Package transportid mints transport ids: one-time placeholders substituted for
// identifiers, pseudonyms and dates while a record crosses domains.
package transportid

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Size of a transport id. 21 characters over a 36-symbol alphabet gives
	// roughly 108 bits of entropy.
	Size = 21

	// Alphabet omits look-alike characters (0/O, 1/l/I, 5/S, ...) and is URL safe.
	Alphabet = "6789BCDFGHJKLMNPQRTWbcdfghjkmnpqrtwz"
)

// Generator produces fresh, unpredictable transport ids.
type Generator interface {
	Generate() string
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() string

func (f GeneratorFunc) Generate() string { return f() }

// NanoID generates ids with crypto/rand backed nanoid.
type NanoID struct {
	size     int
	alphabet string
}

// NewNanoID returns the default transport id generator.
func NewNanoID() *NanoID {
	return &NanoID{size: Size, alphabet: Alphabet}
}

// Generate returns a fresh id. It panics only if the system random source
// fails, which the runtime already treats as fatal.
func (g *NanoID) Generate() string {
	return gonanoid.MustGenerate(g.alphabet, g.size)
}

// Valid reports whether s has the shape of a transport id.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !inAlphabet(s[i]) {
			return false
		}
	}
	return true
}

func inAlphabet(c byte) bool {
	for i := 0; i < len(Alphabet); i++ {
		if Alphabet[i] == c {
			return true
		}
	}
	return false
}
