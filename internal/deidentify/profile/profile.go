// Package profile loads the declarative de-identification profile: per resource
// type, which fields carry identifiers, references and dates.
package profile

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fts/internal/fhir"
)

//go:embed default.yaml
var defaultProfile []byte

// DateHandler selects how a date field is treated.
type DateHandler string

const (
	// HandlerShift harvests the date so it can be replaced by a transport id and shifted.
	HandlerShift DateHandler = "shift"
	// HandlerGeneralize leaves the date to the rewriting engine; it is never harvested.
	HandlerGeneralize DateHandler = "generalize"
)

// DateField is one date-bearing field path and its handler.
type DateField struct {
	Path    string      `yaml:"path"`
	Handler DateHandler `yaml:"handler"`
}

// ResourceRules lists the harvested fields of one resource type.
type ResourceRules struct {
	ID          bool        `yaml:"id"`
	Identifiers []string    `yaml:"identifiers"`
	References  []string    `yaml:"references"`
	Dates       []DateField `yaml:"dates"`
}

// Profile is the parsed profile, keyed by resource type.
type Profile struct {
	Resources map[string]ResourceRules `yaml:"resources"`
}

// Parse decodes and validates a YAML profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads a profile file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in profile.
func Default() *Profile {
	p, err := Parse(defaultProfile)
	if err != nil {
		panic(fmt.Sprintf("built-in profile is invalid: %v", err))
	}
	return p
}

// Rules returns the rules for resourceType.
func (p *Profile) Rules(resourceType string) (ResourceRules, bool) {
	r, ok := p.Resources[resourceType]
	return r, ok
}

func (p *Profile) validate() error {
	if len(p.Resources) == 0 {
		return fmt.Errorf("profile declares no resources")
	}
	for rt, rules := range p.Resources {
		for _, path := range append(append([]string(nil), rules.Identifiers...), rules.References...) {
			if err := validPath(path); err != nil {
				return fmt.Errorf("%s: %w", rt, err)
			}
		}
		for _, d := range rules.Dates {
			if err := validPath(d.Path); err != nil {
				return fmt.Errorf("%s: %w", rt, err)
			}
			switch d.Handler {
			case HandlerShift, HandlerGeneralize:
			default:
				return fmt.Errorf("%s.%s: unknown date handler %q", rt, d.Path, d.Handler)
			}
		}
	}
	return nil
}

func validPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty field path")
	}
	for _, seg := range fhir.SplitPath(path) {
		if seg == "" {
			return fmt.Errorf("malformed field path %q", path)
		}
	}
	return nil
}
