// Package references maps reference-carrying attributes to the object types
// they may point at and proposes candidate targets for an object's attributes.
package references

import (
	"fmt"
	"io"
	"os"
	"strings"

	"rndindex/domain/core/valueobjects"

	"gopkg.in/yaml.v3"
)

// Rule declares which object types an attribute may reference.
// An attribute with several targets is polymorphic; the builder keeps the
// first target type, in declaration order, that resolves at the source's time.
// Sources restricts the rule to the listed object types; empty means any type.
type Rule struct {
	Attribute string                    `yaml:"attribute"`
	Targets   []valueobjects.ObjectType `yaml:"targets"`
	Sources   []valueobjects.ObjectType `yaml:"sources,omitempty"`
}

// appliesTo reports whether the rule is active for the given source type
func (r Rule) appliesTo(objectType valueobjects.ObjectType) bool {
	if len(r.Sources) == 0 {
		return true
	}
	for _, s := range r.Sources {
		if s == objectType {
			return true
		}
	}
	return false
}

// Table is the declarative attribute-to-target-types configuration
type Table struct {
	Rules []Rule `yaml:"references"`
}

// Validate normalises names and rejects incomplete rules
func (t *Table) Validate() error {
	for i := range t.Rules {
		rule := &t.Rules[i]
		rule.Attribute = strings.ToLower(strings.TrimSpace(rule.Attribute))
		if rule.Attribute == "" {
			return fmt.Errorf("reference rule %d: attribute is required", i)
		}
		if len(rule.Targets) == 0 {
			return fmt.Errorf("reference rule %q: at least one target type is required", rule.Attribute)
		}
		for j, target := range rule.Targets {
			normalized, err := valueobjects.NewObjectType(string(target))
			if err != nil {
				return fmt.Errorf("reference rule %q: %w", rule.Attribute, err)
			}
			rule.Targets[j] = normalized
		}
		for j, source := range rule.Sources {
			normalized, err := valueobjects.NewObjectType(string(source))
			if err != nil {
				return fmt.Errorf("reference rule %q: %w", rule.Attribute, err)
			}
			rule.Sources[j] = normalized
		}
	}
	return nil
}

// LoadTable reads a YAML reference table
func LoadTable(r io.Reader) (*Table, error) {
	var table Table
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&table); err != nil {
		return nil, fmt.Errorf("failed to decode reference table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

// LoadTableFile reads a YAML reference table from disk
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

func types(names ...string) []valueobjects.ObjectType {
	out := make([]valueobjects.ObjectType, len(names))
	for i, n := range names {
		out[i] = valueobjects.ObjectType(n)
	}
	return out
}

// DefaultTable returns the reference table for RPSL registry objects
func DefaultTable() *Table {
	maintainer := types("mntner")
	contact := types("person", "role")
	return &Table{Rules: []Rule{
		{Attribute: "mnt-by", Targets: maintainer},
		{Attribute: "mnt-lower", Targets: maintainer},
		{Attribute: "mnt-routes", Targets: maintainer},
		{Attribute: "mnt-domains", Targets: maintainer},
		{Attribute: "mnt-ref", Targets: maintainer},
		{Attribute: "mbrs-by-ref", Targets: maintainer},
		{Attribute: "mnt-irt", Targets: types("irt")},
		{Attribute: "admin-c", Targets: contact},
		{Attribute: "tech-c", Targets: contact},
		{Attribute: "zone-c", Targets: contact},
		{Attribute: "ping-hdl", Targets: contact},
		{Attribute: "abuse-c", Targets: types("role")},
		{Attribute: "org", Targets: types("organisation")},
		{Attribute: "sponsoring-org", Targets: types("organisation")},
		{Attribute: "origin", Targets: types("aut-num")},
		{Attribute: "member-of", Targets: types("as-set"), Sources: types("aut-num")},
		{Attribute: "member-of", Targets: types("route-set"), Sources: types("route", "route6")},
		{Attribute: "member-of", Targets: types("rtr-set"), Sources: types("inet-rtr")},
		{Attribute: "members", Targets: types("aut-num", "as-set"), Sources: types("as-set")},
		{Attribute: "members", Targets: types("inet-rtr", "rtr-set"), Sources: types("rtr-set")},
	}}
}
