package references

import (
	"strings"

	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"
)

// Candidate is a proposed reference; whether it resolves is decided later
// against the target's history.
type Candidate struct {
	Attribute string
	Targets   []valueobjects.ObjectType
	Key       string
}

// TargetIDs returns the object identities the candidate may resolve to, in preference order
func (c Candidate) TargetIDs() []valueobjects.ObjectID {
	ids := make([]valueobjects.ObjectID, len(c.Targets))
	for i, t := range c.Targets {
		ids[i] = valueobjects.ObjectID{Type: t, Key: c.Key}
	}
	return ids
}

// Extractor proposes reference candidates from attribute values
type Extractor struct {
	rules map[string][]Rule
}

// NewExtractor indexes a reference table by attribute name
func NewExtractor(table *Table) *Extractor {
	rules := make(map[string][]Rule)
	for _, rule := range table.Rules {
		name := strings.ToLower(rule.Attribute)
		rules[name] = append(rules[name], rule)
	}
	return &Extractor{rules: rules}
}

// Extract returns the distinct candidates found in attrs, in attribute order.
// Self references are kept.
func (e *Extractor) Extract(objectType valueobjects.ObjectType, attrs []entities.Attribute) []Candidate {
	var candidates []Candidate
	seen := make(map[string]struct{})

	for _, attr := range attrs {
		name := strings.ToLower(strings.TrimSpace(attr.Name))
		targets := e.targetsFor(name, objectType)
		if len(targets) == 0 {
			continue
		}
		for _, key := range SplitValues(attr.Value) {
			dedupe := name + "\x00" + key
			if _, ok := seen[dedupe]; ok {
				continue
			}
			seen[dedupe] = struct{}{}
			candidates = append(candidates, Candidate{Attribute: name, Targets: targets, Key: key})
		}
	}
	return candidates
}

func (e *Extractor) targetsFor(attribute string, objectType valueobjects.ObjectType) []valueobjects.ObjectType {
	var targets []valueobjects.ObjectType
	for _, rule := range e.rules[attribute] {
		if rule.appliesTo(objectType) {
			targets = append(targets, rule.Targets...)
		}
	}
	return targets
}

// SplitValues turns one attribute value into normalised keys.
// Trailing "#" comments are dropped and list values are split on commas.
func SplitValues(value string) []string {
	if i := strings.IndexByte(value, '#'); i >= 0 {
		value = value[:i]
	}
	var keys []string
	for _, part := range strings.Split(value, ",") {
		key := valueobjects.NormalizeKey(part)
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
