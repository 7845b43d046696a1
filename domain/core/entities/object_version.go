package entities

import (
	"strings"
	"time"

	"rndindex/domain/core/valueobjects"
)

// ObjectVersion is one time-bounded snapshot of an object's attributes.
// Once built, versions are never mutated; readers share them freely.
type ObjectVersion struct {
	Ref        valueobjects.VersionRef `json:"ref"`
	Operation  Operation               `json:"operation"`
	Attributes []Attribute             `json:"attributes"`
	ValidFrom  time.Time               `json:"validFrom"`
	// ValidTo is exclusive; nil means the version is still current
	ValidTo *time.Time `json:"validTo,omitempty"`
	// CollisionCount is how many raw change records collapsed onto this
	// version's starting boundary at the storage timestamp resolution
	CollisionCount int `json:"collisionCount"`
	// LastSequence is the log sequence of the record whose attributes won
	LastSequence int64 `json:"lastSequence,omitempty"`
}

// IsOpen reports whether this is the current version of a live object
func (v ObjectVersion) IsOpen() bool {
	return v.ValidTo == nil
}

// Contains reports whether t falls inside [ValidFrom, ValidTo)
func (v ObjectVersion) Contains(t time.Time) bool {
	if t.Before(v.ValidFrom) {
		return false
	}
	return v.ValidTo == nil || t.Before(*v.ValidTo)
}

// Values returns the values of every attribute with the given name, in order
func (v ObjectVersion) Values(name string) []string {
	var values []string
	for _, attr := range v.Attributes {
		if strings.EqualFold(attr.Name, name) {
			values = append(values, attr.Value)
		}
	}
	return values
}

// Span returns the validity interval of the version together with the
// records it was built from
func (v ObjectVersion) Span() Span {
	return Span{
		ValidFrom:      v.ValidFrom,
		ValidTo:        v.ValidTo,
		CollisionCount: v.CollisionCount,
		LastSequence:   v.LastSequence,
	}
}

// Span is a validity interval: inclusive start, exclusive (or open) end
type Span struct {
	ValidFrom      time.Time  `json:"validFrom"`
	ValidTo        *time.Time `json:"validTo,omitempty"`
	CollisionCount int        `json:"collisionCount,omitempty"`
	LastSequence   int64      `json:"lastSequence,omitempty"`
}

// SameContent reports whether v starts where the span starts and was built
// from the same collapsed records, so edges derived for the span still
// describe v's attributes. ValidTo may differ.
func (s Span) SameContent(v ObjectVersion) bool {
	return s.ValidFrom.Equal(v.ValidFrom) &&
		s.CollisionCount == v.CollisionCount &&
		s.LastSequence == v.LastSequence
}
