package entities

import "rndindex/domain/core/valueobjects"

// ReferenceEdge is a directed reference from one object version to the
// version of another object that was valid when the source came into being.
type ReferenceEdge struct {
	Source    valueobjects.VersionRef `json:"source"`
	Target    valueobjects.VersionRef `json:"target"`
	Attribute string                  `json:"attribute"`
}

// IsSelfReference reports whether the edge stays within one object
func (e ReferenceEdge) IsSelfReference() bool {
	return e.Source.ObjectID() == e.Target.ObjectID()
}

// Less orders edges by source, target, then attribute name
func (e ReferenceEdge) Less(other ReferenceEdge) bool {
	if e.Source != other.Source {
		return e.Source.Less(other.Source)
	}
	if e.Target != other.Target {
		return e.Target.Less(other.Target)
	}
	return e.Attribute < other.Attribute
}
