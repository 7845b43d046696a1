package valueobjects

import (
	"errors"
	"fmt"
	"strings"
)

// ObjectType names a registry object class such as mntner, person or organisation.
// Types are always stored lowercase.
type ObjectType string

// NewObjectType normalises and validates an object type name
func NewObjectType(name string) (ObjectType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", errors.New("object type cannot be empty")
	}
	return ObjectType(name), nil
}

// String returns the string representation of the ObjectType
func (t ObjectType) String() string {
	return string(t)
}

// NormalizeKey returns the canonical form of a primary key.
// RPSL primary keys are case-insensitive, so keys are compared uppercase.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// ObjectID identifies a registry object by type and primary key.
// Value objects are immutable and comparable, so ObjectID can be used as a map key.
type ObjectID struct {
	Type ObjectType `json:"type"`
	Key  string     `json:"key"`
}

// NewObjectID creates a normalised ObjectID
func NewObjectID(objectType, key string) (ObjectID, error) {
	t, err := NewObjectType(objectType)
	if err != nil {
		return ObjectID{}, err
	}
	k := NormalizeKey(key)
	if k == "" {
		return ObjectID{}, errors.New("primary key cannot be empty")
	}
	return ObjectID{Type: t, Key: k}, nil
}

// MustObjectID is NewObjectID for fixtures and tables known to be valid
func MustObjectID(objectType, key string) ObjectID {
	id, err := NewObjectID(objectType, key)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns "type/KEY"
func (id ObjectID) String() string {
	return fmt.Sprintf("%s/%s", id.Type, id.Key)
}

// IsZero checks if the ObjectID is the zero value
func (id ObjectID) IsZero() bool {
	return id.Type == "" && id.Key == ""
}

// Less orders object IDs by type, then key
func (id ObjectID) Less(other ObjectID) bool {
	if id.Type != other.Type {
		return id.Type < other.Type
	}
	return id.Key < other.Key
}

// VersionRef is the stable identity of one object version.
// Lifetime counts how many times the key was deleted and recreated before
// this version; it is zero for the first (usually only) lifetime.
type VersionRef struct {
	Type     ObjectType `json:"type"`
	Key      string     `json:"key"`
	Lifetime int        `json:"lifetime,omitempty"`
	Version  int        `json:"version"`
}

// NewVersionRef creates a VersionRef in the first lifetime of an object
func NewVersionRef(id ObjectID, version int) VersionRef {
	return VersionRef{Type: id.Type, Key: id.Key, Version: version}
}

// ObjectID returns the identity of the object this version belongs to
func (r VersionRef) ObjectID() ObjectID {
	return ObjectID{Type: r.Type, Key: r.Key}
}

// String returns "type/KEY@version", with the lifetime prefixed when non-zero
func (r VersionRef) String() string {
	if r.Lifetime > 0 {
		return fmt.Sprintf("%s/%s@%d.%d", r.Type, r.Key, r.Lifetime, r.Version)
	}
	return fmt.Sprintf("%s/%s@%d", r.Type, r.Key, r.Version)
}

// Less gives version references a total, deterministic order
func (r VersionRef) Less(other VersionRef) bool {
	if r.Type != other.Type {
		return r.Type < other.Type
	}
	if r.Key != other.Key {
		return r.Key < other.Key
	}
	if r.Lifetime != other.Lifetime {
		return r.Lifetime < other.Lifetime
	}
	return r.Version < other.Version
}
