package entities

import (
	"fmt"
	"strings"
	"time"

	"rndindex/domain/core/valueobjects"
	"rndindex/pkg/utils"
)

// Operation is the kind of change a raw change log record describes
type Operation string

const (
	OperationCreate Operation = "create"
	OperationModify Operation = "modify"
	OperationDelete Operation = "delete"
)

// IsValid reports whether the operation is one the change log can carry
func (o Operation) IsValid() bool {
	switch o {
	case OperationCreate, OperationModify, OperationDelete:
		return true
	}
	return false
}

// Attribute is one name/value line of a registry object.
// Attribute order is significant for multi-valued attributes.
type Attribute struct {
	Name  string `json:"name" yaml:"name" dynamodbav:"name"`
	Value string `json:"value" yaml:"value" dynamodbav:"value"`
}

// NewAttribute creates an attribute
func NewAttribute(name, value string) Attribute {
	return Attribute{Name: name, Value: value}
}

// ChangeRecord is one immutable entry of the upstream change log
type ChangeRecord struct {
	// Sequence is the log position; it breaks timestamp ties deterministically
	Sequence   int64                   `json:"sequence" yaml:"sequence,omitempty" validate:"gte=0"`
	ObjectType valueobjects.ObjectType `json:"objectType" yaml:"objectType" validate:"required"`
	Key        string                  `json:"key" yaml:"key" validate:"required"`
	Operation  Operation               `json:"operation" yaml:"operation" validate:"required,oneof=create modify delete"`
	Attributes []Attribute             `json:"attributes" yaml:"attributes,omitempty" validate:"dive"`
	Timestamp  time.Time               `json:"timestamp" yaml:"timestamp" validate:"required"`
}

// ObjectID returns the normalised identity of the changed object
func (r ChangeRecord) ObjectID() valueobjects.ObjectID {
	return valueobjects.ObjectID{
		Type: valueobjects.ObjectType(strings.ToLower(strings.TrimSpace(string(r.ObjectType)))),
		Key:  valueobjects.NormalizeKey(r.Key),
	}
}

// Validate checks the record's structural invariants
func (r ChangeRecord) Validate() error {
	if err := utils.ValidateStruct(r); err != nil {
		return fmt.Errorf("invalid change record %d: %w", r.Sequence, err)
	}
	return nil
}

// Before orders records by timestamp, then by log sequence
func (r ChangeRecord) Before(other ChangeRecord) bool {
	if !r.Timestamp.Equal(other.Timestamp) {
		return r.Timestamp.Before(other.Timestamp)
	}
	return r.Sequence < other.Sequence
}

// CopyAttributes returns a detached copy of an attribute list
func CopyAttributes(attrs []Attribute) []Attribute {
	if attrs == nil {
		return nil
	}
	out := make([]Attribute, len(attrs))
	copy(out, attrs)
	return out
}
