// Package testutil holds fixture builders shared by package tests.
package testutil

import (
	"strings"
	"time"

	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"
)

// BaseTime is the default origin for fixture change logs
var BaseTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// Attrs builds an attribute list from "name: value" lines
func Attrs(lines ...string) []entities.Attribute {
	attrs := make([]entities.Attribute, 0, len(lines))
	for _, line := range lines {
		name, value, _ := strings.Cut(line, ":")
		attrs = append(attrs, entities.NewAttribute(strings.TrimSpace(name), strings.TrimSpace(value)))
	}
	return attrs
}

// ChangeLogBuilder assembles change records with increasing log sequence numbers
type ChangeLogBuilder struct {
	base    time.Time
	seq     int64
	records []entities.ChangeRecord
}

// NewChangeLog starts a change log whose offsets are relative to base
func NewChangeLog(base time.Time) *ChangeLogBuilder {
	return &ChangeLogBuilder{base: base}
}

// Create appends a create record at base+offset
func (b *ChangeLogBuilder) Create(objectType, key string, offset time.Duration, lines ...string) *ChangeLogBuilder {
	return b.add(entities.OperationCreate, objectType, key, offset, lines)
}

// Modify appends a modify record at base+offset
func (b *ChangeLogBuilder) Modify(objectType, key string, offset time.Duration, lines ...string) *ChangeLogBuilder {
	return b.add(entities.OperationModify, objectType, key, offset, lines)
}

// Delete appends a delete record at base+offset
func (b *ChangeLogBuilder) Delete(objectType, key string, offset time.Duration) *ChangeLogBuilder {
	return b.add(entities.OperationDelete, objectType, key, offset, nil)
}

func (b *ChangeLogBuilder) add(op entities.Operation, objectType, key string, offset time.Duration, lines []string) *ChangeLogBuilder {
	b.seq++
	b.records = append(b.records, entities.ChangeRecord{
		Sequence:   b.seq,
		ObjectType: valueobjects.ObjectType(objectType),
		Key:        key,
		Operation:  op,
		Attributes: Attrs(lines...),
		Timestamp:  b.base.Add(offset),
	})
	return b
}

// Records returns every record appended so far
func (b *ChangeLogBuilder) Records() []entities.ChangeRecord {
	out := make([]entities.ChangeRecord, len(b.records))
	copy(out, b.records)
	return out
}

// For returns the records of one object
func (b *ChangeLogBuilder) For(id valueobjects.ObjectID) []entities.ChangeRecord {
	var out []entities.ChangeRecord
	for _, r := range b.records {
		if r.ObjectID() == id {
			out = append(out, r)
		}
	}
	return out
}
