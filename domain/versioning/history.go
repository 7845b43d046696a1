package versioning

import (
	"fmt"
	"sort"
	"time"

	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"
	"rndindex/pkg/utils"
)

// History is the ordered, gap-free version sequence of one object.
// A key that was deleted and recreated has several independent lifetimes,
// each numbered from 1; lookups by version number address the latest one.
type History struct {
	Object    valueobjects.ObjectID      `json:"object"`
	Lifetimes [][]entities.ObjectVersion `json:"lifetimes"`
}

// IsEmpty reports whether the object never had a version
func (h *History) IsEmpty() bool {
	return h == nil || len(h.Lifetimes) == 0
}

// Current returns the versions of the latest lifetime
func (h *History) Current() []entities.ObjectVersion {
	if h.IsEmpty() {
		return nil
	}
	return h.Lifetimes[len(h.Lifetimes)-1]
}

// VersionCount returns the number of versions in the latest lifetime
func (h *History) VersionCount() int {
	return len(h.Current())
}

// Version returns version n (1-based) of the latest lifetime
func (h *History) Version(n int) (entities.ObjectVersion, bool) {
	current := h.Current()
	if n < 1 || n > len(current) {
		return entities.ObjectVersion{}, false
	}
	return current[n-1], true
}

// VersionAt returns the version, in any lifetime, whose validity interval contains t
func (h *History) VersionAt(t time.Time) (entities.ObjectVersion, bool) {
	if h.IsEmpty() {
		return entities.ObjectVersion{}, false
	}
	for i := len(h.Lifetimes) - 1; i >= 0; i-- {
		versions := h.Lifetimes[i]
		if len(versions) == 0 || t.Before(versions[0].ValidFrom) {
			continue
		}
		// first version starting after t; its predecessor is the candidate
		idx := sort.Search(len(versions), func(j int) bool {
			return versions[j].ValidFrom.After(t)
		})
		if idx == 0 {
			continue
		}
		candidate := versions[idx-1]
		if candidate.Contains(t) {
			return candidate, true
		}
	}
	return entities.ObjectVersion{}, false
}

// Deleted reports whether the latest lifetime was closed by a delete
func (h *History) Deleted() bool {
	current := h.Current()
	if len(current) == 0 {
		return false
	}
	return !current[len(current)-1].IsOpen()
}

// All returns every version of every lifetime in chronological order
func (h *History) All() []entities.ObjectVersion {
	if h.IsEmpty() {
		return nil
	}
	var all []entities.ObjectVersion
	for _, lifetime := range h.Lifetimes {
		all = append(all, lifetime...)
	}
	return all
}

// Builder turns a raw change log into version histories
type Builder struct {
	resolution time.Duration
}

// NewBuilder creates a builder that truncates change timestamps to the
// given storage resolution before assigning version boundaries
func NewBuilder(resolution time.Duration) *Builder {
	if resolution <= 0 {
		resolution = time.Second
	}
	return &Builder{resolution: resolution}
}

// Resolution returns the timestamp resolution used for version boundaries
func (b *Builder) Resolution() time.Duration {
	return b.resolution
}

// Build computes the history of one object from its change records.
// Records need not be pre-sorted; they are ordered by timestamp and then
// by log sequence. An empty record list yields an empty history.
func (b *Builder) Build(id valueobjects.ObjectID, records []entities.ChangeRecord) (*History, error) {
	history := &History{Object: id}
	if len(records) == 0 {
		return history, nil
	}

	ordered := make([]entities.ChangeRecord, len(records))
	copy(ordered, records)
	for _, record := range ordered {
		if err := record.Validate(); err != nil {
			return nil, err
		}
		if record.ObjectID() != id {
			return nil, fmt.Errorf("change record %d belongs to %s, not %s", record.Sequence, record.ObjectID(), id)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Before(ordered[j])
	})

	var current []entities.ObjectVersion
	open := false

	for _, record := range ordered {
		boundary := utils.Truncate(record.Timestamp, b.resolution)

		if record.Operation == entities.OperationDelete {
			if !open {
				continue
			}
			last := &current[len(current)-1]
			closedAt := boundary
			last.ValidTo = &closedAt
			history.Lifetimes = append(history.Lifetimes, current)
			current = nil
			open = false
			continue
		}

		if !open {
			current = []entities.ObjectVersion{b.newVersion(id, len(history.Lifetimes), 1, record, boundary)}
			open = true
			continue
		}

		last := &current[len(current)-1]
		if boundary.Equal(last.ValidFrom) {
			// indistinguishable at this resolution: the later record wins
			last.Attributes = entities.CopyAttributes(record.Attributes)
			last.CollisionCount++
			last.LastSequence = record.Sequence
			continue
		}

		closedAt := boundary
		last.ValidTo = &closedAt
		current = append(current, b.newVersion(id, len(history.Lifetimes), len(current)+1, record, boundary))
	}

	if open {
		history.Lifetimes = append(history.Lifetimes, current)
	}
	return history, nil
}

func (b *Builder) newVersion(
	id valueobjects.ObjectID,
	lifetime, number int,
	record entities.ChangeRecord,
	boundary time.Time,
) entities.ObjectVersion {
	ref := valueobjects.NewVersionRef(id, number)
	ref.Lifetime = lifetime
	return entities.ObjectVersion{
		Ref:            ref,
		Operation:      record.Operation,
		Attributes:     entities.CopyAttributes(record.Attributes),
		ValidFrom:      boundary,
		CollisionCount: 1,
		LastSequence:   record.Sequence,
	}
}

// CheckInvariants verifies numbering and interval continuity of a history
func CheckInvariants(h *History) error {
	if h.IsEmpty() {
		return nil
	}
	for l, lifetime := range h.Lifetimes {
		for i, v := range lifetime {
			if v.Ref.Version != i+1 {
				return fmt.Errorf("lifetime %d: version at position %d is numbered %d", l, i+1, v.Ref.Version)
			}
			if v.Ref.Lifetime != l {
				return fmt.Errorf("lifetime %d: version %d carries lifetime %d", l, v.Ref.Version, v.Ref.Lifetime)
			}
			last := i == len(lifetime)-1
			if !last {
				if v.ValidTo == nil || !v.ValidTo.Equal(lifetime[i+1].ValidFrom) {
					return fmt.Errorf("lifetime %d: version %d does not end where %d starts", l, i+1, i+2)
				}
				continue
			}
			if l < len(h.Lifetimes)-1 && v.IsOpen() {
				return fmt.Errorf("lifetime %d: superseded lifetime ends with an open version", l)
			}
		}
	}
	return nil
}
