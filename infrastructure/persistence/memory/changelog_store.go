// Package memory provides in-process implementations of the persistence ports,
// used by local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"rndindex/application/ports"
	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"
)

// ChangeLogStore keeps the change log in memory
type ChangeLogStore struct {
	mu      sync.RWMutex
	records []entities.ChangeRecord
	byID    map[valueobjects.ObjectID][]int
	seq     int64
}

// NewChangeLogStore creates an empty in-memory change log
func NewChangeLogStore() *ChangeLogStore {
	return &ChangeLogStore{byID: make(map[valueobjects.ObjectID][]int)}
}

// Append stores records; records without a sequence get the next one
func (s *ChangeLogStore) Append(ctx context.Context, records ...entities.ChangeRecord) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		if record.Sequence == 0 {
			s.seq++
			record.Sequence = s.seq
		} else if record.Sequence > s.seq {
			s.seq = record.Sequence
		}
		record.Attributes = entities.CopyAttributes(record.Attributes)
		id := record.ObjectID()
		s.byID[id] = append(s.byID[id], len(s.records))
		s.records = append(s.records, record)
	}
	return nil
}

// Watermark returns the highest sequence stored
func (s *ChangeLogStore) Watermark(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq, nil
}

// ListObjects returns the objects with a record at or below upTo, sorted
func (s *ChangeLogStore) ListObjects(ctx context.Context, upTo int64) ([]valueobjects.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []valueobjects.ObjectID
	for id, positions := range s.byID {
		for _, p := range positions {
			if s.records[p].Sequence <= upTo {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Less(ids[j])
	})
	return ids, nil
}

// GetChanges returns one object's records at or below upTo, in log order
func (s *ChangeLogStore) GetChanges(ctx context.Context, id valueobjects.ObjectID, upTo int64) ([]entities.ChangeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entities.ChangeRecord
	for _, p := range s.byID[id] {
		record := s.records[p]
		if record.Sequence <= upTo {
			record.Attributes = entities.CopyAttributes(record.Attributes)
			out = append(out, record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}

var _ ports.ChangeLogStore = (*ChangeLogStore)(nil)
