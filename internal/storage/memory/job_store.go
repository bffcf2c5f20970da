package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/webcrawlerapi-go/internal/storage"
)

// JobStore provides an in-memory storage.JobStore.
type JobStore struct {
	mu      sync.RWMutex
	records []storage.JobRecord
	ids     map[string]struct{}
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{ids: make(map[string]struct{})}
}

// RecordJob appends the record. Record IDs must be unique.
func (s *JobStore) RecordJob(_ context.Context, record storage.JobRecord) error {
	if record.ID == "" {
		return errors.New("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[record.ID]; exists {
		return errors.New("record already exists")
	}
	s.ids[record.ID] = struct{}{}
	s.records = append(s.records, record)
	return nil
}

// Records returns every record for jobID in insertion order.
func (s *JobStore) Records(jobID string) []storage.JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.JobRecord
	for _, rec := range s.records {
		if rec.JobID == jobID {
			out = append(out, rec)
		}
	}
	return out
}
