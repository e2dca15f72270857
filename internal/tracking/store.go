package tracking

import (
	"slices"
	"strings"
	"sync"
)

// Store is a concurrency-safe, in-memory map from job id to Record. Reads
// and writes copy records so a caller never shares memory with the store;
// serializing read-modify-write cycles for one job is the caller's job (see
// LaneLock).
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]Record),
	}
}

// GetOrCreate returns the record for id, creating a fresh one if none
// exists. The bool is true when a record was created.
func (s *Store) GetOrCreate(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[id]; ok {
		return rec, false
	}
	rec := Record{JobID: id}
	s.records[id] = rec
	return rec, true
}

// Get returns the record for id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Put stores rec under rec.JobID, replacing any previous record.
func (s *Store) Put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.JobID] = rec
}

// Remove drops the record for id. It is a no-op if none exists.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// Retain removes every record whose id is not in keep and returns the
// removed ids, sorted.
func (s *Store) Retain(keep map[string]struct{}) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id := range s.records {
		if _, ok := keep[id]; !ok {
			delete(s.records, id)
			removed = append(removed, id)
		}
	}
	slices.Sort(removed)
	return removed
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns a copy of every record, ordered by job id.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		return strings.Compare(a.JobID, b.JobID)
	})
	return out
}
