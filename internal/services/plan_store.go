package services

import (
	"context"
	"sync"

	"pibot/internal/models"
)

// PlanStore persists per-user plan records. The interface exists so the
// in-process map can be swapped for a networked store without touching the
// gate logic; Get returns (nil, nil) when the user has no record.
type PlanStore interface {
	Get(ctx context.Context, userID string) (*models.PlanRecord, error)
	Put(ctx context.Context, userID string, rec *models.PlanRecord) error
	Delete(ctx context.Context, userID string) error
}

// MemoryPlanStore is the default single-process PlanStore
type MemoryPlanStore struct {
	mu      sync.RWMutex
	records map[string]models.PlanRecord
}

// NewMemoryPlanStore creates an empty in-memory plan store
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{
		records: make(map[string]models.PlanRecord),
	}
}

// Get returns a copy of the user's record, or nil if none exists
func (s *MemoryPlanStore) Get(_ context.Context, userID string) (*models.PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

// Put stores the user's record
func (s *MemoryPlanStore) Put(_ context.Context, userID string, rec *models.PlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = *rec
	return nil
}

// Delete removes the user's record
func (s *MemoryPlanStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}
