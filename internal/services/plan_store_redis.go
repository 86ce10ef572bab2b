package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pibot/internal/models"
)

// plan records are kept well past the daily window so the plan choice
// survives quiet periods; the counter inside is date-reconciled on read
const planRecordTTL = 90 * 24 * time.Hour

// RedisPlanStore keeps plan records in Redis so plan state survives restarts
// when a Redis URL is configured. Serialization of check-and-consume still
// happens in the UsageGate's per-user locks; this store only moves the record
// off the process heap.
type RedisPlanStore struct {
	client *redis.Client
}

// NewRedisPlanStore creates a plan store backed by the given Redis client
func NewRedisPlanStore(client *redis.Client) *RedisPlanStore {
	return &RedisPlanStore{client: client}
}

func (s *RedisPlanStore) key(userID string) string {
	return fmt.Sprintf("plan:%s", userID)
}

// Get returns the user's record, or nil if none exists
func (s *RedisPlanStore) Get(ctx context.Context, userID string) (*models.PlanRecord, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plan record: %w", err)
	}

	var rec models.PlanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode plan record: %w", err)
	}
	return &rec, nil
}

// Put stores the user's record
func (s *RedisPlanStore) Put(ctx context.Context, userID string, rec *models.PlanRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode plan record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), data, planRecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to write plan record: %w", err)
	}
	return nil
}

// Delete removes the user's record
func (s *RedisPlanStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}
