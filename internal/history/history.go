// Package history keeps the application history: one record per processed
// job, newest first, capped at MaxRecords.
package history

import (
	"context"
	"sync"

	"jobmate/apply-service/internal/model"
)

// MaxRecords is the number of records kept.
const MaxRecords = 1000

// Query filters List. A zero Limit means MaxRecords.
type Query struct {
	Limit    int
	Platform model.Platform
}

func (q Query) limit() int {
	if q.Limit <= 0 || q.Limit > MaxRecords {
		return MaxRecords
	}
	return q.Limit
}

// Repository stores application records.
type Repository interface {
	Add(ctx context.Context, rec model.ApplicationRecord) error
	List(ctx context.Context, q Query) ([]model.ApplicationRecord, error)
}

// Memory is an in-process Repository.
type Memory struct {
	mu      sync.Mutex
	records []model.ApplicationRecord // newest first
}

// NewMemory returns an empty repository.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Add(_ context.Context, rec model.ApplicationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]model.ApplicationRecord{rec}, m.records...)
	if len(m.records) > MaxRecords {
		m.records = m.records[:MaxRecords]
	}
	return nil
}

func (m *Memory) List(_ context.Context, q Query) ([]model.ApplicationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ApplicationRecord, 0)
	for _, r := range m.records {
		if q.Platform != "" && r.Platform != q.Platform {
			continue
		}
		out = append(out, r)
		if len(out) == q.limit() {
			break
		}
	}
	return out, nil
}
