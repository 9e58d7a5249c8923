package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"activity-logs/internal/models"
)

// MemoryArtifactStore keeps artifacts in process memory
type MemoryArtifactStore struct {
	artifacts map[string]models.Artifact
	mutex     sync.RWMutex
	now       func() time.Time
}

// NewMemoryArtifactStore creates an empty in-memory artifact store
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{
		artifacts: make(map[string]models.Artifact),
		now:       time.Now,
	}
}

func (s *MemoryArtifactStore) Write(ctx context.Context, date string, payload []byte) error {
	// Copy before taking the lock so callers may reuse their buffer
	data := make([]byte, len(payload))
	copy(data, payload)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.artifacts[date] = models.Artifact{Date: date, Payload: data, WrittenAt: s.now()}
	return nil
}

func (s *MemoryArtifactStore) Read(ctx context.Context, date string) (*models.Artifact, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	artifact, exists := s.artifacts[date]
	if !exists {
		return nil, ErrArtifactNotFound
	}
	// Stored payloads are never mutated, sharing the slice is safe
	return &artifact, nil
}

func (s *MemoryArtifactStore) Delete(ctx context.Context, date string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.artifacts, date)
	return nil
}

func (s *MemoryArtifactStore) List(ctx context.Context) ([]models.Artifact, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	list := make([]models.Artifact, 0, len(s.artifacts))
	for _, artifact := range s.artifacts {
		list = append(list, models.Artifact{Date: artifact.Date, WrittenAt: artifact.WrittenAt})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date < list[j].Date })
	return list, nil
}
