package memstore

import (
	"context"
	"sync"
	"time"
)

// ReaderStore is the in-memory counterpart of cache.ReaderStore.
type ReaderStore struct {
	mu sync.RWMutex
	// messageID -> userID -> read epoch millis
	readers map[string]map[string]int64
}

func NewReaderStore() *ReaderStore {
	return &ReaderStore{readers: make(map[string]map[string]int64)}
}

func (s *ReaderStore) Record(ctx context.Context, messageID, userID string, readAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.readers[messageID]
	if !ok {
		byUser = make(map[string]int64)
		s.readers[messageID] = byUser
	}
	byUser[userID] = readAt.UnixMilli()
	return nil
}

func (s *ReaderStore) RecordBatch(ctx context.Context, messageIDs []string, userID string, readAt time.Time) error {
	for _, messageID := range messageIDs {
		if err := s.Record(ctx, messageID, userID, readAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReaderStore) ReadBack(ctx context.Context, messageIDs []string) (map[string]map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]map[string]int64)
	for _, messageID := range messageIDs {
		byUser, ok := s.readers[messageID]
		if !ok || len(byUser) == 0 {
			continue
		}
		out := make(map[string]int64, len(byUser))
		for userID, millis := range byUser {
			out[userID] = millis
		}
		result[messageID] = out
	}
	return result, nil
}
