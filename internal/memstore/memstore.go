// Package memstore provides in-memory implementations of the hot-path
// stores with the same semantics as the redis-backed ones. Used as the
// dev-mode backend and by tests.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KTB-loadTest/Team9/internal/cache"
	"github.com/KTB-loadTest/Team9/internal/models"
)

type timelineEntry struct {
	messageID string
	score     int64
	seq       int // insertion order, breaks score ties
}

// MessageStore is the in-memory counterpart of cache.MessageStore.
// Bodies are kept serialized so decode behavior matches the redis
// path.
type MessageStore struct {
	mu        sync.RWMutex
	bodies    map[string][]byte
	timelines map[string][]timelineEntry
	fileLinks map[string]string
	seq       int
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		bodies:    make(map[string][]byte),
		timelines: make(map[string][]timelineEntry),
		fileLinks: make(map[string]string),
	}
}

func (s *MessageStore) Save(ctx context.Context, m *models.Message) (*models.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message %s: %w", m.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[m.ID] = body

	entries := s.timelines[m.RoomID]
	found := false
	for i := range entries {
		if entries[i].messageID == m.ID {
			entries[i].score = m.TimestampMillis()
			found = true
			break
		}
	}
	if !found {
		s.seq++
		entries = append(entries, timelineEntry{messageID: m.ID, score: m.TimestampMillis(), seq: s.seq})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score < entries[j].score
		}
		return entries[i].seq < entries[j].seq
	})
	s.timelines[m.RoomID] = entries

	if m.FileID != "" {
		s.fileLinks[m.FileID] = m.ID
	}
	return m, nil
}

func (s *MessageStore) FindByID(ctx context.Context, messageID string) (*models.Message, error) {
	s.mu.RLock()
	body, ok := s.bodies[messageID]
	s.mu.RUnlock()
	if !ok {
		return nil, cache.ErrNotFound
	}
	var m models.Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", messageID, err)
	}
	return &m, nil
}

func (s *MessageStore) FindByFileID(ctx context.Context, fileID string) (*models.Message, error) {
	s.mu.RLock()
	messageID, ok := s.fileLinks[fileID]
	s.mu.RUnlock()
	if !ok {
		return nil, cache.ErrNotFound
	}
	return s.FindByID(ctx, messageID)
}

func (s *MessageStore) Page(ctx context.Context, roomID string, limit int, before time.Time) (*models.MessagePage, error) {
	max := before.UnixMilli()

	s.mu.RLock()
	entries := s.timelines[roomID]
	var ids []string
	// entries are ascending; walk backwards for reverse-chronological
	for i := len(entries) - 1; i >= 0 && len(ids) < limit+1; i-- {
		if entries[i].score < max {
			ids = append(ids, entries[i].messageID)
		}
	}
	hasMore := len(ids) > limit
	if hasMore {
		ids = ids[:limit]
	}
	bodies := make([][]byte, 0, len(ids))
	for _, id := range ids {
		if b, ok := s.bodies[id]; ok {
			bodies = append(bodies, b)
		}
	}
	s.mu.RUnlock()

	if len(ids) == 0 {
		return &models.MessagePage{Messages: []*models.Message{}, HasMore: false}, nil
	}

	msgs := make([]*models.Message, 0, len(bodies))
	for _, b := range bodies {
		var m models.Message
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return &models.MessagePage{Messages: msgs, HasMore: hasMore}, nil
}
