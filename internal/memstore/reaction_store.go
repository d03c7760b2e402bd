package memstore

import (
	"context"
	"sync"
)

// ReactionStore is the in-memory counterpart of cache.ReactionStore.
type ReactionStore struct {
	mu sync.RWMutex
	// messageID -> reaction kind -> set of user ids
	reactions map[string]map[string]map[string]struct{}
}

func NewReactionStore() *ReactionStore {
	return &ReactionStore{reactions: make(map[string]map[string]map[string]struct{})}
}

func (s *ReactionStore) Add(ctx context.Context, messageID, reaction, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKind, ok := s.reactions[messageID]
	if !ok {
		byKind = make(map[string]map[string]struct{})
		s.reactions[messageID] = byKind
	}
	members, ok := byKind[reaction]
	if !ok {
		members = make(map[string]struct{})
		byKind[reaction] = members
	}
	members[userID] = struct{}{}
	return nil
}

func (s *ReactionStore) Remove(ctx context.Context, messageID, reaction, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byKind, ok := s.reactions[messageID]; ok {
		if members, ok := byKind[reaction]; ok {
			delete(members, userID)
			if len(members) == 0 {
				delete(byKind, reaction)
			}
		}
		if len(byKind) == 0 {
			delete(s.reactions, messageID)
		}
	}
	return nil
}

func (s *ReactionStore) ReadBack(ctx context.Context, messageIDs []string) (map[string]map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]map[string][]string)
	for _, messageID := range messageIDs {
		byKind, ok := s.reactions[messageID]
		if !ok || len(byKind) == 0 {
			continue
		}
		out := make(map[string][]string, len(byKind))
		for kind, members := range byKind {
			if len(members) == 0 {
				continue
			}
			users := make([]string, 0, len(members))
			for userID := range members {
				users = append(users, userID)
			}
			out[kind] = users
		}
		if len(out) > 0 {
			result[messageID] = out
		}
	}
	return result, nil
}
