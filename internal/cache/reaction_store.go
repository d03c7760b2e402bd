package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ReactionStore keeps per (message, reaction kind) membership sets of
// user ids under <prefix>:msg:<id>:reaction:<kind>. Adds and removes
// are plain SADD/SREM: idempotent, commutative under repetition, and
// last-write-wins when an add races a remove for the same triple.
type ReactionStore struct {
	rdb    *redis.Client
	prefix string
}

func NewReactionStore(rdb *redis.Client, prefix string) *ReactionStore {
	return &ReactionStore{rdb: rdb, prefix: prefix}
}

func (s *ReactionStore) key(messageID, reaction string) string {
	return fmt.Sprintf("%s:msg:%s:reaction:%s", s.prefix, messageID, reaction)
}

func (s *ReactionStore) Add(ctx context.Context, messageID, reaction, userID string) error {
	return s.rdb.SAdd(ctx, s.key(messageID, reaction), userID).Err()
}

func (s *ReactionStore) Remove(ctx context.Context, messageID, reaction, userID string) error {
	return s.rdb.SRem(ctx, s.key(messageID, reaction), userID).Err()
}

// ReadBack returns reaction kind -> user ids for every message that
// has at least one reaction. Messages without reactions are omitted.
func (s *ReactionStore) ReadBack(ctx context.Context, messageIDs []string) (map[string]map[string][]string, error) {
	result := make(map[string]map[string][]string)
	if len(messageIDs) == 0 {
		return result, nil
	}

	for _, messageID := range messageIDs {
		keyPrefix := fmt.Sprintf("%s:msg:%s:reaction:", s.prefix, messageID)
		var keys []string
		iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			continue
		}

		reactions := make(map[string][]string, len(keys))
		for _, key := range keys {
			kind := strings.TrimPrefix(key, keyPrefix)
			members, err := s.rdb.SMembers(ctx, key).Result()
			if err != nil {
				return nil, err
			}
			if len(members) == 0 {
				continue
			}
			reactions[kind] = members
		}
		if len(reactions) > 0 {
			result[messageID] = reactions
		}
	}
	return result, nil
}
