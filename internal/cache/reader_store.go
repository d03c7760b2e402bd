package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReaderStore keeps read receipts as a hash per message under
// <prefix>:msg:<id>:readers, field = user id, value = epoch millis.
// Re-recording a receipt overwrites the timestamp: last write wins
// per (message, user).
type ReaderStore struct {
	rdb    *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

func NewReaderStore(rdb *redis.Client, prefix string, log *zap.SugaredLogger) *ReaderStore {
	return &ReaderStore{rdb: rdb, prefix: prefix, log: log}
}

func (s *ReaderStore) key(messageID string) string {
	return fmt.Sprintf("%s:msg:%s:readers", s.prefix, messageID)
}

func (s *ReaderStore) Record(ctx context.Context, messageID, userID string, readAt time.Time) error {
	millis := strconv.FormatInt(readAt.UnixMilli(), 10)
	return s.rdb.HSet(ctx, s.key(messageID), userID, millis).Err()
}

// RecordBatch applies the same receipt to every message id. Each
// per-message upsert is idempotent, so a failed batch is safe to
// retry wholesale; the first error aborts and is reported for the
// whole call.
func (s *ReaderStore) RecordBatch(ctx context.Context, messageIDs []string, userID string, readAt time.Time) error {
	for _, messageID := range messageIDs {
		if err := s.Record(ctx, messageID, userID, readAt); err != nil {
			return fmt.Errorf("record receipt for message %s: %w", messageID, err)
		}
	}
	return nil
}

// ReadBack returns user id -> read epoch millis for every message
// with at least one receipt. Messages without receipts are omitted.
func (s *ReaderStore) ReadBack(ctx context.Context, messageIDs []string) (map[string]map[string]int64, error) {
	result := make(map[string]map[string]int64)
	if len(messageIDs) == 0 {
		return result, nil
	}

	for _, messageID := range messageIDs {
		entries, err := s.rdb.HGetAll(ctx, s.key(messageID)).Result()
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			continue
		}

		readers := make(map[string]int64, len(entries))
		for userID, raw := range entries {
			millis, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				s.log.Warnw("bad receipt value", "message", messageID, "user", userID, "value", raw)
				continue
			}
			readers[userID] = millis
		}
		if len(readers) > 0 {
			result[messageID] = readers
		}
	}
	return result, nil
}
