package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KTB-loadTest/Team9/internal/models"
)

// MessageStore keeps message bodies and the per-room timeline in
// Redis.
//
// Keys:
//   - <prefix>:msg:<id>:body       message JSON
//   - <prefix>:room:<id>:timeline  zset of message ids scored by
//     timestamp millis
//   - <prefix>:file:<id>:message   file id -> message id link
type MessageStore struct {
	rdb    *redis.Client
	prefix string
	log    *zap.SugaredLogger

	// retention > 0 bounds hot-path growth: body keys expire and
	// timeline entries older than the window are trimmed on save.
	retention time.Duration
}

func NewMessageStore(rdb *redis.Client, prefix string, retention time.Duration, log *zap.SugaredLogger) *MessageStore {
	return &MessageStore{rdb: rdb, prefix: prefix, retention: retention, log: log}
}

func (s *MessageStore) bodyKey(messageID string) string {
	return fmt.Sprintf("%s:msg:%s:body", s.prefix, messageID)
}

func (s *MessageStore) timelineKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:timeline", s.prefix, roomID)
}

func (s *MessageStore) fileKey(fileID string) string {
	return fmt.Sprintf("%s:file:%s:message", s.prefix, fileID)
}

// Save stores the message body, records the timeline entry and, when
// the message carries a file, writes the file link. A missing id gets
// a fresh UUID and a missing timestamp gets the current time.
// Concurrent saves of the same id are last-write-wins.
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
	if err := s.rdb.Set(ctx, s.bodyKey(m.ID), body, s.retention).Err(); err != nil {
		return nil, err
	}

	score := float64(m.TimestampMillis())
	tkey := s.timelineKey(m.RoomID)
	if err := s.rdb.ZAdd(ctx, tkey, redis.Z{Score: score, Member: m.ID}).Err(); err != nil {
		return nil, err
	}
	if s.retention > 0 {
		cutoff := time.Now().Add(-s.retention).UnixMilli()
		if err := s.rdb.ZRemRangeByScore(ctx, tkey, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
			s.log.Warnw("timeline trim failed", "room", m.RoomID, "err", err)
		}
	}

	if m.FileID != "" {
		if err := s.rdb.Set(ctx, s.fileKey(m.FileID), m.ID, s.retention).Err(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FindByID returns ErrNotFound on a miss. A body that no longer
// decodes is corruption, not a miss, and is reported as a hard error.
func (s *MessageStore) FindByID(ctx context.Context, messageID string) (*models.Message, error) {
	raw, err := s.rdb.Get(ctx, s.bodyKey(messageID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var m models.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", messageID, err)
	}
	return &m, nil
}

// FindByFileID resolves the file link and then the body. Either step
// missing yields ErrNotFound.
func (s *MessageStore) FindByFileID(ctx context.Context, fileID string) (*models.Message, error) {
	messageID, err := s.rdb.Get(ctx, s.fileKey(fileID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, messageID)
}

// Page returns up to limit messages of the room with timestamp
// strictly before `before`, newest first. It fetches limit+1 timeline
// entries so continuation is detected without a count query. Bodies
// are resolved with a single MGET; ids whose body has already been
// evicted are skipped.
func (s *MessageStore) Page(ctx context.Context, roomID string, limit int, before time.Time) (*models.MessagePage, error) {
	ids, err := s.rdb.ZRevRangeByScore(ctx, s.timelineKey(roomID), &redis.ZRangeBy{
		Max:    fmt.Sprintf("(%d", before.UnixMilli()),
		Min:    "-inf",
		Offset: 0,
		Count:  int64(limit) + 1,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &models.MessagePage{Messages: []*models.Message{}, HasMore: false}, nil
	}

	hasMore := len(ids) > limit
	if hasMore {
		ids = ids[:limit]
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.bodyKey(id)
	}
	raws, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]*models.Message, 0, len(raws))
	for i, raw := range raws {
		if raw == nil {
			s.log.Debugw("timeline entry without body", "room", roomID, "message", ids[i])
			continue
		}
		str, ok := raw.(string)
		if !ok || str == "" {
			continue
		}
		var m models.Message
		if err := json.Unmarshal([]byte(str), &m); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", ids[i], err)
		}
		msgs = append(msgs, &m)
	}
	return &models.MessagePage{Messages: msgs, HasMore: hasMore}, nil
}
