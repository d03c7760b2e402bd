package service

import (
	"context"
	"time"

	"github.com/KTB-loadTest/Team9/internal/models"
)

// MessageStore is the hot-path body cache plus timeline index.
type MessageStore interface {
	Save(ctx context.Context, m *models.Message) (*models.Message, error)
	FindByID(ctx context.Context, messageID string) (*models.Message, error)
	FindByFileID(ctx context.Context, fileID string) (*models.Message, error)
	Page(ctx context.Context, roomID string, limit int, before time.Time) (*models.MessagePage, error)
}

// ReactionStore is the hot-path reaction membership index.
type ReactionStore interface {
	Add(ctx context.Context, messageID, reaction, userID string) error
	Remove(ctx context.Context, messageID, reaction, userID string) error
	ReadBack(ctx context.Context, messageIDs []string) (map[string]map[string][]string, error)
}

// ReaderStore is the hot-path read-receipt index.
type ReaderStore interface {
	Record(ctx context.Context, messageID, userID string, readAt time.Time) error
	RecordBatch(ctx context.Context, messageIDs []string, userID string, readAt time.Time) error
	ReadBack(ctx context.Context, messageIDs []string) (map[string]map[string]int64, error)
}

// UserDirectory batch-resolves users; unknown ids are omitted.
type UserDirectory interface {
	FindAllByID(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// FileDirectory batch-resolves file metadata; unknown ids are omitted.
type FileDirectory interface {
	FindAllByID(ctx context.Context, ids []string) (map[string]*models.File, error)
}

// DocumentMutator is the durable store's atomic reaction mutation.
type DocumentMutator interface {
	UpdateReactionsAtomic(ctx context.Context, messageID, reaction, direction, userID string) (*models.Message, error)
}

// EventPublisher emits chat events, best effort.
type EventPublisher interface {
	MessageSaved(ctx context.Context, m *models.Message) error
	ReactionUpdated(ctx context.Context, m *models.Message) error
}
