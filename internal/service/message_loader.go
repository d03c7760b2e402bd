package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KTB-loadTest/Team9/internal/models"
)

// MessageArchive is the cold-path message query: slice semantics,
// descending by timestamp, hasMore flag, no total count.
type MessageArchive interface {
	Page(ctx context.Context, roomID string, limit int, before time.Time) (*models.MessagePage, error)
	MarkRead(ctx context.Context, messageIDs []string, userID string) error
}

// MessageLoader serves rooms whose system of record is the durable
// archive rather than the cache. Reaction and reader state live on
// the archived document itself, so no index read-back is needed.
type MessageLoader struct {
	archive   MessageArchive
	users     UserDirectory
	files     FileDirectory
	batchSize int
	log       *zap.SugaredLogger
}

func NewMessageLoader(archive MessageArchive, users UserDirectory, files FileDirectory, batchSize int, log *zap.SugaredLogger) *MessageLoader {
	if batchSize <= 0 {
		batchSize = 30
	}
	return &MessageLoader{archive: archive, users: users, files: files, batchSize: batchSize, log: log}
}

// LoadPage pages the archive, marks the page read for userID through
// the durable path, and enriches senders and files with one batch
// lookup each. A transient failure degrades to an empty page: chat
// clients must keep scrolling, not crash.
func (l *MessageLoader) LoadPage(ctx context.Context, roomID string, limit int, before time.Time, userID string) *models.FetchMessagesResponse {
	if limit <= 0 || limit > l.batchSize {
		limit = l.batchSize
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}

	page, err := l.archive.Page(ctx, roomID, limit, before)
	if err != nil {
		l.log.Errorw("archive page failed", "room", roomID, "err", err)
		return &models.FetchMessagesResponse{Messages: []*models.MessageResponse{}, HasMore: false}
	}
	if len(page.Messages) == 0 {
		return &models.FetchMessagesResponse{Messages: []*models.MessageResponse{}, HasMore: false}
	}

	messageIDs := make([]string, len(page.Messages))
	for i, m := range page.Messages {
		messageIDs[i] = m.ID
	}
	if err := l.archive.MarkRead(ctx, messageIDs, userID); err != nil {
		l.log.Warnw("durable read marking failed", "room", roomID, "user", userID, "err", err)
	}

	senders := map[string]*models.User{}
	if ids := distinct(page.Messages, func(m *models.Message) string { return m.SenderID }); len(ids) > 0 {
		if got, err := l.users.FindAllByID(ctx, ids); err == nil {
			senders = got
		} else {
			l.log.Warnw("sender preload failed", "err", err)
		}
	}
	fileMetas := map[string]*models.File{}
	if ids := distinct(page.Messages, func(m *models.Message) string { return m.FileID }); len(ids) > 0 {
		if got, err := l.files.FindAllByID(ctx, ids); err == nil {
			fileMetas = got
		} else {
			l.log.Warnw("file preload failed", "err", err)
		}
	}

	responses := make([]*models.MessageResponse, 0, len(page.Messages))
	for _, m := range page.Messages {
		resp := &models.MessageResponse{
			ID:        m.ID,
			RoomID:    m.RoomID,
			Content:   m.Content,
			Type:      m.Type,
			Timestamp: m.TimestampMillis(),
			Metadata:  m.Metadata,
			Reactions: map[string][]string{},
			Readers:   m.Readers,
		}
		if m.Reactions != nil {
			resp.Reactions = m.Reactions
		}
		if m.SenderID != "" {
			if sender, ok := senders[m.SenderID]; ok {
				resp.Sender = sender
			}
		}
		if m.FileID != "" {
			if file, ok := fileMetas[m.FileID]; ok {
				resp.File = file
			}
		}
		responses = append(responses, resp)
	}
	return &models.FetchMessagesResponse{Messages: responses, HasMore: page.HasMore}
}
