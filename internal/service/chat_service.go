package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/KTB-loadTest/Team9/internal/metrics"
	"github.com/KTB-loadTest/Team9/internal/models"
)

// ChatService assembles enriched message pages from the hot-path
// stores and owns the cache-side write paths. It orchestrates but
// holds no state of its own; every underlying mutation is idempotent,
// so there is no cross-store transaction.
type ChatService struct {
	messages  MessageStore
	reactions ReactionStore
	readers   ReaderStore
	users     UserDirectory
	files     FileDirectory
	selector  MutatorSelector
	publisher EventPublisher // optional
	breaker   *gobreaker.CircuitBreaker
	batchSize int
	log       *zap.SugaredLogger
}

func NewChatService(
	messages MessageStore,
	reactions ReactionStore,
	readers ReaderStore,
	users UserDirectory,
	files FileDirectory,
	selector MutatorSelector,
	publisher EventPublisher,
	batchSize int,
	log *zap.SugaredLogger,
) *ChatService {
	if batchSize <= 0 {
		batchSize = 30
	}
	return &ChatService{
		messages:  messages,
		reactions: reactions,
		readers:   readers,
		users:     users,
		files:     files,
		selector:  selector,
		publisher: publisher,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "reader-store",
			Timeout: 30 * time.Second,
		}),
		batchSize: batchSize,
		log:       log,
	}
}

// LoadPage returns one timeline page of the room, enriched with
// senders, file metadata, reactions and readers, and records a read
// receipt for every returned message attributed to userID. The
// returned order is the timeline order (reverse-chronological);
// callers needing display order reverse explicitly.
//
// The timeline+body fetch is mandatory and its failure fails the
// request. Enrichment lookups degrade: a page with missing sender or
// reaction metadata is better than no page.
func (s *ChatService) LoadPage(ctx context.Context, roomID string, limit int, before time.Time, userID string) (*models.FetchMessagesResponse, error) {
	if limit <= 0 || limit > s.batchSize {
		limit = s.batchSize
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}

	page, err := s.messages.Page(ctx, roomID, limit, before)
	if err != nil {
		return nil, err
	}
	if len(page.Messages) == 0 {
		// nothing to enrich; skip every batch lookup
		return &models.FetchMessagesResponse{Messages: []*models.MessageResponse{}, HasMore: false}, nil
	}

	messageIDs := make([]string, len(page.Messages))
	for i, m := range page.Messages {
		messageIDs[i] = m.ID
	}

	senders, fileMetas := s.preload(ctx, page.Messages)

	// receipts first so the requester shows up in the reader state
	// read back below
	if err := s.readers.RecordBatch(ctx, messageIDs, userID, time.Now().UTC()); err != nil {
		s.log.Warnw("receipt recording failed for page", "room", roomID, "user", userID, "err", err)
	}

	reactionsByID, err := s.reactions.ReadBack(ctx, messageIDs)
	if err != nil {
		s.log.Warnw("reaction read-back failed", "room", roomID, "err", err)
		reactionsByID = map[string]map[string][]string{}
	}
	readersByID, err := s.readers.ReadBack(ctx, messageIDs)
	if err != nil {
		s.log.Warnw("reader read-back failed", "room", roomID, "err", err)
		readersByID = map[string]map[string]int64{}
	}

	responses := make([]*models.MessageResponse, 0, len(page.Messages))
	for _, m := range page.Messages {
		responses = append(responses, buildResponse(m, senders, fileMetas, reactionsByID, readersByID))
	}

	metrics.PagesServed.Inc()
	s.log.Debugw("page loaded",
		"room", roomID, "limit", limit, "count", len(responses), "hasMore", page.HasMore)
	return &models.FetchMessagesResponse{Messages: responses, HasMore: page.HasMore}, nil
}

// preload batch-resolves the distinct sender and file ids of a page,
// one directory call each regardless of page size. The two lookups
// are independent and run concurrently. Failures degrade to empty
// maps.
func (s *ChatService) preload(ctx context.Context, msgs []*models.Message) (map[string]*models.User, map[string]*models.File) {
	senderIDs := distinct(msgs, func(m *models.Message) string { return m.SenderID })
	fileIDs := distinct(msgs, func(m *models.Message) string { return m.FileID })

	senders := map[string]*models.User{}
	fileMetas := map[string]*models.File{}

	var wg sync.WaitGroup
	if len(senderIDs) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.users.FindAllByID(ctx, senderIDs)
			if err != nil {
				s.log.Warnw("sender preload failed", "err", err)
				return
			}
			senders = got
		}()
	}
	if len(fileIDs) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.files.FindAllByID(ctx, fileIDs)
			if err != nil {
				s.log.Warnw("file preload failed", "err", err)
				return
			}
			fileMetas = got
		}()
	}
	wg.Wait()
	return senders, fileMetas
}

func distinct(msgs []*models.Message, key func(*models.Message) string) []string {
	seen := make(map[string]struct{}, len(msgs))
	var out []string
	for _, m := range msgs {
		k := key(m)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func buildResponse(
	m *models.Message,
	senders map[string]*models.User,
	files map[string]*models.File,
	reactionsByID map[string]map[string][]string,
	readersByID map[string]map[string]int64,
) *models.MessageResponse {
	resp := &models.MessageResponse{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Content:   m.Content,
		Type:      m.Type,
		Timestamp: m.TimestampMillis(),
		Metadata:  m.Metadata,
		Reactions: map[string][]string{},
	}

	if m.SenderID != "" {
		if sender, ok := senders[m.SenderID]; ok {
			resp.Sender = sender
		}
	}
	if m.FileID != "" {
		if file, ok := files[m.FileID]; ok {
			resp.File = file
		}
	}
	if reactions, ok := reactionsByID[m.ID]; ok {
		resp.Reactions = reactions
	}
	if readers, ok := readersByID[m.ID]; ok {
		resp.Readers = toReaderList(readers)
	}
	return resp
}

// toReaderList converts the raw user->millis mapping into ordered
// (userId, readAt) pairs, earliest read first.
func toReaderList(readers map[string]int64) []models.MessageReader {
	out := make([]models.MessageReader, 0, len(readers))
	for userID, millis := range readers {
		out = append(out, models.MessageReader{
			UserID: userID,
			ReadAt: time.UnixMilli(millis).UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReadAt.Equal(out[j].ReadAt) {
			return out[i].ReadAt.Before(out[j].ReadAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// RecordMessage is the sole write path for new messages entering the
// cache.
func (s *ChatService) RecordMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	saved, err := s.messages.Save(ctx, m)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		if err := s.publisher.MessageSaved(ctx, saved); err != nil {
			s.log.Warnw("message event publish failed", "message", saved.ID, "err", err)
		}
	}
	return saved, nil
}

// ToggleReaction routes the mutation to the room's configured path
// and returns the message with its post-mutation reaction map.
// Unknown directions are rejected before any state changes.
func (s *ChatService) ToggleReaction(ctx context.Context, roomID, messageID, reaction, direction, userID string) (*models.Message, error) {
	mutator := s.selector.Mutator(roomID)
	msg, err := mutator.Toggle(ctx, messageID, reaction, direction, userID)
	if err != nil {
		return nil, err
	}

	path := "cache"
	if _, ok := mutator.(*DocumentReactionMutator); ok {
		path = "document"
	}
	metrics.ReactionOps.WithLabelValues(direction, path).Inc()

	if s.publisher != nil {
		if err := s.publisher.ReactionUpdated(ctx, msg); err != nil {
			s.log.Warnw("reaction event publish failed", "message", messageID, "err", err)
		}
	}
	return msg, nil
}

// RecordRead records the receipts on the fast path and reports
// success as a boolean: a false return tells the caller to persist
// receipts through the durable path instead. The breaker keeps a
// down cache from being hammered by every page delivery.
func (s *ChatService) RecordRead(ctx context.Context, messageIDs []string, userID string) bool {
	if len(messageIDs) == 0 || userID == "" {
		return false
	}

	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.readers.RecordBatch(ctx, messageIDs, userID, time.Now().UTC())
	})
	if err != nil {
		metrics.ReceiptFallbacks.Inc()
		s.log.Warnw("read receipt batch failed", "user", userID, "count", len(messageIDs), "err", err)
		return false
	}
	return true
}

// FindMessageByFileID serves file permission checks: it resolves the
// message that references the attachment, or ErrMessageNotFound.
func (s *ChatService) FindMessageByFileID(ctx context.Context, fileID string) (*models.Message, error) {
	msg, err := s.messages.FindByFileID(ctx, fileID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return msg, nil
}
