package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KTB-loadTest/Team9/internal/memstore"
	"github.com/KTB-loadTest/Team9/internal/models"
)

type countingUserDir struct {
	users map[string]*models.User
	calls atomic.Int64
}

func (d *countingUserDir) FindAllByID(ctx context.Context, ids []string) (map[string]*models.User, error) {
	d.calls.Add(1)
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type countingFileDir struct {
	files map[string]*models.File
	calls atomic.Int64
}

func (d *countingFileDir) FindAllByID(ctx context.Context, ids []string) (map[string]*models.File, error) {
	d.calls.Add(1)
	out := make(map[string]*models.File, len(ids))
	for _, id := range ids {
		if f, ok := d.files[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

type countingReaderStore struct {
	*memstore.ReaderStore
	recordCalls atomic.Int64
}

func (s *countingReaderStore) RecordBatch(ctx context.Context, ids []string, userID string, readAt time.Time) error {
	s.recordCalls.Add(1)
	return s.ReaderStore.RecordBatch(ctx, ids, userID, readAt)
}

type downReaderStore struct{ recorded atomic.Int64 }

func (s *downReaderStore) Record(context.Context, string, string, time.Time) error {
	return errors.New("connection refused")
}

func (s *downReaderStore) RecordBatch(context.Context, []string, string, time.Time) error {
	return errors.New("connection refused")
}

func (s *downReaderStore) ReadBack(context.Context, []string) (map[string]map[string]int64, error) {
	return nil, errors.New("connection refused")
}

type failingReactionStore struct{}

func (failingReactionStore) Add(context.Context, string, string, string) error    { return errors.New("down") }
func (failingReactionStore) Remove(context.Context, string, string, string) error { return errors.New("down") }
func (failingReactionStore) ReadBack(context.Context, []string) (map[string]map[string][]string, error) {
	return nil, errors.New("down")
}

type fixture struct {
	svc       *ChatService
	messages  *memstore.MessageStore
	reactions *memstore.ReactionStore
	readers   *countingReaderStore
	users     *countingUserDir
	files     *countingFileDir
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		messages:  memstore.NewMessageStore(),
		reactions: memstore.NewReactionStore(),
		readers:   &countingReaderStore{ReaderStore: memstore.NewReaderStore()},
		users: &countingUserDir{users: map[string]*models.User{
			"u1": {ID: "u1", Name: "Alice"},
			"u2": {ID: "u2", Name: "Bob"},
		}},
		files: &countingFileDir{files: map[string]*models.File{
			"f1": {ID: "f1", Filename: "photo.png", MimeType: "image/png"},
		}},
	}
	f.svc = NewChatService(
		f.messages, f.reactions, f.readers,
		f.users, f.files,
		StaticSelector{M: NewCacheReactionMutator(f.messages, f.reactions)},
		nil, 30, zap.NewNop().Sugar(),
	)
	return f
}

func (f *fixture) seed(t *testing.T, roomID string, n int, start time.Time) []*models.Message {
	t.Helper()
	msgs := make([]*models.Message, 0, n)
	for i := 0; i < n; i++ {
		m := &models.Message{
			RoomID:    roomID,
			SenderID:  fmt.Sprintf("u%d", i%2+1),
			Content:   fmt.Sprintf("msg %d", i),
			Type:      "text",
			Timestamp: start.Add(time.Duration(i) * time.Second),
		}
		saved, err := f.messages.Save(context.Background(), m)
		require.NoError(t, err)
		msgs = append(msgs, saved)
	}
	return msgs
}

func TestLoadPageEmptyRoomShortCircuits(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.LoadPage(context.Background(), "empty", 30, time.Now(), "u1")
	require.NoError(t, err)
	assert.Empty(t, resp.Messages)
	assert.False(t, resp.HasMore)

	assert.EqualValues(t, 0, f.users.calls.Load(), "no sender lookup for an empty page")
	assert.EqualValues(t, 0, f.files.calls.Load(), "no file lookup for an empty page")
	assert.EqualValues(t, 0, f.readers.recordCalls.Load(), "no receipts for an empty page")
}

func TestLoadPageBatchesCollaboratorLookups(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.seed(t, "r1", 10, start)
	_, err := f.messages.Save(context.Background(), &models.Message{
		RoomID: "r1", SenderID: "u1", Type: "file", FileID: "f1",
		Timestamp: start.Add(time.Minute),
	})
	require.NoError(t, err)

	resp, err := f.svc.LoadPage(context.Background(), "r1", 30, start.Add(time.Hour), "u2")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 11)

	assert.EqualValues(t, 1, f.users.calls.Load(), "one batched sender lookup per page")
	assert.EqualValues(t, 1, f.files.calls.Load(), "one batched file lookup per page")
	assert.EqualValues(t, 1, f.readers.recordCalls.Load(), "one batched receipt write per page")

	// newest first, enriched
	first := resp.Messages[0]
	assert.Equal(t, "f1", first.File.ID)
	require.NotNil(t, first.Sender)
	assert.Equal(t, "Alice", first.Sender.Name)
}

func TestLoadPageRecordsReceiptsForRequester(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.seed(t, "r1", 3, start)

	resp, err := f.svc.LoadPage(context.Background(), "r1", 30, start.Add(time.Hour), "reader-1")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 3)

	for _, m := range resp.Messages {
		var found bool
		for _, r := range m.Readers {
			if r.UserID == "reader-1" {
				found = true
			}
		}
		assert.True(t, found, "requester must appear as reader of %s", m.ID)
	}
}

func TestLoadPageUnknownSenderOmitted(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.messages.Save(context.Background(), &models.Message{
		RoomID: "r1", SenderID: "ghost", Content: "boo", Type: "text", Timestamp: start,
	})
	require.NoError(t, err)

	resp, err := f.svc.LoadPage(context.Background(), "r1", 30, start.Add(time.Hour), "u1")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Nil(t, resp.Messages[0].Sender)
	assert.NotNil(t, resp.Messages[0].Reactions, "reaction map defaults to empty, not nil")
}

func TestLoadPageClampsLimit(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.seed(t, "r1", 40, start)

	resp, err := f.svc.LoadPage(context.Background(), "r1", 0, start.Add(time.Hour), "u1")
	require.NoError(t, err)
	assert.Len(t, resp.Messages, 30)
	assert.True(t, resp.HasMore)

	resp, err = f.svc.LoadPage(context.Background(), "r1", 500, start.Add(time.Hour), "u1")
	require.NoError(t, err)
	assert.Len(t, resp.Messages, 30)
}

func TestLoadPageDegradesWhenReactionIndexDown(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.seed(t, "r1", 2, start)

	svc := NewChatService(
		f.messages, failingReactionStore{}, f.readers,
		f.users, f.files,
		StaticSelector{M: NewCacheReactionMutator(f.messages, f.reactions)},
		nil, 30, zap.NewNop().Sugar(),
	)

	resp, err := svc.LoadPage(context.Background(), "r1", 30, start.Add(time.Hour), "u1")
	require.NoError(t, err, "metadata failure must not fail the page")
	require.Len(t, resp.Messages, 2)
	for _, m := range resp.Messages {
		assert.Empty(t, m.Reactions)
	}
}

func TestToggleReactionAddAndRemove(t *testing.T) {
	f := newFixture(t)
	m, err := f.messages.Save(context.Background(), &models.Message{RoomID: "r1", Content: "hi", Type: "text"})
	require.NoError(t, err)

	got, err := f.svc.ToggleReaction(context.Background(), "r1", m.ID, "like", DirectionAdd, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1"}, got.Reactions["like"])

	got, err = f.svc.ToggleReaction(context.Background(), "r1", m.ID, "like", DirectionRemove, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Reactions)
}

func TestToggleReactionBadDirectionMutatesNothing(t *testing.T) {
	f := newFixture(t)
	m, err := f.messages.Save(context.Background(), &models.Message{RoomID: "r1", Content: "hi", Type: "text"})
	require.NoError(t, err)

	_, err = f.svc.ToggleReaction(context.Background(), "r1", m.ID, "like", "toggle", "u1")
	assert.ErrorIs(t, err, ErrBadDirection)

	out, err := f.reactions.ReadBack(context.Background(), []string{m.ID})
	require.NoError(t, err)
	assert.Empty(t, out, "rejected direction must not leave partial state")
}

func TestToggleReactionMissingMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ToggleReaction(context.Background(), "r1", "nope", "like", DirectionAdd, "u1")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestRecordReadSuccess(t *testing.T) {
	f := newFixture(t)

	ok := f.svc.RecordRead(context.Background(), []string{"m1", "m2"}, "u1")
	assert.True(t, ok)

	out, err := f.readers.ReadBack(context.Background(), []string{"m1", "m2"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestRecordReadEmptyInputRejected(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.svc.RecordRead(context.Background(), nil, "u1"))
	assert.False(t, f.svc.RecordRead(context.Background(), []string{"m1"}, ""))
}

func TestRecordReadReportsFailureWithoutPartialWrite(t *testing.T) {
	f := newFixture(t)
	down := &downReaderStore{}
	svc := NewChatService(
		f.messages, f.reactions, down,
		f.users, f.files,
		StaticSelector{M: NewCacheReactionMutator(f.messages, f.reactions)},
		nil, 30, zap.NewNop().Sugar(),
	)

	ok := svc.RecordRead(context.Background(), []string{"m1", "m2", "m3"}, "u1")
	assert.False(t, ok, "unavailable store reports failure, not a panic or error")
	assert.EqualValues(t, 0, down.recorded.Load())
}

func TestFindMessageByFileID(t *testing.T) {
	f := newFixture(t)
	m, err := f.messages.Save(context.Background(), &models.Message{RoomID: "r1", Type: "file", FileID: "f1"})
	require.NoError(t, err)

	got, err := f.svc.FindMessageByFileID(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = f.svc.FindMessageByFileID(context.Background(), "unlinked")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}
