package memstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KTB-loadTest/Team9/internal/cache"
	"github.com/KTB-loadTest/Team9/internal/models"
)

func seedRoom(t *testing.T, s *MessageStore, roomID string, n int, start time.Time) []*models.Message {
	t.Helper()
	msgs := make([]*models.Message, 0, n)
	for i := 0; i < n; i++ {
		m, err := s.Save(context.Background(), &models.Message{
			RoomID:    roomID,
			SenderID:  fmt.Sprintf("user-%d", i%3),
			Content:   fmt.Sprintf("message %d", i),
			Type:      "text",
			Timestamp: start.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		msgs = append(msgs, m)
	}
	return msgs
}

func TestSaveGeneratesIDAndTimestamp(t *testing.T) {
	s := NewMessageStore()

	m, err := s.Save(context.Background(), &models.Message{RoomID: "r1", Content: "hi", Type: "text"})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.Timestamp.IsZero())

	got, err := s.FindByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)
}

func TestFindByIDMiss(t *testing.T) {
	s := NewMessageStore()
	_, err := s.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestFileLink(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()

	m, err := s.Save(ctx, &models.Message{RoomID: "r1", Type: "file", FileID: "f1"})
	require.NoError(t, err)

	got, err := s.FindByFileID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = s.FindByFileID(ctx, "f2")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestPageEmptyRoom(t *testing.T) {
	s := NewMessageStore()

	page, err := s.Page(context.Background(), "empty", 30, time.Now())
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)
}

func TestPageExclusiveUpperBound(t *testing.T) {
	s := NewMessageStore()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := seedRoom(t, s, "r1", 3, start)

	// before equal to the newest timestamp must exclude it
	page, err := s.Page(context.Background(), "r1", 10, msgs[2].Timestamp)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, msgs[1].ID, page.Messages[0].ID)
	assert.Equal(t, msgs[0].ID, page.Messages[1].ID)
}

func TestPageHasMore(t *testing.T) {
	s := NewMessageStore()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedRoom(t, s, "r1", 5, start)

	page, err := s.Page(context.Background(), "r1", 3, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, page.Messages, 3)
	assert.True(t, page.HasMore)

	page, err = s.Page(context.Background(), "r1", 5, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, page.Messages, 5)
	assert.False(t, page.HasMore)
}

// Cursor paging with before = timestamp of the last message of the
// previous page must yield every message exactly once, newest first.
func TestPaginationCompleteness(t *testing.T) {
	s := NewMessageStore()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	const n = 23
	seedRoom(t, s, "r1", n, start)

	seen := map[string]int{}
	var order []int64
	before := start.Add(time.Hour)
	pages := 0
	for {
		page, err := s.Page(context.Background(), "r1", 5, before)
		require.NoError(t, err)
		for _, m := range page.Messages {
			seen[m.ID]++
			order = append(order, m.TimestampMillis())
		}
		if !page.HasMore {
			break
		}
		last := page.Messages[len(page.Messages)-1]
		before = last.Timestamp
		pages++
		require.Less(t, pages, 20, "pagination did not terminate")
	}

	assert.Len(t, seen, n)
	for id, count := range seen {
		assert.Equal(t, 1, count, "message %s seen %d times", id, count)
	}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i-1], order[i], "timestamps must strictly descend")
	}
}

func TestSaveSameIDLastWriteWins(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.Save(ctx, &models.Message{ID: "m1", RoomID: "r1", Content: "first", Timestamp: ts})
	require.NoError(t, err)
	_, err = s.Save(ctx, &models.Message{ID: "m1", RoomID: "r1", Content: "second", Timestamp: ts})
	require.NoError(t, err)

	got, err := s.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)

	// the timeline must not grow a duplicate entry
	page, err := s.Page(ctx, "r1", 10, ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, page.Messages, 1)
}
