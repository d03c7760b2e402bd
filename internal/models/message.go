package models

import "time"

// Message is the canonical message body. Reactions and Readers are
// derived state merged in at read time; the write-side truth for them
// lives in the reaction and reader indices, never on this record.
type Message struct {
	ID        string              `bson:"_id,omitempty" json:"id"`
	RoomID    string              `bson:"room" json:"roomId"`
	SenderID  string              `bson:"sender,omitempty" json:"senderId,omitempty"`
	Content   string              `bson:"content" json:"content"`
	Type      string              `bson:"type" json:"type"` // text, image, file, system
	Timestamp time.Time           `bson:"timestamp" json:"timestamp"`
	FileID    string              `bson:"file,omitempty" json:"fileId,omitempty"`
	IsDeleted bool                `bson:"isDeleted" json:"-"`
	Metadata  map[string]any      `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Reactions map[string][]string `bson:"reactions,omitempty" json:"reactions,omitempty"`
	Readers   []MessageReader     `bson:"readers,omitempty" json:"readers,omitempty"`
}

// TimestampMillis is the timeline score for this message.
func (m *Message) TimestampMillis() int64 {
	return m.Timestamp.UnixMilli()
}

// MessageReader records that a user has read a message.
type MessageReader struct {
	UserID string    `bson:"userId" json:"userId"`
	ReadAt time.Time `bson:"readAt" json:"readAt"`
}

// MessagePage is one timeline page in the order it was read from the
// index (reverse-chronological). Callers that need display order must
// reverse explicitly.
type MessagePage struct {
	Messages []*Message
	HasMore  bool
}
