package models

// MessageResponse is the enriched view returned to clients: body
// fields plus the resolved sender, the resolved file metadata and the
// merged reaction/reader state.
type MessageResponse struct {
	ID        string              `json:"id"`
	RoomID    string              `json:"roomId"`
	Content   string              `json:"content"`
	Type      string              `json:"type"`
	Timestamp int64               `json:"timestamp"`
	Sender    *User               `json:"sender,omitempty"`
	File      *File               `json:"file,omitempty"`
	Metadata  map[string]any      `json:"metadata,omitempty"`
	Reactions map[string][]string `json:"reactions"`
	Readers   []MessageReader     `json:"readers,omitempty"`
}

type FetchMessagesResponse struct {
	Messages []*MessageResponse `json:"messages"`
	HasMore  bool               `json:"hasMore"`
}
