package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/KTB-loadTest/Team9/internal/config"
	"github.com/KTB-loadTest/Team9/internal/models"
)

// Publisher emits chat events for downstream consumers (search
// indexing, push, analytics). Publishing is best effort; the hot path
// never fails a request because an event could not be written.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(cfg *config.Config) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w}
}

type messageSavedEvent struct {
	Event     string `json:"event"`
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
	SenderID  string `json:"senderId"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type reactionUpdatedEvent struct {
	Event     string              `json:"event"`
	MessageID string              `json:"messageId"`
	RoomID    string              `json:"roomId"`
	Reactions map[string][]string `json:"reactions"`
}

func (p *Publisher) MessageSaved(ctx context.Context, m *models.Message) error {
	return p.publish(ctx, m.RoomID, messageSavedEvent{
		Event:     "messageSaved",
		MessageID: m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Type:      m.Type,
		Timestamp: m.TimestampMillis(),
	})
}

func (p *Publisher) ReactionUpdated(ctx context.Context, m *models.Message) error {
	return p.publish(ctx, m.RoomID, reactionUpdatedEvent{
		Event:     "reactionUpdated",
		MessageID: m.ID,
		RoomID:    m.RoomID,
		Reactions: m.Reactions,
	})
}

func (p *Publisher) publish(ctx context.Context, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Publisher) Close() error { return p.writer.Close() }
