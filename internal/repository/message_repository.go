package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/KTB-loadTest/Team9/internal/models"
)

// MessageRepository is the durable message archive. It serves the
// cold-path page query and is the only core-internal writer of the
// reaction and reader fields on the message document.
type MessageRepository struct {
	coll *mongo.Collection
}

func NewMessageRepository(coll *mongo.Collection) *MessageRepository {
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "room", Value: 1}, {Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("room_timestamp_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), ix)
	return &MessageRepository{coll: coll}
}

func (r *MessageRepository) Insert(ctx context.Context, m *models.Message) (*models.Message, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	filter := bson.M{"_id": m.ID}
	update := bson.M{"$setOnInsert": m}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepository) FindByID(ctx context.Context, messageID string) (*models.Message, error) {
	var m models.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindByFileID resolves the message that references an attachment.
// Used for file permission checks.
func (r *MessageRepository) FindByFileID(ctx context.Context, fileID string) (*models.Message, error) {
	var m models.Message
	if err := r.coll.FindOne(ctx, bson.M{"file": fileID}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Page returns up to limit not-deleted messages of the room with
// timestamp strictly before `before`, newest first, plus a hasMore
// flag. It queries limit+1 documents instead of running a count;
// infinite-scroll paging never needs totals.
func (r *MessageRepository) Page(ctx context.Context, roomID string, limit int, before time.Time) (*models.MessagePage, error) {
	filter := bson.M{
		"room":      roomID,
		"isDeleted": false,
		"timestamp": bson.M{"$lt": before},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit) + 1)

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	msgs := []*models.Message{}
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}
	return &models.MessagePage{Messages: msgs, HasMore: hasMore}, nil
}

// UpdateReactionsAtomic mutates the reaction field for one kind in a
// single findAndModify round trip: $addToSet for add, $pull for
// remove. The store performs the mutation, so a racing read-modify-
// write cannot lose updates. Only the room and reaction fields are
// projected back, and the post-mutation document is returned in the
// same round trip.
func (r *MessageRepository) UpdateReactionsAtomic(ctx context.Context, messageID, reaction, direction, userID string) (*models.Message, error) {
	field := "reactions." + reaction

	var update bson.M
	switch direction {
	case "add":
		update = bson.M{"$addToSet": bson.M{field: userID}}
	case "remove":
		update = bson.M{"$pull": bson.M{field: userID}}
	default:
		return nil, fmt.Errorf("unknown reaction direction %q", direction)
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"room": 1, "reactions": 1})

	var m models.Message
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": messageID}, update, opts).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkRead appends a reader entry to every listed message the user
// has not read yet, in one updateMany. The readers.userId filter
// keeps re-delivered pages from producing duplicate entries.
func (r *MessageRepository) MarkRead(ctx context.Context, messageIDs []string, userID string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	reader := models.MessageReader{UserID: userID, ReadAt: time.Now().UTC()}
	filter := bson.M{
		"_id":            bson.M{"$in": messageIDs},
		"readers.userId": bson.M{"$ne": userID},
	}
	update := bson.M{"$addToSet": bson.M{"readers": reader}}
	_, err := r.coll.UpdateMany(ctx, filter, update)
	return err
}
