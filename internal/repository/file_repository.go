package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/KTB-loadTest/Team9/internal/models"
)

type FileRepository struct {
	coll *mongo.Collection
}

func NewFileRepository(coll *mongo.Collection) *FileRepository {
	return &FileRepository{coll: coll}
}

// FindAllByID batch-resolves file metadata by id; unknown ids are
// omitted.
func (r *FileRepository) FindAllByID(ctx context.Context, ids []string) (map[string]*models.File, error) {
	result := make(map[string]*models.File, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var f models.File
		if err := cur.Decode(&f); err != nil {
			return nil, err
		}
		result[f.ID] = &f
	}
	return result, cur.Err()
}
