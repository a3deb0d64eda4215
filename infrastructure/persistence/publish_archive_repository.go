package persistence

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"newshub/domain/model"
)

// PublishArchiveRepository stores raw platform API payloads in MongoDB so the
// relational error_details column can stay small. Optional; callers must treat
// a nil repository as "archiving disabled".
type PublishArchiveRepository struct {
	collection *mongo.Collection
}

func NewPublishArchiveRepository(client *mongo.Client, database string) *PublishArchiveRepository {
	if client == nil {
		return nil
	}
	return &PublishArchiveRepository{
		collection: client.Database(database).Collection("publish_outcomes"),
	}
}

func (r *PublishArchiveRepository) ArchiveOutcome(ctx context.Context, attemptID int64, platform model.Platform, payload map[string]interface{}) error {
	if r == nil {
		return nil
	}
	doc := bson.M{
		"attempt_id":  attemptID,
		"platform":    string(platform),
		"payload":     payload,
		"archived_at": time.Now().UTC(),
	}
	_, err := r.collection.InsertOne(ctx, doc)
	return err
}
