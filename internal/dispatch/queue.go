package dispatch

import (
	"context"
	"fmt"
	"time"

	"emergency-service/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Queue is the durable delivery queue. Enqueue must complete (or fail
// loudly) before the trigger path continues, so a crash right after trigger
// never silently drops an alert.
type Queue interface {
	Enqueue(ctx context.Context, messages []QueuedAlertMessage) error
	Pending(ctx context.Context, userID string) ([]QueuedAlertMessage, error)
	PendingUsers(ctx context.Context) ([]string, error)
	MarkDelivered(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, at time.Time, nextRetryAt time.Time) (int, error)
	MarkFailed(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, userID string) (map[Status]int, error)
}

type queueRepository struct {
	collection *mongo.Collection
}

func NewQueueRepository(collection *mongo.Collection) Queue {
	_ = EnsureQueueIndexes(context.Background(), collection)
	return &queueRepository{
		collection: collection,
	}
}

func (q *queueRepository) Enqueue(ctx context.Context, messages []QueuedAlertMessage) error {

	if len(messages) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		docs = append(docs, m)
	}

	_, err := q.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("%w: enqueue alerts: %v", storage.ErrUnavailable, err)
	}

	return nil
}

func (q *queueRepository) Pending(ctx context.Context, userID string) ([]QueuedAlertMessage, error) {

	filter := bson.M{
		"user_id": userID,
		"status":  StatusQueued,
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "priority_rank", Value: 1},
		{Key: "created_at", Value: 1},
	})

	cursor, err := q.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: read pending alerts: %v", storage.ErrUnavailable, err)
	}

	var messages []QueuedAlertMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("%w: decode pending alerts: %v", storage.ErrUnavailable, err)
	}

	return messages, nil
}

func (q *queueRepository) PendingUsers(ctx context.Context) ([]string, error) {

	values, err := q.collection.Distinct(ctx, "user_id", bson.M{"status": StatusQueued})
	if err != nil {
		return nil, fmt.Errorf("%w: list pending users: %v", storage.ErrUnavailable, err)
	}

	users := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			users = append(users, s)
		}
	}

	return users, nil
}

func (q *queueRepository) MarkDelivered(ctx context.Context, id string) error {

	_, err := q.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":    StatusDelivered,
			"delivered": true,
		}},
	)
	if err != nil {
		return fmt.Errorf("%w: mark delivered: %v", storage.ErrUnavailable, err)
	}

	return nil
}

func (q *queueRepository) RecordFailure(ctx context.Context, id string, at time.Time, nextRetryAt time.Time) (int, error) {

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg QueuedAlertMessage
	err := q.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{
				"last_attempt_at": at,
				"next_retry_at":   nextRetryAt,
			},
		},
		opts,
	).Decode(&msg)
	if err != nil {
		return 0, fmt.Errorf("%w: record attempt failure: %v", storage.ErrUnavailable, err)
	}

	return msg.Attempts, nil
}

func (q *queueRepository) MarkFailed(ctx context.Context, id string) error {

	_, err := q.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": StatusFailed}},
	)
	if err != nil {
		return fmt.Errorf("%w: mark failed: %v", storage.ErrUnavailable, err)
	}

	return nil
}

func (q *queueRepository) CountByStatus(ctx context.Context, userID string) (map[Status]int, error) {

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"user_id": userID}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := q.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: count alerts: %v", storage.ErrUnavailable, err)
	}

	var rows []struct {
		Status Status `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode alert counts: %v", storage.ErrUnavailable, err)
	}

	counts := make(map[Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

func EnsureQueueIndexes(ctx context.Context, coll *mongo.Collection) error {

	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "priority_rank", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().
				SetName("pending_by_user"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
			},
			Options: options.Index().
				SetName("by_status"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}
