package guard

import (
	"context"
	"fmt"
	"time"

	"emergency-service/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// HistoryRepository is the attempt ledger: per-user append-only history of
// emergency attempts plus the false-alarm and suspension state.
type HistoryRepository interface {
	GetHistory(ctx context.Context, userID string) (*UserEmergencyHistory, error)
	AppendAttempt(ctx context.Context, userID string, attempt EmergencyAttempt) error
	IncrementFalseAlarm(ctx context.Context, userID string) (int, error)
	SetSuspension(ctx context.Context, userID string, until time.Time) error
	ClearSuspension(ctx context.Context, userID string) error
}

type historyRepository struct {
	collection *mongo.Collection
}

func NewHistoryRepository(collection *mongo.Collection) HistoryRepository {
	_ = EnsureHistoryIndexes(context.Background(), collection)
	return &historyRepository{
		collection: collection,
	}
}

func (r *historyRepository) GetHistory(ctx context.Context, userID string) (*UserEmergencyHistory, error) {

	var history UserEmergencyHistory

	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&history)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// created lazily on first attempt
			return &UserEmergencyHistory{UserID: userID}, nil
		}
		return nil, fmt.Errorf("%w: read history: %v", storage.ErrUnavailable, err)
	}

	return &history, nil
}

func (r *historyRepository) AppendAttempt(ctx context.Context, userID string, attempt EmergencyAttempt) error {

	update := bson.M{
		"$push": bson.M{
			"attempts": bson.M{
				"$each":  bson.A{attempt},
				"$slice": -maxAttemptHistory,
			},
		},
		"$set": bson.M{
			"last_emergency_at": attempt.Timestamp,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update, opts)
	if err != nil {
		return fmt.Errorf("%w: append attempt: %v", storage.ErrUnavailable, err)
	}

	return nil
}

func (r *historyRepository) IncrementFalseAlarm(ctx context.Context, userID string) (int, error) {

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var history UserEmergencyHistory
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$inc": bson.M{"false_alarm_count": 1}},
		opts,
	).Decode(&history)
	if err != nil {
		return 0, fmt.Errorf("%w: increment false alarm: %v", storage.ErrUnavailable, err)
	}

	return history.FalseAlarmCount, nil
}

func (r *historyRepository) SetSuspension(ctx context.Context, userID string, until time.Time) error {

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"suspended":          true,
			"suspension_ends_at": until,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%w: set suspension: %v", storage.ErrUnavailable, err)
	}

	return nil
}

func (r *historyRepository) ClearSuspension(ctx context.Context, userID string) error {

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":   bson.M{"suspended": false},
			"$unset": bson.M{"suspension_ends_at": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("%w: clear suspension: %v", storage.ErrUnavailable, err)
	}

	return nil
}

func EnsureHistoryIndexes(ctx context.Context, coll *mongo.Collection) error {

	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "suspended", Value: 1},
				{Key: "suspension_ends_at", Value: 1},
			},
			Options: options.Index().
				SetName("by_suspension"),
		},
		{
			Keys: bson.D{
				{Key: "last_emergency_at", Value: -1},
			},
			Options: options.Index().
				SetName("by_last_emergency"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}
