package profile

import (
	"context"
	"fmt"
	"time"

	"emergency-service/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// sealedProfile is what actually lands in mongo: the profile payload is an
// opaque encrypted blob, never stored in the clear.
type sealedProfile struct {
	UserID     string             `bson:"_id"`
	Payload    primitive.Binary   `bson:"payload"`
	CapturedAt time.Time          `bson:"captured_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

type Store interface {
	Put(ctx context.Context, userID string, payload []byte, capturedAt time.Time) error
	Get(ctx context.Context, userID string) ([]byte, error)
}

type mongoStore struct {
	collection *mongo.Collection
}

func NewStore(collection *mongo.Collection) Store {
	return &mongoStore{
		collection: collection,
	}
}

func (s *mongoStore) Put(ctx context.Context, userID string, payload []byte, capturedAt time.Time) error {

	doc := sealedProfile{
		UserID:     userID,
		Payload:    primitive.Binary{Data: payload},
		CapturedAt: capturedAt,
		UpdatedAt:  time.Now(),
	}

	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": userID}, doc, opts)
	if err != nil {
		return fmt.Errorf("%w: put profile: %v", storage.ErrUnavailable, err)
	}

	return nil
}

func (s *mongoStore) Get(ctx context.Context, userID string) ([]byte, error) {

	var sealed sealedProfile

	err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&sealed)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get profile: %v", storage.ErrUnavailable, err)
	}

	return sealed.Payload.Data, nil
}
