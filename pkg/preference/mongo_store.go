package preference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore keeps one document per user, keyed by user id. Stored
// documents may be sparse; Get merges them over the store defaults.
type MongoStore struct {
	coll     *mongo.Collection
	defaults Preferences
}

// MongoOption configures a MongoStore.
type MongoOption func(*MongoStore)

// WithStoreDefaults sets the document sparse fields are merged over,
// usually Config.Defaults. Defaults() is used otherwise.
func WithStoreDefaults(p Preferences) MongoOption {
	return func(s *MongoStore) {
		s.defaults = p.Clone()
	}
}

func NewMongoStore(coll *mongo.Collection, opts ...MongoOption) *MongoStore {
	s := &MongoStore{coll: coll, defaults: Defaults()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type mongoDocument struct {
	UserID    string    `bson:"_id"`
	Partial   `bson:",inline"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *MongoStore) Get(ctx context.Context, userID string) (Preferences, error) {
	var doc mongoDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Preferences{}, ErrNotFound
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("find preferences: %w", err)
	}

	return doc.preferences(s.defaults), nil
}

// preferences merges the stored fields over defaults.
func (d mongoDocument) preferences(defaults Preferences) Preferences {
	p := Merge(defaults, d.Partial)
	p.UserID = d.UserID
	p.UpdatedAt = d.UpdatedAt
	return p
}

func (s *MongoStore) Save(ctx context.Context, p Preferences) error {
	if p.UserID == "" {
		return ErrMissingUserID
	}
	doc := mongoDocument{
		UserID:    p.UserID,
		Partial:   p.Full(),
		UpdatedAt: p.UpdatedAt,
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.UserID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
