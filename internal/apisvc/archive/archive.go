package archive

import (
	"context"
	"net/url"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "webhook_payloads"

// Mongo keeps raw webhook payloads in a TTL-indexed collection so disputes
// can be investigated after the relational receipt log is purged. Mongo
// expires documents itself via the expires_at index.
type Mongo struct {
	coll      *mongo.Collection
	retention time.Duration
}

// Connect dials MONGODB_URI and ensures the TTL index. Returns nil without
// error when the URI is unset: archiving is optional.
func Connect(retention time.Duration) (*Mongo, error) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		return nil, nil
	}

	uri, err := url.Parse(mongoURI)
	if err != nil {
		return nil, err
	}
	dbName := strings.TrimPrefix(uri.Path, "/")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	coll := client.Database(dbName).Collection(collectionName)

	// expires_at with ExpireAfterSeconds 0: Mongo computes the TTL from the
	// field value itself.
	indexModel := mongo.IndexModel{
		Keys:    bson.M{"expires_at": 1},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, err
	}

	return &Mongo{coll: coll, retention: retention}, nil
}

func (m *Mongo) Archive(ctx context.Context, provider, eventID string, payload []byte) error {
	now := time.Now()
	_, err := m.coll.InsertOne(ctx, bson.M{
		"provider":   provider,
		"event_id":   eventID,
		"payload":    string(payload),
		"created_at": now,
		"expires_at": now.Add(m.retention),
	})
	return err
}
