package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"labbroker/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "resource_locks"

type lockDocument struct {
	ID        string    `bson:"_id"`
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoLocker is an advisory lock backed by unique _id inserts. Expired
// documents are taken over by the next contender; a TTL index on
// expires_at removes abandoned ones.
type MongoLocker struct {
	collection *mongo.Collection
	ttl        time.Duration
	retry      time.Duration
	log        *logger.Logger
}

func NewMongoLocker(db *mongo.Database, ttl, retry time.Duration, log *logger.Logger) *MongoLocker {
	return &MongoLocker{
		collection: db.Collection(LockCollectionName),
		ttl:        ttl,
		retry:      retry,
		log:        log,
	}
}

func (l *MongoLocker) Lock(ctx context.Context, key string) (Release, error) {
	token := uuid.New().String()
	for {
		now := time.Now().UTC()
		_, err := l.collection.InsertOne(ctx, lockDocument{
			ID:        key,
			Token:     token,
			ExpiresAt: now.Add(l.ttl),
			CreatedAt: now,
		})
		if err == nil {
			return l.release(key, token), nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		// Holder may have died without releasing.
		if _, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lt": now}}); err != nil {
			l.log.Warn("Failed to clear expired lock", "key", key, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, heldError(key, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}

func (l *MongoLocker) release(key, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl)
			defer cancel()
			if _, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "token": token}); err != nil {
				l.log.Warn("Failed to release lock", "key", key, "error", err)
			}
		})
	}
}
