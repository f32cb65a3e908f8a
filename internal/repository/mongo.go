package repository

import (
	"context"
	"labbroker/pkg/config"
	mongotx "labbroker/pkg/db/mongo"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ResourceCollectionName = "resources"
	BookingCollectionName  = "bookings"
)

// caseInsensitive matches the collation of the unique name index.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

type mongoStore struct {
	resources *mongoResourceRepository
	bookings  *mongoBookingRepository
	txManager mongotx.TransactionManager
}

func NewMongoStore(cfg *config.Config) Store {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStore{
		resources: &mongoResourceRepository{cfg: cfg, collection: db.Collection(ResourceCollectionName)},
		bookings:  &mongoBookingRepository{cfg: cfg, collection: db.Collection(BookingCollectionName)},
		txManager: mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (s *mongoStore) Resources() ResourceRepository {
	return s.resources
}

func (s *mongoStore) Bookings() BookingRepository {
	return s.bookings
}

func (s *mongoStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return s.txManager.ExecuteTransaction(ctx, fn)
}

// withTimeout bounds a single operation. Inside a transaction the session
// context is returned as is; wrapping it would detach the session.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}
