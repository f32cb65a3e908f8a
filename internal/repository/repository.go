package repository

import (
	"context"
	mongotx "labbroker/pkg/db/mongo"
	"labbroker/pkg/model"
	"time"
)

type ResourceRepository interface {
	Create(ctx context.Context, resource *model.Resource) error
	FindByID(ctx context.Context, id string) (*model.Resource, error)
	// FindByName matches case-insensitively.
	FindByName(ctx context.Context, name string) (*model.Resource, error)
	FindAll(ctx context.Context) ([]*model.Resource, error)
	Update(ctx context.Context, id string, resource *model.Resource) error
	Delete(ctx context.Context, id string) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// FindByResource returns the resource's bookings ordered by start.
	FindByResource(ctx context.Context, resourceID string) ([]*model.Booking, error)
	// FindInRange returns bookings overlapping [from, to) ordered by start.
	FindInRange(ctx context.Context, from, to time.Time) ([]*model.Booking, error)
	UpdateInterval(ctx context.Context, id string, interval model.Interval) error
	UpdateStudentCount(ctx context.Context, id string, studentCount int) error
	Delete(ctx context.Context, id string) error
	DeleteByResource(ctx context.Context, resourceID string) (int64, error)
}

// Store groups the repositories that share a transaction boundary.
type Store interface {
	Resources() ResourceRepository
	Bookings() BookingRepository
	// ExecuteTransaction runs fn atomically. Repository calls inside fn must
	// use the ctx fn receives.
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}
