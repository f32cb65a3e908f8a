package agent

import (
	"context"
	"errors"
	"fmt"

	"labbroker/internal/availability"
	interrors "labbroker/internal/errors"
	"labbroker/internal/repository"
	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/model"
)

// ResourceAgent answers for one resource. It holds only the resource id;
// every answer is computed from a fresh snapshot.
type ResourceAgent struct {
	resource *model.Resource
	store    repository.Store
}

func New(resource *model.Resource, store repository.Store) *ResourceAgent {
	return &ResourceAgent{resource: resource, store: store}
}

// Resource returns the catalog entry the agent was created from.
func (a *ResourceAgent) Resource() *model.Resource {
	return a.resource
}

func (a *ResourceAgent) Name() string {
	return a.resource.Name
}

// Snapshot re-reads the resource and its bookings.
func (a *ResourceAgent) Snapshot(ctx context.Context) (*model.Resource, []*model.Booking, error) {
	return Snapshot(ctx, a.store, a.resource.ID)
}

// Check evaluates interval against a fresh snapshot of the resource.
func (a *ResourceAgent) Check(ctx context.Context, interval model.Interval, studentCount int) (availability.Result, *model.Resource, error) {
	resource, bookings, err := a.Snapshot(ctx)
	if err != nil {
		return availability.Result{}, nil, err
	}
	return availability.Check(resource, interval, studentCount, bookings), resource, nil
}

// Snapshot loads a resource and its bookings through store. It is shared by
// every component that must re-fetch before deciding.
func Snapshot(ctx context.Context, store repository.Store, resourceID string) (*model.Resource, []*model.Booking, error) {
	resource, err := store.Resources().FindByID(ctx, resourceID)
	if err != nil {
		return nil, nil, mapNotFound(err, "Resource", resourceID)
	}
	bookings, err := store.Bookings().FindByResource(ctx, resourceID)
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to load bookings", err)
	}
	return resource, bookings, nil
}

func mapNotFound(err error, kind, id string) error {
	switch {
	case errors.Is(err, interrors.ErrNotFound):
		return apperrors.NotFoundWithID(kind, id)
	case errors.Is(err, interrors.ErrInvalidID):
		return apperrors.InvalidInput(fmt.Sprintf("Invalid %s ID format", kind))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperrors.Internal(fmt.Sprintf("Failed to load %s", kind), err)
	}
}
