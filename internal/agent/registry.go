package agent

import (
	"context"
	"errors"

	interrors "labbroker/internal/errors"
	"labbroker/internal/lock"
	"labbroker/internal/repository"
	"labbroker/internal/validator"
	"labbroker/pkg/config"
	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/model"
	"labbroker/pkg/sanitizer"
)

// Registry builds agents from the catalog. It re-reads the catalog on every
// call so resources added or removed by an admin are seen immediately.
type Registry struct {
	store     repository.Store
	locker    lock.Locker
	validator *validator.Validator
	cfg       *config.Config
}

func NewRegistry(store repository.Store, locker lock.Locker, v *validator.Validator, cfg *config.Config) *Registry {
	return &Registry{
		store:     store,
		locker:    locker,
		validator: v,
		cfg:       cfg,
	}
}

func (r *Registry) Agents(ctx context.Context) ([]*ResourceAgent, error) {
	resources, err := r.store.Resources().FindAll(ctx)
	if err != nil {
		r.cfg.Log.Error("Failed to list resources", "error", err)
		return nil, apperrors.Internal("Failed to list resources", err)
	}
	agents := make([]*ResourceAgent, 0, len(resources))
	for _, res := range resources {
		agents = append(agents, New(res, r.store))
	}
	return agents, nil
}

func (r *Registry) ByName(ctx context.Context, name string) (*ResourceAgent, error) {
	res, err := r.store.Resources().FindByName(ctx, name)
	if err != nil {
		return nil, mapNotFound(err, "Resource", name)
	}
	return New(res, r.store), nil
}

func (r *Registry) Resources(ctx context.Context) ([]*model.Resource, error) {
	resources, err := r.store.Resources().FindAll(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to list resources", err)
	}
	return resources, nil
}

func (r *Registry) CreateResource(ctx context.Context, actor model.Requester, resource *model.Resource) error {
	if err := requireAdmin(actor, "create"); err != nil {
		return err
	}
	sanitizer.Resource(resource)
	if err := r.validate(resource); err != nil {
		return err
	}
	if err := r.store.Resources().Create(ctx, resource); err != nil {
		return mapWriteError(err, resource.Name)
	}
	r.cfg.Log.Info("Resource created",
		"id", resource.ID,
		"name", resource.Name,
		"capacity", resource.Capacity,
		"actor", actor.Username,
	)
	return nil
}

// UpdateResource merges update into the stored resource under the
// resource lock so it cannot interleave with a commit.
func (r *Registry) UpdateResource(ctx context.Context, actor model.Requester, id string, update *model.ResourceUpdate) (*model.Resource, error) {
	if err := requireAdmin(actor, "update"); err != nil {
		return nil, err
	}
	sanitizer.ResourceUpdate(update)
	if err := r.validator.ValidateResourceUpdate(update); err != nil {
		return nil, validationError("Invalid resource update", err)
	}

	release, err := r.locker.Lock(ctx, lock.ResourceKey(id))
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	existing, err := r.store.Resources().FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "Resource", id)
	}
	merged := mergeResource(existing, update)
	if err := r.validate(merged); err != nil {
		return nil, err
	}
	if err := r.store.Resources().Update(ctx, id, merged); err != nil {
		return nil, mapWriteError(err, merged.Name)
	}
	r.cfg.Log.Info("Resource updated", "id", id, "actor", actor.Username)
	return merged, nil
}

// DeleteResource removes the resource and all of its bookings atomically.
func (r *Registry) DeleteResource(ctx context.Context, actor model.Requester, id string) error {
	if err := requireAdmin(actor, "delete"); err != nil {
		return err
	}

	release, err := r.locker.Lock(ctx, lock.ResourceKey(id))
	if err != nil {
		return lockError(err)
	}
	defer release()

	var removed int64
	err = r.store.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := r.store.Resources().Delete(txCtx, id); err != nil {
			return mapNotFound(err, "Resource", id)
		}
		n, err := r.store.Bookings().DeleteByResource(txCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to delete resource bookings", err)
		}
		removed = n
		return nil
	})
	if err != nil {
		return err
	}
	r.cfg.Log.Info("Resource deleted", "id", id, "bookings_removed", removed, "actor", actor.Username)
	return nil
}

func (r *Registry) validate(resource *model.Resource) error {
	if err := r.validator.ValidateResource(resource); err != nil {
		r.cfg.Log.Warn("Resource validation failed", "name", resource.Name, "error", err)
		return validationError("Resource validation failed", err)
	}
	return nil
}

func requireAdmin(actor model.Requester, action string) error {
	if actor.IsAdmin() {
		return nil
	}
	return &apperrors.PermissionError{Actor: actor.Username, Action: action + " resources"}
}

func mergeResource(existing *model.Resource, update *model.ResourceUpdate) *model.Resource {
	merged := *existing
	if update.Name != "" {
		merged.Name = update.Name
	}
	if update.Capacity != nil {
		merged.Capacity = *update.Capacity
	}
	if update.Equipment != nil {
		merged.Equipment = append([]string(nil), (*update.Equipment)...)
	}
	if update.Description != nil {
		merged.Description = *update.Description
	}
	if update.OperatingStart != nil {
		merged.OperatingStart = *update.OperatingStart
	}
	if update.OperatingEnd != nil {
		merged.OperatingEnd = *update.OperatingEnd
	}
	return &merged
}

func validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

func mapWriteError(err error, name string) error {
	switch {
	case errors.Is(err, interrors.ErrDuplicateName):
		return apperrors.Conflict("A resource named " + name + " already exists")
	case errors.Is(err, interrors.ErrNotFound):
		return apperrors.NotFound("Resource")
	default:
		return apperrors.Internal("Failed to save resource", err)
	}
}

func lockError(err error) error {
	if errors.Is(err, interrors.ErrLockHeld) {
		return apperrors.Timeout("Resource is busy, please retry")
	}
	return apperrors.Internal("Failed to lock resource", err)
}
