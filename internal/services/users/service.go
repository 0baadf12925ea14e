// Package users implements the demo user service: a thin orchestration layer
// between the HTTP handlers and the user store.
package users

import (
	"context"

	"github.com/platformeng/demo-user-service/internal/auth"
	"github.com/platformeng/demo-user-service/internal/domain/user"
	"github.com/platformeng/demo-user-service/internal/storage"
	"github.com/platformeng/demo-user-service/pkg/logger"
)

// Service handles demo user operations.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Create registers a new user.
func (s *Service) Create(ctx context.Context, params user.CreateParams) (user.User, error) {
	created, err := s.store.CreateUser(ctx, params)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithContext(ctx).
		WithField("user_id", created.ID).
		WithField("caller", auth.UserID(ctx)).
		Info("user created")
	return created, nil
}

// Get returns one user by id.
func (s *Service) Get(ctx context.Context, id int64) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns all users ordered by id.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// Update replaces all mutable fields of a user.
func (s *Service) Update(ctx context.Context, id int64, params user.UpdateParams) (user.User, error) {
	updated, err := s.store.UpdateUser(ctx, id, params)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithContext(ctx).WithField("user_id", id).Info("user updated")
	return updated, nil
}

// Patch updates only the provided fields of a user.
func (s *Service) Patch(ctx context.Context, id int64, params user.PatchParams) (user.User, error) {
	patched, err := s.store.PatchUser(ctx, id, params)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithContext(ctx).WithField("user_id", id).Info("user patched")
	return patched, nil
}

// Delete removes a user and reports whether a row was removed.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.store.DeleteUser(ctx, id)
	if err != nil {
		return false, err
	}
	s.log.WithContext(ctx).
		WithField("user_id", id).
		WithField("deleted", deleted).
		Info("user delete processed")
	return deleted, nil
}
