// Package memory provides an in-memory user store used in tests and when no
// database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platformeng/demo-user-service/internal/domain/user"
	errs "github.com/platformeng/demo-user-service/internal/errors"
	"github.com/platformeng/demo-user-service/internal/storage"
)

// Store is a mutex-guarded map store.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]user.User
	emails map[string]int64
}

var _ storage.UserStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID: 1,
		users:  make(map[int64]user.User),
		emails: make(map[string]int64),
	}
}

func (s *Store) CreateUser(_ context.Context, params user.CreateParams) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[params.Email]; exists {
		return user.User{}, errs.Conflict("Resource already exists")
	}

	u := user.User{
		ID:            s.nextID,
		Name:          params.Name,
		Email:         params.Email,
		ContactNumber: params.ContactNumber,
		Age:           params.Age,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	s.nextID++
	s.users[u.ID] = u
	s.emails[u.Email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, errs.NotFound("User not found")
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, params user.UpdateParams) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, errs.NotFound("User not found")
	}
	if other, exists := s.emails[params.Email]; exists && other != id {
		return user.User{}, errs.Conflict("Resource already exists")
	}

	delete(s.emails, u.Email)
	u.Name = params.Name
	u.Email = params.Email
	u.ContactNumber = params.ContactNumber
	u.Age = params.Age
	u.IsActive = params.IsActive
	s.users[id] = u
	s.emails[u.Email] = id
	return u, nil
}

func (s *Store) PatchUser(_ context.Context, id int64, params user.PatchParams) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, errs.NotFound("User not found")
	}
	if params.Email != nil {
		if other, exists := s.emails[*params.Email]; exists && other != id {
			return user.User{}, errs.Conflict("Resource already exists")
		}
		delete(s.emails, u.Email)
		u.Email = *params.Email
		s.emails[u.Email] = id
	}
	if params.Name != nil {
		u.Name = *params.Name
	}
	if params.ContactNumber != nil {
		u.ContactNumber = *params.ContactNumber
	}
	if params.Age != nil {
		u.Age = *params.Age
	}
	if params.IsActive != nil {
		u.IsActive = *params.IsActive
	}
	s.users[id] = u
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	delete(s.users, id)
	delete(s.emails, u.Email)
	return true, nil
}
