// Package storage declares the persistence interfaces consumed by the service
// layer. Implementations live in the postgres and memory subpackages.
package storage

import (
	"context"

	"github.com/platformeng/demo-user-service/internal/domain/user"
)

// UserStore persists demo user records.
type UserStore interface {
	CreateUser(ctx context.Context, params user.CreateParams) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	UpdateUser(ctx context.Context, id int64, params user.UpdateParams) (user.User, error)
	PatchUser(ctx context.Context, id int64, params user.PatchParams) (user.User, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
}
