// Package postgres implements the user store on PostgreSQL. Every operation
// issues its queries inside one scoped session, so transient failures are
// retried by the session manager with a fresh transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/platformeng/demo-user-service/internal/database"
	"github.com/platformeng/demo-user-service/internal/domain/user"
	errs "github.com/platformeng/demo-user-service/internal/errors"
	"github.com/platformeng/demo-user-service/internal/storage"
)

// Store implements storage.UserStore backed by a session factory.
type Store struct {
	factory *database.SessionFactory
	manager *database.Manager
}

var _ storage.UserStore = (*Store)(nil)

// New creates a Store over the given factory and session manager.
func New(factory *database.SessionFactory, manager *database.Manager) *Store {
	return &Store{factory: factory, manager: manager}
}

// scope dispatches to the session variant matching the engine's mode.
func (s *Store) scope(ctx context.Context, fn func(context.Context, *database.Session) error) error {
	if s.factory.Engine().Mode() == database.ModeNonBlocking {
		return s.manager.RunContext(ctx, s.factory, fn)
	}
	return s.manager.Run(s.factory, func(sess *database.Session) error {
		return fn(ctx, sess)
	})
}

const userColumns = "id, name, email, is_active, contact_number, age, created_at"

func scanUser(row *sql.Row) (user.User, error) {
	var (
		u       user.User
		contact sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.IsActive, &contact, &u.Age, &u.CreatedAt); err != nil {
		return user.User{}, err
	}
	if contact.Valid {
		u.ContactNumber = contact.String
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, params user.CreateParams) (user.User, error) {
	var created user.User
	err := s.scope(ctx, func(ctx context.Context, sess *database.Session) error {
		row := sess.QueryRowContext(ctx, `
			INSERT INTO users (name, email, contact_number, age)
			VALUES ($1, $2, NULLIF($3, ''), $4)
			RETURNING `+userColumns+`
		`, params.Name, params.Email, params.ContactNumber, params.Age)

		u, err := scanUser(row)
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return created, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var found user.User
	err := s.scope(ctx, func(ctx context.Context, sess *database.Session) error {
		row := sess.QueryRowContext(ctx, `
			SELECT `+userColumns+`
			FROM users
			WHERE id = $1
		`, id)

		u, err := scanUser(row)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("User not found")
		}
		if err != nil {
			return err
		}
		found = u
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return found, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var result []user.User
	err := s.scope(ctx, func(ctx context.Context, sess *database.Session) error {
		rows, err := sess.QueryContext(ctx, `
			SELECT `+userColumns+`
			FROM users
			ORDER BY id
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			var (
				u       user.User
				contact sql.NullString
			)
			if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.IsActive, &contact, &u.Age, &u.CreatedAt); err != nil {
				return err
			}
			if contact.Valid {
				u.ContactNumber = contact.String
			}
			result = append(result, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, params user.UpdateParams) (user.User, error) {
	var updated user.User
	err := s.scope(ctx, func(ctx context.Context, sess *database.Session) error {
		row := sess.QueryRowContext(ctx, `
			UPDATE users
			SET name = $2, email = $3, contact_number = NULLIF($4, ''), age = $5, is_active = $6
			WHERE id = $1
			RETURNING `+userColumns+`
		`, id, params.Name, params.Email, params.ContactNumber, params.Age, params.IsActive)

		u, err := scanUser(row)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("User not found")
		}
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

func (s *Store) PatchUser(ctx context.Context, id int64, params user.PatchParams) (user.User, error) {
	if params.Empty() {
		return s.GetUser(ctx, id)
	}

	set := make([]string, 0, 5)
	args := []interface{}{id}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Email != nil {
		add("email", *params.Email)
	}
	if params.ContactNumber != nil {
		args = append(args, *params.ContactNumber)
		set = append(set, fmt.Sprintf("contact_number = NULLIF($%d, '')", len(args)))
	}
	if params.Age != nil {
		add("age", *params.Age)
	}
	if params.IsActive != nil {
		add("is_active", *params.IsActive)
	}

	query := `
		UPDATE users
		SET ` + strings.Join(set, ", ") + `
		WHERE id = $1
		RETURNING ` + userColumns

	var patched user.User
	err := s.scope(ctx, func(ctx context.Context, sess *database.Session) error {
		u, err := scanUser(sess.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("User not found")
		}
		if err != nil {
			return err
		}
		patched = u
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return patched, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.scope(ctx, func(ctx context.Context, sess *database.Session) error {
		result, err := sess.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		deleted = rows > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
