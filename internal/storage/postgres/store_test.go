package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/platformeng/demo-user-service/internal/database"
	"github.com/platformeng/demo-user-service/internal/domain/user"
	errs "github.com/platformeng/demo-user-service/internal/errors"
)

var userCols = []string{"id", "name", "email", "is_active", "contact_number", "age", "created_at"}

func testStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, factory, err := database.NewEngine(db, "postgresql+asyncpg://demo", database.PoolConfig{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	manager := database.NewManager(nil)
	manager.RetryBackoff = time.Millisecond
	return New(factory, manager), mock
}

func expectScope(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestCreateUser(t *testing.T) {
	store, mock := testStore(t)
	now := time.Now().UTC()

	expectScope(mock)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("alice", "alice@example.com", "01712345678", 30).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(1), "alice", "alice@example.com", true, "01712345678", 30, now))
	mock.ExpectCommit()

	created, err := store.CreateUser(context.Background(), user.CreateParams{
		Name:          "alice",
		Email:         "alice@example.com",
		ContactNumber: "01712345678",
		Age:           30,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 1 || created.Email != "alice@example.com" || !created.IsActive {
		t.Fatalf("unexpected user %+v", created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := testStore(t)

	expectScope(mock)
	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&duplicateKeyError{})
	mock.ExpectRollback()

	_, err := store.CreateUser(context.Background(), user.CreateParams{Name: "alice", Email: "alice@example.com", Age: 30})
	if !database.IsIntegrity(err) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// duplicateKeyError mimics a driver constraint violation.
type duplicateKeyError struct{}

func (*duplicateKeyError) Error() string {
	return "pq: duplicate key value violates unique constraint \"users_email_key\""
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := testStore(t)

	expectScope(mock)
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.GetUser(context.Background(), 42)
	var svcErr *errs.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if svcErr.HTTPStatus != 404 {
		t.Fatalf("expected 404, got %d", svcErr.HTTPStatus)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListUsers(t *testing.T) {
	store, mock := testStore(t)
	now := time.Now().UTC()

	expectScope(mock)
	mock.ExpectQuery("SELECT (.+) FROM users").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(1), "alice", "alice@example.com", true, nil, 30, now).
			AddRow(int64(2), "bob", "bob@example.com", false, "01712345678", 25, now))
	mock.ExpectCommit()

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].ContactNumber != "" || users[1].ContactNumber != "01712345678" {
		t.Fatalf("contact numbers not mapped: %+v", users)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	store, mock := testStore(t)
	now := time.Now().UTC()

	expectScope(mock)
	mock.ExpectQuery("UPDATE users").
		WithArgs(int64(1), "alice2", "alice2@example.com", "", 31, true).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(1), "alice2", "alice2@example.com", true, nil, 31, now))
	mock.ExpectCommit()

	updated, err := store.UpdateUser(context.Background(), 1, user.UpdateParams{
		Name: "alice2", Email: "alice2@example.com", Age: 31, IsActive: true,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "alice2" || updated.Age != 31 {
		t.Fatalf("unexpected user %+v", updated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPatchUserPartialFields(t *testing.T) {
	store, mock := testStore(t)
	now := time.Now().UTC()

	expectScope(mock)
	mock.ExpectQuery("UPDATE users").
		WithArgs(int64(1), "renamed", 33).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(1), "renamed", "alice@example.com", true, nil, 33, now))
	mock.ExpectCommit()

	name := "renamed"
	age := 33
	patched, err := store.PatchUser(context.Background(), 1, user.PatchParams{Name: &name, Age: &age})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patched.Name != "renamed" || patched.Age != 33 {
		t.Fatalf("unexpected user %+v", patched)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPatchUserNoFieldsReadsCurrentRow(t *testing.T) {
	store, mock := testStore(t)
	now := time.Now().UTC()

	expectScope(mock)
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(1), "alice", "alice@example.com", true, nil, 30, now))
	mock.ExpectCommit()

	patched, err := store.PatchUser(context.Background(), 1, user.PatchParams{})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patched.ID != 1 {
		t.Fatalf("unexpected user %+v", patched)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	store, mock := testStore(t)

	expectScope(mock)
	mock.ExpectExec("DELETE FROM users").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := store.DeleteUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected deletion")
	}

	expectScope(mock)
	mock.ExpectExec("DELETE FROM users").
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	deleted, err = store.DeleteUser(context.Background(), 99)
	if err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if deleted {
		t.Fatal("expected no deletion for missing row")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
