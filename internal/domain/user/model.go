// Package user holds the demo user domain model.
package user

import "time"

// User is a demo user record.
type User struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	IsActive      bool      `json:"is_active"`
	ContactNumber string    `json:"contact_number,omitempty"`
	Age           int       `json:"age"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateParams carries the fields needed to create a user.
type CreateParams struct {
	Name          string
	Email         string
	ContactNumber string
	Age           int
}

// UpdateParams replaces all mutable fields of a user.
type UpdateParams struct {
	Name          string
	Email         string
	ContactNumber string
	Age           int
	IsActive      bool
}

// PatchParams updates only the fields that are set.
type PatchParams struct {
	Name          *string
	Email         *string
	ContactNumber *string
	Age           *int
	IsActive      *bool
}

// Empty reports whether the patch carries no changes.
func (p PatchParams) Empty() bool {
	return p.Name == nil && p.Email == nil && p.ContactNumber == nil && p.Age == nil && p.IsActive == nil
}
