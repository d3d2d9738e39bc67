package users

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// PermissionError is returned when a caller lacks a role.
type PermissionError struct {
	Role string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("You must have the '%s' or 'admin' role to perform this action.", e.Role)
}

type Repo interface {
	// Upsert stores identity fields and never changes the role.
	Upsert(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	// SetRole creates the user if needed and assigns role.
	SetRole(ctx context.Context, userID, role string) error
}
