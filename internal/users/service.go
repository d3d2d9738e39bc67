package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"sealdeal-backend/internal/shared/telemetry"
)

type Service struct {
	Repo     Repo
	validate *validator.Validate
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo, validate: validator.New()}
}

type roleAssignment struct {
	TargetUID string `validate:"required"`
	NewRole   string `validate:"required,oneof=admin benchmarking_admin analyst"`
}

// Touch records the caller's identity so role lookups have a row to read.
func (s *Service) Touch(ctx context.Context, userID, email, name string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrUnauthenticated
	}
	if err := s.Repo.Upsert(ctx, User{ID: userID, Email: email, Name: name}); err != nil {
		return User{}, err
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// EnsureHasRole passes when the user holds required or admin.
func (s *Service) EnsureHasRole(ctx context.Context, userID, required string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &PermissionError{Role: required}
		}
		return err
	}
	if !user.HasRole(required) {
		return &PermissionError{Role: required}
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	err := s.EnsureHasRole(ctx, userID, RoleAdmin)
	if err == nil {
		return true, nil
	}
	var perm *PermissionError
	if errors.As(err, &perm) || errors.Is(err, ErrUnauthenticated) {
		return false, nil
	}
	return false, err
}

// SetRole assigns newRole to targetUID on behalf of an admin caller.
func (s *Service) SetRole(ctx context.Context, callerUID, targetUID, newRole string) error {
	if err := s.EnsureHasRole(ctx, callerUID, RoleAdmin); err != nil {
		return err
	}
	return s.AssignRole(ctx, targetUID, newRole)
}

// AssignRole writes the role without a caller check. Used by the operator CLI.
func (s *Service) AssignRole(ctx context.Context, targetUID, newRole string) error {
	in := roleAssignment{TargetUID: strings.TrimSpace(targetUID), NewRole: strings.TrimSpace(newRole)}
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.Repo.SetRole(ctx, in.TargetUID, in.NewRole); err != nil {
		return err
	}
	telemetry.Info("user.role_set", map[string]any{"user_id": in.TargetUID, "role": in.NewRole})
	return nil
}
