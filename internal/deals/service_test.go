package deals

import (
	"context"
	"errors"
	"testing"
)

type fakeAdmins map[string]bool

func (f fakeAdmins) IsAdmin(_ context.Context, userID string) (bool, error) {
	return f[userID], nil
}

func TestServiceCreateRequiresName(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	if _, err := svc.Create(context.Background(), "u1", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestServiceGetEnforcesOwnership(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Repo: NewMemoryRepo(), Admins: fakeAdmins{"root": true}}
	d, err := svc.Create(ctx, "owner", "Acme")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.Status != StatusAwaitingUpload {
		t.Fatalf("expected new deal to await upload, got %s", d.Status)
	}

	if _, err := svc.Get(ctx, "owner", d.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if _, err := svc.Get(ctx, "root", d.ID); err != nil {
		t.Fatalf("admin Get: %v", err)
	}
	if _, err := svc.Get(ctx, "stranger", d.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}
