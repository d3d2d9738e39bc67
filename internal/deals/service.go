package deals

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"sealdeal-backend/internal/shared/telemetry"
)

// AdminChecker reports whether a user holds the admin role.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Service contains business logic for deals.
type Service struct {
	Repo   Repo
	Admins AdminChecker
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create records a new deal awaiting uploads.
func (s *Service) Create(ctx context.Context, ownerID, dealName string) (Deal, error) {
	dealName = strings.TrimSpace(dealName)
	if ownerID == "" || dealName == "" {
		return Deal{}, ErrInvalidInput
	}
	now := s.now()
	d := Deal{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		DealName:  dealName,
		Status:    StatusAwaitingUpload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, d); err != nil {
		return Deal{}, err
	}
	telemetry.Info("deal.created", map[string]any{"deal_id": d.ID, "user_id": ownerID})
	return d, nil
}

// Get returns a deal the user owns, or any deal for admins.
func (s *Service) Get(ctx context.Context, userID, dealID string) (Deal, error) {
	d, err := s.Repo.Get(ctx, dealID)
	if err != nil {
		return Deal{}, err
	}
	if err := s.authorize(ctx, userID, d); err != nil {
		return Deal{}, err
	}
	return d, nil
}

// List returns the user's deals, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Deal, error) {
	return s.Repo.ListByOwner(ctx, userID, limit, offset)
}

// Documents lists a deal's documents after an access check.
func (s *Service) Documents(ctx context.Context, userID, dealID string) ([]Document, error) {
	if _, err := s.Get(ctx, userID, dealID); err != nil {
		return nil, err
	}
	return s.Repo.ListDocuments(ctx, dealID)
}

// RecordUpload stores a document reference for a completed upload.
func (s *Service) RecordUpload(ctx context.Context, dealID, fileName, storagePath string) (Document, bool, error) {
	if dealID == "" || fileName == "" || storagePath == "" {
		return Document{}, false, ErrInvalidInput
	}
	doc := Document{
		ID:          uuid.NewString(),
		DealID:      dealID,
		FileName:    fileName,
		StoragePath: storagePath,
		UploadedAt:  s.now(),
	}
	created, err := s.Repo.AddDocument(ctx, doc)
	if err != nil {
		return Document{}, false, err
	}
	return doc, created, nil
}

func (s *Service) authorize(ctx context.Context, userID string, d Deal) error {
	if userID != "" && d.OwnerID == userID {
		return nil
	}
	if s.Admins != nil {
		ok, err := s.Admins.IsAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrPermissionDenied
}
