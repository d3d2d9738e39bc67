package deals

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("deal not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoDocuments      = errors.New("deal has no documents")
)

// NotFoundError names the missing deal.
type NotFoundError struct {
	DealID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Deal with ID %s not found.", e.DealID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NoDocumentsError names the deal that has nothing to analyze.
type NoDocumentsError struct {
	DealID string
}

func (e *NoDocumentsError) Error() string {
	return fmt.Sprintf("No documents found for deal %s.", e.DealID)
}

func (e *NoDocumentsError) Is(target error) bool { return target == ErrNoDocuments }
