package deals

import "time"

// Deal is one company under evaluation.
type Deal struct {
	ID             string
	OwnerID        string
	DealName       string
	Status         Status
	RunID          string
	RunStartedAt   *time.Time
	RerunRequested bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Document is one uploaded source file belonging to a deal.
type Document struct {
	ID          string
	DealID      string
	FileName    string
	StoragePath string
	UploadedAt  time.Time
}
