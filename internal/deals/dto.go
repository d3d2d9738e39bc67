package deals

import "time"

// DealResponse is the outward-facing representation of a deal.
type DealResponse struct {
	DealID    string    `json:"dealId"`
	DealName  string    `json:"dealName"`
	OwnerID   string    `json:"ownerId"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// DocumentResponse is the outward-facing representation of a deal document.
type DocumentResponse struct {
	DocumentID  string    `json:"documentId"`
	FileName    string    `json:"fileName"`
	StoragePath string    `json:"storagePath"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func toResponse(d Deal) DealResponse {
	return DealResponse{
		DealID:    d.ID,
		DealName:  d.DealName,
		OwnerID:   d.OwnerID,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
	}
}

// ToDocumentResponse maps a document to its JSON form.
func ToDocumentResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:  doc.ID,
		FileName:    doc.FileName,
		StoragePath: doc.StoragePath,
		UploadedAt:  doc.UploadedAt,
	}
}
