package dto

import (
	"time"

	"github.com/noah-isme/campus-engage-api/internal/models"
)

// AdminActivityListRequest filters the audit trail.
type AdminActivityListRequest struct {
	Page       int
	PageSize   int
	ActorID    uint
	Action     string
	EntityType string
	EntityID   uint
	// CorrelationID returns every write made by one request or CLI review.
	CorrelationID string
	Since         *time.Time
	Until         *time.Time
}

// AdminActivityResponse serializes one audit entry.
type AdminActivityResponse struct {
	ID            uint                   `json:"id"`
	ActorID       uint                   `json:"actor_id"`
	ActorRole     string                 `json:"actor_role"`
	Action        string                 `json:"action"`
	EntityType    string                 `json:"entity_type"`
	EntityID      *uint                  `json:"entity_id"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata"`
	CreatedAt     time.Time              `json:"created_at"`
}

// AdminActivityListResponse wraps a paginated audit listing.
type AdminActivityListResponse struct {
	Items      []AdminActivityResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

// NewAdminActivityResponse converts a model into its DTO.
func NewAdminActivityResponse(model models.ActivityLog) AdminActivityResponse {
	metadata := map[string]interface{}{}
	for key, value := range model.Metadata {
		metadata[key] = value
	}

	return AdminActivityResponse{
		ID:            model.ID,
		ActorID:       model.ActorID,
		ActorRole:     model.ActorRole,
		Action:        model.Action,
		EntityType:    model.EntityType,
		EntityID:      model.EntityID,
		CorrelationID: model.CorrelationID,
		Metadata:      metadata,
		CreatedAt:     model.CreatedAt,
	}
}
