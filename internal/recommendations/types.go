package recommendations

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/pagination"
	"github.com/angelmondragon/easyrecs-backend/pkg/shopify"
)

// UpsertInput is the full document written by create and update.
type UpsertInput struct {
	Handle                string
	SourceProductID       string
	RecommendedProductIDs []string
	Priority              int
	IsActive              bool
}

// OverrideDTO is the admin view of an override.
type OverrideDTO struct {
	ID                    uuid.UUID         `json:"id"`
	Handle                string            `json:"handle"`
	SourceProductID       string            `json:"sourceProductId"`
	SourceProduct         *shopify.Product  `json:"sourceProduct"`
	RecommendedProductIDs []string          `json:"recommendedProductIds"`
	RecommendedProducts   []shopify.Product `json:"recommendedProducts"`
	Priority              int               `json:"priority"`
	IsActive              bool              `json:"isActive"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// ListPage is one page of overrides.
type ListPage struct {
	Recommendations []OverrideDTO       `json:"recommendations"`
	PageInfo        pagination.PageInfo `json:"pageInfo"`
}

func toDTO(rec models.RecommendationOverride) OverrideDTO {
	ids := []string(rec.RecommendedProducts)
	if ids == nil {
		ids = []string{}
	}
	dto := OverrideDTO{
		ID:                    rec.ID,
		Handle:                rec.Handle,
		SourceProductID:       rec.SourceProduct,
		RecommendedProductIDs: ids,
		RecommendedProducts:   idOnlyProducts(ids),
		Priority:              rec.Priority,
		IsActive:              rec.IsActive,
		UpdatedAt:             rec.UpdatedAt.UTC(),
	}
	if rec.SourceProduct != "" {
		dto.SourceProduct = &shopify.Product{ID: rec.SourceProduct, Title: rec.SourceTitle, Handle: rec.SourceHandle}
	}
	return dto
}

func idOnlyProducts(ids []string) []shopify.Product {
	out := make([]shopify.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, shopify.Product{ID: id})
	}
	return out
}
