package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/easyrecs-backend/pkg/db/types"
)

// RecommendationOverride pins an ordered list of products to a source product.
// Priority and IsActive carry no gorm default so zero values are written
// as-is on insert and upsert.
type RecommendationOverride struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ShopDomain          string             `gorm:"column:shop_domain;not null;uniqueIndex:idx_recommendation_overrides_shop_handle"`
	Handle              string             `gorm:"column:handle;not null;uniqueIndex:idx_recommendation_overrides_shop_handle"`
	SourceProduct       string             `gorm:"column:source_product;not null"`
	SourceTitle         string             `gorm:"column:source_title;not null"`
	SourceHandle        string             `gorm:"column:source_handle;not null"`
	RecommendedProducts dbtypes.StringList `gorm:"column:recommended_products;type:jsonb;not null"`
	Priority            int                `gorm:"column:priority;not null"`
	IsActive            bool               `gorm:"column:is_active;not null"`
	CreatedAt           time.Time          `gorm:"column:created_at"`
	UpdatedAt           time.Time          `gorm:"column:updated_at"`
}

func (RecommendationOverride) TableName() string { return "recommendation_overrides" }
