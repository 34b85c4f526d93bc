package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
)

// AnalyticsCounter accumulates one (source, recommended, event type, day)
// combination. Handle is the unique natural key.
type AnalyticsCounter struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	Handle               string                   `gorm:"column:handle;not null;uniqueIndex:idx_analytics_counters_handle"`
	ShopDomain           string                   `gorm:"column:shop_domain;not null"`
	SourceProductID      string                   `gorm:"column:source_product_id;not null"`
	RecommendedProductID string                   `gorm:"column:recommended_product_id;not null"`
	EventType            enums.AnalyticsEventType `gorm:"column:event_type;not null"`
	EventDate            string                   `gorm:"column:event_date;not null"`
	Count                int64                    `gorm:"column:count;not null;default:0"`
	CreatedAt            time.Time                `gorm:"column:created_at"`
	UpdatedAt            time.Time                `gorm:"column:updated_at"`
}

func (AnalyticsCounter) TableName() string { return "analytics_counters" }
