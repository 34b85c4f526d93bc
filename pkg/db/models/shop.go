package models

import (
	"time"

	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
)

// Shop is the merchant tenant, keyed by its myshopify domain.
type Shop struct {
	ID                  string     `gorm:"column:id;primaryKey"`
	Plan                enums.Plan `gorm:"column:plan;not null;default:'Free'"`
	RecommendationsUsed int64      `gorm:"column:recommendations_used;not null;default:0"`
	BillingCycleStart   time.Time  `gorm:"column:billing_cycle_start;not null"`
	AccessToken         *string    `gorm:"column:access_token"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (Shop) TableName() string { return "shops" }
