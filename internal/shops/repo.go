package shops

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
)

// ErrNoAccessToken is returned when a shop never completed installation.
var ErrNoAccessToken = errors.New("shop has no stored access token")

// Repository persists shop records and their usage counters.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a repository to the provided database handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Ensure creates the shop on first access and returns the stored row. An
// existing row is never modified.
func (r *Repository) Ensure(ctx context.Context, shopDomain string, now time.Time) (*models.Shop, error) {
	now = now.UTC()
	shop := models.Shop{
		ID:                shopDomain,
		Plan:              enums.PlanFree,
		BillingCycleStart: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&shop).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, shopDomain)
}

// FindByID loads a shop; gorm.ErrRecordNotFound when absent.
func (r *Repository) FindByID(ctx context.Context, shopDomain string) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).
		Where("id = ?", shopDomain).
		First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// IncrementUsage bumps recommendations_used by one in a single statement.
func (r *Repository) IncrementUsage(ctx context.Context, shopDomain string, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("id = ?", shopDomain).
		Updates(map[string]any{
			"recommendations_used": gorm.Expr("recommendations_used + ?", 1),
			"updated_at":           now.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ResetCycleIfStarted zeroes usage and restarts the cycle at now, but only
// when the stored cycle started at or before cutoff. The guard makes
// repeated calls within one tick reset at most once.
func (r *Repository) ResetCycleIfStarted(ctx context.Context, shopDomain string, cutoff, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("id = ? AND billing_cycle_start <= ?", shopDomain, cutoff.UTC()).
		Updates(map[string]any{
			"recommendations_used": 0,
			"billing_cycle_start":  now.UTC(),
			"updated_at":           now.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpsertPlan writes plan, creating the shop when needed. Usage and cycle
// start are left untouched on existing rows.
func (r *Repository) UpsertPlan(ctx context.Context, shopDomain string, plan enums.Plan, now time.Time) error {
	now = now.UTC()
	shop := models.Shop{
		ID:                shopDomain,
		Plan:              plan,
		BillingCycleStart: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"plan", "updated_at"}),
		}).
		Create(&shop).Error
}

// AccessToken satisfies shopify.TokenSource.
func (r *Repository) AccessToken(ctx context.Context, shopDomain string) (string, error) {
	shop, err := r.FindByID(ctx, shopDomain)
	if err != nil {
		return "", err
	}
	if shop.AccessToken == nil || *shop.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return *shop.AccessToken, nil
}
