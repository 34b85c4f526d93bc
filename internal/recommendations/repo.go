package recommendations

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/pagination"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// Repository persists recommendation overrides.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns an override repository bound to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertByHandle replaces the override stored under (shop, handle) wholesale,
// inserting it when absent, and returns the stored row. The row id and
// created_at survive replacement.
func (r *Repository) UpsertByHandle(ctx context.Context, rec *models.RecommendationOverride) (*models.RecommendationOverride, error) {
	var stored models.RecommendationOverride
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "shop_domain"}, {Name: "handle"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"source_product",
				"source_title",
				"source_handle",
				"recommended_products",
				"priority",
				"is_active",
				"updated_at",
			}),
		}).Create(rec).Error; err != nil {
			return err
		}
		return scopeShop(tx, rec.ShopDomain).Where("handle = ?", rec.Handle).First(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindByHandle loads one override; gorm.ErrRecordNotFound when absent.
func (r *Repository) FindByHandle(ctx context.Context, shopDomain, handle string) (*models.RecommendationOverride, error) {
	var rec models.RecommendationOverride
	if err := scopeShop(r.db.WithContext(ctx), shopDomain).Where("handle = ?", handle).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the override and reports whether a row existed.
func (r *Repository) Delete(ctx context.Context, shopDomain string, id uuid.UUID) (bool, error) {
	res := scopeShop(r.db.WithContext(ctx), shopDomain).Where("id = ?", id).Delete(&models.RecommendationOverride{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetActive writes is_active without touching any other field and returns
// the row as written. gorm.ErrRecordNotFound when the id is unknown.
func (r *Repository) SetActive(ctx context.Context, shopDomain string, id uuid.UUID, active bool, now time.Time) (*models.RecommendationOverride, error) {
	var stored models.RecommendationOverride
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := scopeShop(tx.Model(&models.RecommendationOverride{}), shopDomain).
			Where("id = ?", id).
			Updates(map[string]any{"is_active": active, "updated_at": now.UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return scopeShop(tx, shopDomain).Where("id = ?", id).First(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// scopeShop restricts q to one tenant's overrides.
func scopeShop(q *gorm.DB, shopDomain string) *gorm.DB {
	return q.Where("shop_domain = ?", shopDomain)
}

// List returns up to limit overrides after cursor, most recently updated
// first. search matches handle, source title and source handle, ignoring case.
func (r *Repository) List(ctx context.Context, shopDomain string, cursor *pagination.Cursor, search string, limit int) ([]models.RecommendationOverride, error) {
	q := scopeShop(r.db.WithContext(ctx).Model(&models.RecommendationOverride{}), shopDomain)

	if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
		pattern := containsPattern(term)
		q = q.Where(
			`LOWER(handle) LIKE ? ESCAPE '\' OR LOWER(source_title) LIKE ? ESCAPE '\' OR LOWER(source_handle) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern,
		)
	}
	if cursor != nil {
		q = q.Where("(updated_at < ?) OR (updated_at = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}

	var rows []models.RecommendationOverride
	if err := q.
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ActiveCandidates returns active overrides whose source product contains
// productID, best match first: highest priority, then most recently updated.
func (r *Repository) ActiveCandidates(ctx context.Context, shopDomain, productID string, limit int) ([]models.RecommendationOverride, error) {
	var rows []models.RecommendationOverride
	if err := scopeShop(r.db.WithContext(ctx), shopDomain).
		Where("is_active = ?", true).
		Where(`source_product LIKE ? ESCAPE '\'`, containsPattern(productID)).
		Order("priority DESC").
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
