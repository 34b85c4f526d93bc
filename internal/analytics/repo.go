package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
)

// Repository persists analytics counters.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Increment adds one to the counter at row.Handle, creating it with count 1
// when absent. The statement is a single upsert so concurrent writers never
// lose an increment.
func (r *Repository) Increment(ctx context.Context, row *models.AnalyticsCounter, now time.Time) error {
	now = now.UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.Count = 1
	row.CreatedAt = now
	row.UpdatedAt = now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "handle"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count":      gorm.Expr("analytics_counters.count + ?", 1),
				"updated_at": now,
			}),
		}).
		Create(row).Error
}

// FindByHandle loads one counter; gorm.ErrRecordNotFound when absent.
func (r *Repository) FindByHandle(ctx context.Context, handle string) (*models.AnalyticsCounter, error) {
	var row models.AnalyticsCounter
	if err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ScanShop feeds every counter of the shop to fn in batches, ordered by day
// then id. Batches are keyset paged so rows written mid-scan never shift
// later pages.
func (r *Repository) ScanShop(ctx context.Context, shopDomain string, batchSize int, fn func([]models.AnalyticsCounter) error) error {
	var (
		lastDay string
		lastID  uuid.UUID
		started bool
	)
	for {
		q := r.db.WithContext(ctx).Where("shop_domain = ?", shopDomain)
		if started {
			q = q.Where("(event_date > ?) OR (event_date = ? AND id > ?)", lastDay, lastDay, lastID)
		}
		var batch []models.AnalyticsCounter
		if err := q.
			Order("event_date ASC").
			Order("id ASC").
			Limit(batchSize).
			Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		last := batch[len(batch)-1]
		lastDay, lastID, started = last.EventDate, last.ID, true
	}
}
