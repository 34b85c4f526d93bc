package analytics

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
)

// DefaultScanBatchSize is the counter page size used by Summarize.
const DefaultScanBatchSize = 250

var handleUnsafe = regexp.MustCompile(`(?i)[^a-z0-9-]`)

// CounterHandle derives the natural key of a counter. Every character outside
// [a-z0-9-] folds to "-", so ids such as "a.b" and "a-b" share one counter and
// the row keeps the first-seen product ids. Stored handles depend on this
// exact folding, so it must not be made injective without a data migration.
func CounterHandle(shopDomain, sourceProductID, recommendedProductID string, eventType enums.AnalyticsEventType, day string) string {
	raw := fmt.Sprintf("%s-%s-%s-%s-%s", shopDomain, sourceProductID, recommendedProductID, eventType, day)
	return strings.ToLower(handleUnsafe.ReplaceAllString(raw, "-"))
}

type counterStore interface {
	Increment(ctx context.Context, row *models.AnalyticsCounter, now time.Time) error
	ScanShop(ctx context.Context, shopDomain string, batchSize int, fn func([]models.AnalyticsCounter) error) error
}

// Service records storefront events and summarizes them for the dashboard.
type Service struct {
	repo      counterStore
	batchSize int
	now       func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithScanBatchSize overrides the counter page size used by Summarize.
func WithScanBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func NewService(repo counterStore, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "analytics repo is required")
	}
	s := &Service{
		repo:      repo,
		batchSize: DefaultScanBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Record counts one event against its (shop, source, recommended, type, day)
// counter.
func (s *Service) Record(ctx context.Context, event Event) error {
	if !event.EventType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid event type").
			WithDetails(map[string]any{"allowed": enums.AnalyticsEventTypes()})
	}
	if strings.TrimSpace(event.ShopDomain) == "" ||
		strings.TrimSpace(event.SourceProductID) == "" ||
		strings.TrimSpace(event.RecommendedProductID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shop, source and recommended product ids are required")
	}

	now := s.now()
	day := EventDay(event.OccurredAt, now)
	row := &models.AnalyticsCounter{
		Handle:               CounterHandle(event.ShopDomain, event.SourceProductID, event.RecommendedProductID, event.EventType, day),
		ShopDomain:           event.ShopDomain,
		SourceProductID:      event.SourceProductID,
		RecommendedProductID: event.RecommendedProductID,
		EventType:            event.EventType,
		EventDate:            day,
	}
	if err := s.repo.Increment(ctx, row, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record analytics event")
	}
	return nil
}

// Summarize reads every counter of the shop and aggregates them.
func (s *Service) Summarize(ctx context.Context, shopDomain string) (Summary, error) {
	agg := newAggregator(s.now())
	if err := s.repo.ScanShop(ctx, shopDomain, s.batchSize, func(rows []models.AnalyticsCounter) error {
		for i := range rows {
			agg.add(rows[i])
		}
		return nil
	}); err != nil {
		return EmptySummary(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan analytics counters")
	}
	return agg.summary(), nil
}

// Summarize aggregates rows as of now. Rows are taken in the given order;
// ranking ties keep first-seen order.
func Summarize(rows []models.AnalyticsCounter, now time.Time) Summary {
	agg := newAggregator(now)
	for i := range rows {
		agg.add(rows[i])
	}
	return agg.summary()
}
