package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/dbtest"
	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
)

const shopDomain = "demo.myshopify.com"

func newTestService(t *testing.T, now time.Time) (*Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo, WithClock(func() time.Time { return now }), WithScanBatchSize(3))
	require.NoError(t, err)
	return svc, repo
}

func TestCounterHandleSanitizes(t *testing.T) {
	got := CounterHandle("Demo.myshopify.com", "gid://shopify/Product/1", "gid://shopify/Product/2", enums.AnalyticsEventAddToCart, "2026-03-05")
	require.Equal(t, "demo-myshopify-com-gid---shopify-product-1-gid---shopify-product-2-add-to-cart-2026-03-05", got)
}

func TestRecordIncrementsSingleCounter(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	svc, repo := newTestService(t, now)
	ctx := context.Background()

	event := Event{ShopDomain: shopDomain, SourceProductID: "1", RecommendedProductID: "2", EventType: enums.AnalyticsEventClick}
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, event))
	}

	row, err := repo.FindByHandle(ctx, CounterHandle(shopDomain, "1", "2", enums.AnalyticsEventClick, "2026-03-05"))
	require.NoError(t, err)
	require.Equal(t, int64(3), row.Count)
	require.Equal(t, "2026-03-05", row.EventDate)
	require.Equal(t, enums.AnalyticsEventClick, row.EventType)
}

func TestRecordFoldsSanitizedIDsIntoOneCounter(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	svc, repo := newTestService(t, now)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, Event{ShopDomain: shopDomain, SourceProductID: "a.b", RecommendedProductID: "2", EventType: enums.AnalyticsEventClick}))
	require.NoError(t, svc.Record(ctx, Event{ShopDomain: shopDomain, SourceProductID: "a-b", RecommendedProductID: "2", EventType: enums.AnalyticsEventClick}))

	row, err := repo.FindByHandle(ctx, CounterHandle(shopDomain, "a-b", "2", enums.AnalyticsEventClick, "2026-03-05"))
	require.NoError(t, err)
	require.Equal(t, int64(2), row.Count)
	require.Equal(t, "a.b", row.SourceProductID)
}

func TestRecordSplitsByDayAndType(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)
	ctx := context.Background()

	base := Event{ShopDomain: shopDomain, SourceProductID: "1", RecommendedProductID: "2"}
	for _, ev := range []Event{
		{EventType: enums.AnalyticsEventClick, OccurredAt: now},
		{EventType: enums.AnalyticsEventClick, OccurredAt: now.AddDate(0, 0, -1)},
		{EventType: enums.AnalyticsEventImpression, OccurredAt: now},
	} {
		ev.ShopDomain, ev.SourceProductID, ev.RecommendedProductID = base.ShopDomain, base.SourceProductID, base.RecommendedProductID
		require.NoError(t, svc.Record(ctx, ev))
	}

	summary, err := svc.Summarize(ctx, shopDomain)
	require.NoError(t, err)
	require.Equal(t, Totals{Impressions: 1, Clicks: 2}, summary.AllTime)
	require.Equal(t, []ProductClicks{{ProductID: "2", Clicks: 2}}, summary.TopProducts)
}

func TestRecordConcurrentWritersLoseNothing(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	svc, repo := newTestService(t, now)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Record(ctx, Event{ShopDomain: shopDomain, SourceProductID: "1", RecommendedProductID: "2", EventType: enums.AnalyticsEventImpression})
		}()
	}
	wg.Wait()

	row, err := repo.FindByHandle(ctx, CounterHandle(shopDomain, "1", "2", enums.AnalyticsEventImpression, "2026-03-05"))
	require.NoError(t, err)
	require.Equal(t, int64(20), row.Count)
}

func TestRecordValidates(t *testing.T) {
	svc, _ := newTestService(t, time.Now())
	ctx := context.Background()

	err := svc.Record(ctx, Event{ShopDomain: shopDomain, SourceProductID: "1", RecommendedProductID: "2", EventType: "purchase"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	err = svc.Record(ctx, Event{ShopDomain: shopDomain, SourceProductID: "1", EventType: enums.AnalyticsEventClick})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSummarizeRecentWindowIsInclusive(t *testing.T) {
	now := time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)
	ctx := context.Background()

	record := func(day time.Time, eventType enums.AnalyticsEventType) {
		require.NoError(t, svc.Record(ctx, Event{ShopDomain: shopDomain, SourceProductID: "1", RecommendedProductID: "2", EventType: eventType, OccurredAt: day}))
	}
	// Exactly 30 days back counts as recent; 31 days back does not.
	record(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), enums.AnalyticsEventClick)
	record(time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC), enums.AnalyticsEventClick)
	record(time.Date(2026, 3, 31, 1, 0, 0, 0, time.UTC), enums.AnalyticsEventAddToCart)

	summary, err := svc.Summarize(ctx, shopDomain)
	require.NoError(t, err)
	require.Equal(t, Totals{Clicks: 2, AddToCarts: 1}, summary.AllTime)
	require.Equal(t, Totals{Clicks: 1, AddToCarts: 1}, summary.Last30Days)
}

func TestSummarizeScopedToShopAcrossBatches(t *testing.T) {
	now := time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, svc.Record(ctx, Event{ShopDomain: shopDomain, SourceProductID: "1", RecommendedProductID: fmt.Sprintf("r%d", i), EventType: enums.AnalyticsEventImpression}))
	}
	require.NoError(t, svc.Record(ctx, Event{ShopDomain: "other.myshopify.com", SourceProductID: "1", RecommendedProductID: "r0", EventType: enums.AnalyticsEventImpression}))

	summary, err := svc.Summarize(ctx, shopDomain)
	require.NoError(t, err)
	require.Equal(t, int64(8), summary.AllTime.Impressions)
	require.Empty(t, summary.TopProducts)
	require.NotNil(t, summary.TopProducts)
}

func TestSummarizeTopProducts(t *testing.T) {
	now := time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC)
	rows := []models.AnalyticsCounter{}
	for i := 0; i < 12; i++ {
		rows = append(rows, models.AnalyticsCounter{
			RecommendedProductID: fmt.Sprintf("p%02d", i),
			EventType:            enums.AnalyticsEventClick,
			EventDate:            "2026-03-30",
			Count:                int64(i % 4),
		})
	}
	// Clicks for one product across two days merge.
	rows = append(rows, models.AnalyticsCounter{RecommendedProductID: "p00", EventType: enums.AnalyticsEventClick, EventDate: "2026-03-31", Count: 3})
	rows = append(rows, models.AnalyticsCounter{RecommendedProductID: "imp", EventType: enums.AnalyticsEventImpression, EventDate: "2026-03-31", Count: 50})

	summary := Summarize(rows, now)
	require.Len(t, summary.TopProducts, TopProductsLimit)
	require.Equal(t, []ProductClicks{
		{ProductID: "p00", Clicks: 3},
		{ProductID: "p03", Clicks: 3},
		{ProductID: "p07", Clicks: 3},
		{ProductID: "p11", Clicks: 3},
		{ProductID: "p02", Clicks: 2},
		{ProductID: "p06", Clicks: 2},
		{ProductID: "p10", Clicks: 2},
		{ProductID: "p01", Clicks: 1},
		{ProductID: "p05", Clicks: 1},
		{ProductID: "p09", Clicks: 1},
	}, summary.TopProducts)
	require.Equal(t, int64(50), summary.AllTime.Impressions)
}

type failingRepo struct{}

func (failingRepo) Increment(context.Context, *models.AnalyticsCounter, time.Time) error {
	return errors.New("db down")
}

func (failingRepo) ScanShop(context.Context, string, int, func([]models.AnalyticsCounter) error) error {
	return errors.New("db down")
}

func TestStorageFailuresAreDependencyErrors(t *testing.T) {
	svc, err := NewService(failingRepo{})
	require.NoError(t, err)
	ctx := context.Background()

	err = svc.Record(ctx, Event{ShopDomain: shopDomain, SourceProductID: "1", RecommendedProductID: "2", EventType: enums.AnalyticsEventClick})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	summary, err := svc.Summarize(ctx, shopDomain)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	require.NotNil(t, summary.TopProducts)
}
