package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/easyrecs-backend/internal/shops"
	"github.com/angelmondragon/easyrecs-backend/pkg/db/dbtest"
	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
)

const (
	shopDomain = "demo.myshopify.com"
	cycle      = 30 * 24 * time.Hour
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLedger(t *testing.T) (*Ledger, *shops.Repository, *clock) {
	t.Helper()
	repo := shops.NewRepository(dbtest.Open(t))
	clk := &clock{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	ledger, err := NewLedger(repo, cycle, WithClock(clk.Now))
	require.NoError(t, err)
	return ledger, repo, clk
}

func TestCheckUsageLimitCreatesShopOnFirstAccess(t *testing.T) {
	ledger, repo, clk := newLedger(t)
	ctx := context.Background()

	status, err := ledger.CheckUsageLimit(ctx, shopDomain, enums.PlanFree)
	require.NoError(t, err)
	require.Equal(t, int64(0), status.Used)
	require.Equal(t, int64(100), *status.Limit)
	require.Equal(t, int64(100), *status.Remaining)
	require.True(t, status.HasCapacity)

	shop, err := repo.FindByID(ctx, shopDomain)
	require.NoError(t, err)
	require.True(t, shop.BillingCycleStart.Equal(clk.Now()))
}

func TestFreePlanScenario(t *testing.T) {
	ledger, _, _ := newLedger(t)
	ctx := context.Background()
	_, err := ledger.EnsureShop(ctx, shopDomain)
	require.NoError(t, err)

	for i := 0; i < 99; i++ {
		require.NoError(t, ledger.IncrementUsage(ctx, shopDomain))
	}

	status, err := ledger.CheckUsageLimit(ctx, shopDomain, enums.PlanFree)
	require.NoError(t, err)
	require.Equal(t, int64(99), status.Used)
	require.Equal(t, int64(1), *status.Remaining)
	require.True(t, status.HasCapacity)

	require.NoError(t, ledger.IncrementUsage(ctx, shopDomain))

	status, err = ledger.CheckUsageLimit(ctx, shopDomain, enums.PlanFree)
	require.NoError(t, err)
	require.Equal(t, int64(100), status.Used)
	require.Equal(t, int64(0), *status.Remaining)
	require.False(t, status.HasCapacity)
	require.Equal(t, enums.PlanFree, status.Plan)
}

func TestRemainingNeverNegative(t *testing.T) {
	status := snapshot(150, enums.PlanFree)
	require.Equal(t, int64(0), *status.Remaining)
	require.False(t, status.HasCapacity)
}

func TestEnterpriseIsUnlimited(t *testing.T) {
	status := snapshot(1_000_000, enums.PlanEnterprise)
	require.True(t, status.HasCapacity)
	require.Nil(t, status.Limit)
	require.Nil(t, status.Remaining)
}

func TestUnknownPlanUsesFreeLimit(t *testing.T) {
	status := snapshot(5, enums.Plan("Gold"))
	require.Equal(t, int64(100), *status.Limit)
	require.Equal(t, enums.Plan("Gold"), status.Plan)
}

func TestEmptyPlanFallsBackToStoredPlan(t *testing.T) {
	ledger, _, _ := newLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.UpdatePlan(ctx, shopDomain, enums.PlanStandard))

	status, err := ledger.CheckUsageLimit(ctx, shopDomain, "")
	require.NoError(t, err)
	require.Equal(t, enums.PlanStandard, status.Plan)
	require.Equal(t, int64(1000), *status.Limit)
}

func TestCycleResetBoundary(t *testing.T) {
	ledger, _, clk := newLedger(t)
	ctx := context.Background()
	_, err := ledger.EnsureShop(ctx, shopDomain)
	require.NoError(t, err)
	require.NoError(t, ledger.IncrementUsage(ctx, shopDomain))
	require.NoError(t, ledger.IncrementUsage(ctx, shopDomain))

	clk.Advance(cycle - time.Second)
	status, err := ledger.CheckUsageLimit(ctx, shopDomain, enums.PlanFree)
	require.NoError(t, err)
	require.Equal(t, int64(2), status.Used, "reset must not fire early")

	clk.Advance(time.Second)
	shop, err := ledger.ResetBillingCycleIfNeeded(ctx, shopDomain)
	require.NoError(t, err)
	require.Equal(t, int64(0), shop.RecommendationsUsed)
	require.True(t, shop.BillingCycleStart.Equal(clk.Now()))

	require.NoError(t, ledger.IncrementUsage(ctx, shopDomain))
	shop, err = ledger.ResetBillingCycleIfNeeded(ctx, shopDomain)
	require.NoError(t, err)
	require.Equal(t, int64(1), shop.RecommendationsUsed, "repeat call in the same tick must not reset again")
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	ledger, repo, _ := newLedger(t)
	ctx := context.Background()
	_, err := ledger.EnsureShop(ctx, shopDomain)
	require.NoError(t, err)

	const workers = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ledger.IncrementUsage(ctx, shopDomain)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	shop, err := repo.FindByID(ctx, shopDomain)
	require.NoError(t, err)
	require.Equal(t, int64(workers), shop.RecommendationsUsed)
}

func TestUpdatePlanValidatesAndPreservesUsage(t *testing.T) {
	ledger, repo, _ := newLedger(t)
	ctx := context.Background()
	_, err := ledger.EnsureShop(ctx, shopDomain)
	require.NoError(t, err)
	require.NoError(t, ledger.IncrementUsage(ctx, shopDomain))

	err = ledger.UpdatePlan(ctx, shopDomain, enums.Plan("Gold"))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	require.NoError(t, ledger.UpdatePlan(ctx, shopDomain, enums.PlanEnterprise))
	require.NoError(t, ledger.UpdatePlan(ctx, shopDomain, enums.PlanEnterprise))
	shop, err := repo.FindByID(ctx, shopDomain)
	require.NoError(t, err)
	require.Equal(t, enums.PlanEnterprise, shop.Plan)
	require.Equal(t, int64(1), shop.RecommendationsUsed)
}

func TestIncrementUnknownShop(t *testing.T) {
	ledger, _, _ := newLedger(t)
	err := ledger.IncrementUsage(context.Background(), "ghost.myshopify.com")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

type failingStore struct {
	shopStore
	err error
}

func (f failingStore) ResetCycleIfStarted(context.Context, string, time.Time, time.Time) (bool, error) {
	return false, f.err
}

func (f failingStore) Ensure(context.Context, string, time.Time) (*models.Shop, error) {
	return nil, f.err
}

func TestStoreFailuresSurfaceAsDependencyErrors(t *testing.T) {
	ledger, err := NewLedger(failingStore{err: errors.New("db down")}, cycle)
	require.NoError(t, err)

	_, err = ledger.CheckUsageLimit(context.Background(), shopDomain, enums.PlanFree)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	_, err = ledger.EnsureShop(context.Background(), shopDomain)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestNewLedgerValidates(t *testing.T) {
	_, err := NewLedger(nil, cycle)
	require.Error(t, err)
	_, err = NewLedger(failingStore{}, 0)
	require.Error(t, err)
}
