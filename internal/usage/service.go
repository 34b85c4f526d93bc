package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
)

type shopStore interface {
	Ensure(ctx context.Context, shopDomain string, now time.Time) (*models.Shop, error)
	FindByID(ctx context.Context, shopDomain string) (*models.Shop, error)
	IncrementUsage(ctx context.Context, shopDomain string, now time.Time) error
	ResetCycleIfStarted(ctx context.Context, shopDomain string, cutoff, now time.Time) (bool, error)
	UpsertPlan(ctx context.Context, shopDomain string, plan enums.Plan, now time.Time) error
}

// Status is the quota snapshot for a shop. Limit and Remaining are nil for
// unlimited plans.
type Status struct {
	Used        int64      `json:"used"`
	Limit       *int64     `json:"limit"`
	Remaining   *int64     `json:"remaining"`
	HasCapacity bool       `json:"hasCapacity"`
	Plan        enums.Plan `json:"plan"`
}

// Ledger enforces the rolling per-plan recommendation quota.
type Ledger struct {
	shops shopStore
	cycle time.Duration
	now   func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger clock.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger builds a ledger over the shop store with the given cycle length.
func NewLedger(shops shopStore, cycle time.Duration, opts ...Option) (*Ledger, error) {
	if shops == nil {
		return nil, fmt.Errorf("shop store required")
	}
	if cycle <= 0 {
		return nil, fmt.Errorf("billing cycle must be positive")
	}
	l := &Ledger{
		shops: shops,
		cycle: cycle,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// EnsureShop provisions the shop record at the request boundary.
func (l *Ledger) EnsureShop(ctx context.Context, shopDomain string) (*models.Shop, error) {
	if shopDomain == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop domain is required")
	}
	shop, err := l.shops.Ensure(ctx, shopDomain, l.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure shop")
	}
	return shop, nil
}

// ResetBillingCycleIfNeeded restarts the cycle once it is at least one cycle
// old. Repeated calls within the same tick reset at most once. A shop seen
// for the first time is created with an empty counter.
func (l *Ledger) ResetBillingCycleIfNeeded(ctx context.Context, shopDomain string) (*models.Shop, error) {
	if shopDomain == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop domain is required")
	}
	now := l.now().UTC()
	if _, err := l.shops.ResetCycleIfStarted(ctx, shopDomain, now.Add(-l.cycle), now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset billing cycle")
	}
	shop, err := l.shops.FindByID(ctx, shopDomain)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return l.EnsureShop(ctx, shopDomain)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}
	return shop, nil
}

// CheckUsageLimit applies the cycle reset and reports capacity for plan. An
// empty plan falls back to the plan stored on the shop.
func (l *Ledger) CheckUsageLimit(ctx context.Context, shopDomain string, plan enums.Plan) (Status, error) {
	shop, err := l.ResetBillingCycleIfNeeded(ctx, shopDomain)
	if err != nil {
		return Status{}, err
	}
	if plan == "" {
		plan = shop.Plan
	}
	return snapshot(shop.RecommendationsUsed, plan), nil
}

// IncrementUsage adds exactly one to the shop's counter.
func (l *Ledger) IncrementUsage(ctx context.Context, shopDomain string) error {
	if err := l.shops.IncrementUsage(ctx, shopDomain, l.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "shop not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment usage")
	}
	return nil
}

// UpdatePlan stores plan for the shop, creating it if needed.
func (l *Ledger) UpdatePlan(ctx context.Context, shopDomain string, plan enums.Plan) error {
	if !plan.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid plan %q", plan)
	}
	if err := l.shops.UpsertPlan(ctx, shopDomain, plan, l.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update plan")
	}
	return nil
}

func snapshot(used int64, plan enums.Plan) Status {
	limit := LimitFor(plan)
	if limit == Unlimited {
		return Status{Used: used, HasCapacity: true, Plan: plan}
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Used:        used,
		Limit:       &limit,
		Remaining:   &remaining,
		HasCapacity: used < limit,
		Plan:        plan,
	}
}
