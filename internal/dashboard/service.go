package dashboard

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/easyrecs-backend/internal/analytics"
	"github.com/angelmondragon/easyrecs-backend/internal/usage"
	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
)

type usageChecker interface {
	CheckUsageLimit(ctx context.Context, shopDomain string, plan enums.Plan) (usage.Status, error)
}

type summarizer interface {
	Summarize(ctx context.Context, shopDomain string) (analytics.Summary, error)
}

// Overview is the admin landing payload.
type Overview struct {
	Usage     usage.Status      `json:"usage"`
	Analytics analytics.Summary `json:"analytics"`
}

// Service composes usage and analytics for the admin dashboard.
type Service struct {
	usage     usageChecker
	analytics summarizer
	logg      *logger.Logger
}

func NewService(ledger usageChecker, summaries summarizer, logg *logger.Logger) (*Service, error) {
	if ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage ledger is required")
	}
	if summaries == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "analytics service is required")
	}
	return &Service{usage: ledger, analytics: summaries, logg: logg}, nil
}

// Overview loads usage and analytics concurrently. A failed summary degrades
// to the empty summary; a failed usage read fails the call.
func (s *Service) Overview(ctx context.Context, shopDomain string) (Overview, error) {
	out := Overview{Analytics: analytics.EmptySummary()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status, err := s.usage.CheckUsageLimit(gctx, shopDomain, "")
		if err != nil {
			return err
		}
		out.Usage = status
		return nil
	})
	g.Go(func() error {
		summary, err := s.analytics.Summarize(gctx, shopDomain)
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard.analytics_unavailable")
			}
			return nil
		}
		out.Analytics = summary
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}
