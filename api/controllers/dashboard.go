package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/easyrecs-backend/api/responses"
	"github.com/angelmondragon/easyrecs-backend/api/validators"
	"github.com/angelmondragon/easyrecs-backend/internal/dashboard"
	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
)

// OverviewLoader builds the admin landing page payload.
type OverviewLoader interface {
	Overview(ctx context.Context, shopDomain string) (dashboard.Overview, error)
}

type updatePlanRequest struct {
	Plan string `json:"plan" validate:"required"`
}

// AdminDashboard returns usage and analytics for the landing page.
func AdminDashboard(svc OverviewLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop, ok := requireShop(w, r, logg)
		if !ok {
			return
		}
		overview, err := svc.Overview(r.Context(), shop)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

// AdminUsage returns the current quota snapshot.
func AdminUsage(ledger UsageLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop, ok := requireShop(w, r, logg)
		if !ok {
			return
		}
		status, err := ledger.CheckUsageLimit(r.Context(), shop, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// AdminUpdatePlan switches the shop plan without touching usage.
func AdminUpdatePlan(ledger UsageLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop, ok := requireShop(w, r, logg)
		if !ok {
			return
		}
		var payload updatePlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plan, err := enums.ParsePlan(payload.Plan)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan"))
			return
		}
		if err := ledger.UpdatePlan(r.Context(), shop, plan); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := ledger.CheckUsageLimit(r.Context(), shop, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
