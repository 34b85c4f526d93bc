package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/easyrecs-backend/api/middleware"
	"github.com/angelmondragon/easyrecs-backend/api/responses"
	"github.com/angelmondragon/easyrecs-backend/api/validators"
	"github.com/angelmondragon/easyrecs-backend/internal/recommendations"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
	"github.com/angelmondragon/easyrecs-backend/pkg/pagination"
)

const maxSearchLength = 200

// RecommendationStore is the admin override lifecycle.
type RecommendationStore interface {
	Upsert(ctx context.Context, shopDomain string, input recommendations.UpsertInput) (*recommendations.OverrideDTO, error)
	Delete(ctx context.Context, shopDomain string, id uuid.UUID) (bool, error)
	Toggle(ctx context.Context, shopDomain string, id uuid.UUID, currentIsActive bool) (*recommendations.OverrideDTO, error)
	List(ctx context.Context, shopDomain string, params pagination.Params) (recommendations.ListPage, error)
}

type upsertRecommendationRequest struct {
	Handle                string   `json:"handle,omitempty"`
	SourceProductID       string   `json:"sourceProductId" validate:"required"`
	RecommendedProductIDs []string `json:"recommendedProductIds" validate:"required,min=1"`
	Priority              int      `json:"priority"`
	IsActive              *bool    `json:"isActive,omitempty"`
}

func (r upsertRecommendationRequest) toInput() recommendations.UpsertInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return recommendations.UpsertInput{
		Handle:                r.Handle,
		SourceProductID:       r.SourceProductID,
		RecommendedProductIDs: r.RecommendedProductIDs,
		Priority:              r.Priority,
		IsActive:              active,
	}
}

type toggleRecommendationRequest struct {
	CurrentIsActive bool `json:"currentIsActive"`
}

// requireShop returns the verified shop or writes 401.
func requireShop(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (string, bool) {
	shop := middleware.ShopDomainFromContext(r.Context())
	if shop == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "shop context missing"))
		return "", false
	}
	return shop, true
}

// AdminListRecommendations pages the shop's overrides.
func AdminListRecommendations(svc RecommendationStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop, ok := requireShop(w, r, logg)
		if !ok {
			return
		}
		query := r.URL.Query()
		page, err := svc.List(r.Context(), shop, pagination.Params{
			Cursor: strings.TrimSpace(query.Get("cursor")),
			Search: validators.SanitizeString(query.Get("search"), maxSearchLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminCreateRecommendation stores a new override; a missing handle is derived.
func AdminCreateRecommendation(svc RecommendationStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop, ok := requireShop(w, r, logg)
		if !ok {
			return
		}
		var payload upsertRecommendationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Upsert(r.Context(), shop, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// AdminUpdateRecommendation replaces the override stored at the path handle.
func AdminUpdateRecommendation(svc RecommendationStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop, ok := requireShop(w, r, logg)
		if !ok {
			return
		}
		handle := strings.TrimSpace(chi.URLParam(r, "handle"))
		if handle == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "handle is required"))
			return
		}
		var payload upsertRecommendationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.Handle = handle
		dto, err := svc.Upsert(r.Context(), shop, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// AdminDeleteRecommendation removes an override. Unknown ids answer
// deleted=false.
func AdminDeleteRecommendation(svc RecommendationStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop, ok := requireShop(w, r, logg)
		if !ok {
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recommendation id"))
			return
		}
		deleted, err := svc.Delete(r.Context(), shop, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": deleted})
	}
}

// AdminToggleRecommendation flips isActive relative to the caller's view.
func AdminToggleRecommendation(svc RecommendationStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop, ok := requireShop(w, r, logg)
		if !ok {
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recommendation id"))
			return
		}
		var payload toggleRecommendationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Toggle(r.Context(), shop, id, payload.CurrentIsActive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
