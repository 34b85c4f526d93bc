package recommendations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/easyrecs-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
	"github.com/angelmondragon/easyrecs-backend/pkg/pagination"
	"github.com/angelmondragon/easyrecs-backend/pkg/shopify"
)

// Catalog hydrates product ids into storefront detail, preserving input order.
type Catalog interface {
	Products(ctx context.Context, shopDomain string, ids []string) ([]shopify.Product, error)
}

type overrideStore interface {
	UpsertByHandle(ctx context.Context, rec *models.RecommendationOverride) (*models.RecommendationOverride, error)
	Delete(ctx context.Context, shopDomain string, id uuid.UUID) (bool, error)
	SetActive(ctx context.Context, shopDomain string, id uuid.UUID, active bool, now time.Time) (*models.RecommendationOverride, error)
	List(ctx context.Context, shopDomain string, cursor *pagination.Cursor, search string, limit int) ([]models.RecommendationOverride, error)
}

// ServiceParams groups dependencies for the override store.
type ServiceParams struct {
	Repo    overrideStore
	Catalog Catalog
	Logger  *logger.Logger
	Now     func() time.Time
}

// Service manages the admin lifecycle of overrides.
type Service struct {
	repo    overrideStore
	catalog Catalog
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the override store. Catalog may be nil, in which case
// products are reported by id only.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recommendation repo is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{repo: params.Repo, catalog: params.Catalog, logg: params.Logger, now: now}, nil
}

// DefaultHandle derives a creation handle from the source product id and t.
func DefaultHandle(sourceProductID string, t time.Time) string {
	return fmt.Sprintf("rec-%s-%d", shopify.LegacyProductID(sourceProductID), t.UnixMilli())
}

// Upsert validates input and replaces the override stored at its handle.
func (s *Service) Upsert(ctx context.Context, shopDomain string, input UpsertInput) (*OverrideDTO, error) {
	source := strings.TrimSpace(input.SourceProductID)
	if source == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sourceProductId is required")
	}
	ids := make([]string, 0, len(input.RecommendedProductIDs))
	for _, id := range input.RecommendedProductIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recommendedProductIds must contain at least one product")
	}

	now := s.now().UTC()
	handle := strings.TrimSpace(input.Handle)
	if handle == "" {
		handle = DefaultHandle(source, now)
	}

	rec := &models.RecommendationOverride{
		ID:                  uuid.New(),
		ShopDomain:          shopDomain,
		Handle:              handle,
		SourceProduct:       source,
		RecommendedProducts: dbtypes.StringList(ids),
		Priority:            input.Priority,
		IsActive:            input.IsActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if s.catalog != nil {
		products, err := s.catalog.Products(ctx, shopDomain, []string{source})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source product")
		}
		if len(products) > 0 {
			rec.SourceTitle = products[0].Title
			rec.SourceHandle = products[0].Handle
		}
	}

	stored, err := s.repo.UpsertByHandle(ctx, rec)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert recommendation")
	}
	dto := toDTO(*stored)
	s.hydrate(ctx, shopDomain, []*OverrideDTO{&dto})
	return &dto, nil
}

// Delete removes the override. A missing id is reported as deleted=false.
func (s *Service) Delete(ctx context.Context, shopDomain string, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "id is required")
	}
	deleted, err := s.repo.Delete(ctx, shopDomain, id)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete recommendation")
	}
	return deleted, nil
}

// Toggle writes isActive = !currentIsActive. Concurrent toggles are last
// write wins.
func (s *Service) Toggle(ctx context.Context, shopDomain string, id uuid.UUID, currentIsActive bool) (*OverrideDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id is required")
	}
	rec, err := s.repo.SetActive(ctx, shopDomain, id, !currentIsActive, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "recommendation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle recommendation")
	}
	dto := toDTO(*rec)
	return &dto, nil
}

// List returns one page of overrides, most recently updated first.
func (s *Service) List(ctx context.Context, shopDomain string, params pagination.Params) (ListPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return ListPage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, shopDomain, cursor, params.Search, pagination.LimitWithBuffer())
	if err != nil {
		return ListPage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recommendations")
	}

	page := ListPage{
		Recommendations: make([]OverrideDTO, 0, pagination.PageSize),
		PageInfo:        pagination.PageInfo{HasPreviousPage: cursor != nil},
	}
	if len(rows) > pagination.PageSize {
		page.PageInfo.HasNextPage = true
		rows = rows[:pagination.PageSize]
	}
	for _, row := range rows {
		page.Recommendations = append(page.Recommendations, toDTO(row))
	}
	if n := len(rows); n > 0 {
		last := rows[n-1]
		page.PageInfo.EndCursor = pagination.EncodeCursor(pagination.Cursor{At: last.UpdatedAt, ID: last.ID})
	}

	ptrs := make([]*OverrideDTO, 0, len(page.Recommendations))
	for i := range page.Recommendations {
		ptrs = append(ptrs, &page.Recommendations[i])
	}
	s.hydrate(ctx, shopDomain, ptrs)
	return page, nil
}

// hydrate swaps id-only products for catalog detail in one batched lookup.
// Lookup failures leave the id-only view in place.
func (s *Service) hydrate(ctx context.Context, shopDomain string, dtos []*OverrideDTO) {
	if s.catalog == nil || len(dtos) == 0 {
		return
	}
	seen := map[string]struct{}{}
	ids := []string{}
	for _, dto := range dtos {
		for _, id := range dto.RecommendedProductIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return
	}

	products, err := s.catalog.Products(ctx, shopDomain, ids)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "recommendations.hydrate_failed")
		}
		return
	}
	byID := make(map[string]shopify.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, dto := range dtos {
		resolved := make([]shopify.Product, 0, len(dto.RecommendedProductIDs))
		for _, id := range dto.RecommendedProductIDs {
			if p, ok := byID[shopify.ProductGID(id)]; ok {
				resolved = append(resolved, p)
			}
		}
		dto.RecommendedProducts = resolved
	}
}
