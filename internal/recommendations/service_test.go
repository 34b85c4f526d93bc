package recommendations

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
	"github.com/angelmondragon/easyrecs-backend/pkg/pagination"
	"github.com/angelmondragon/easyrecs-backend/pkg/shopify"
)

const shopDomain = "demo.myshopify.com"

type tickingClock struct {
	at time.Time
}

func (c *tickingClock) Now() time.Time {
	c.at = c.at.Add(time.Second)
	return c.at
}

type stubCatalog struct {
	products map[string]shopify.Product
	err      error
	calls    int
}

func (s *stubCatalog) Products(_ context.Context, _ string, ids []string) ([]shopify.Product, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := []shopify.Product{}
	for _, id := range ids {
		if p, ok := s.products[shopify.ProductGID(id)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, catalog Catalog) (*Service, *Repository, *tickingClock) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	clock := &tickingClock{at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{Repo: repo, Catalog: catalog, Now: clock.Now})
	require.NoError(t, err)
	return svc, repo, clock
}

func TestUpsertValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, shopDomain, UpsertInput{RecommendedProductIDs: []string{"2"}})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Upsert(ctx, shopDomain, UpsertInput{SourceProductID: "1", RecommendedProductIDs: []string{" ", ""}})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestUpsertDefaultsHandleAndPersistsZeroValues(t *testing.T) {
	svc, _, clock := newTestService(t, nil)
	ctx := context.Background()

	dto, err := svc.Upsert(ctx, shopDomain, UpsertInput{
		SourceProductID:       "gid://shopify/Product/42",
		RecommendedProductIDs: []string{"gid://shopify/Product/7", " ", "gid://shopify/Product/8"},
		Priority:              0,
		IsActive:              false,
	})
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("rec-42-%d", clock.at.UnixMilli()), dto.Handle)
	require.Equal(t, []string{"gid://shopify/Product/7", "gid://shopify/Product/8"}, dto.RecommendedProductIDs)
	require.Equal(t, 0, dto.Priority)
	require.False(t, dto.IsActive)
	require.Len(t, dto.RecommendedProducts, 2)
}

func TestUpsertReplacesWholesaleAtHandle(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, shopDomain, UpsertInput{
		Handle:                "rec-a",
		SourceProductID:       "P1",
		RecommendedProductIDs: []string{"A", "B"},
		Priority:              3,
		IsActive:              true,
	})
	require.NoError(t, err)

	second, err := svc.Upsert(ctx, shopDomain, UpsertInput{
		Handle:                "rec-a",
		SourceProductID:       "P2",
		RecommendedProductIDs: []string{"C"},
		Priority:              1,
		IsActive:              false,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "P2", second.SourceProductID)
	require.Equal(t, []string{"C"}, second.RecommendedProductIDs)
	require.Equal(t, 1, second.Priority)
	require.False(t, second.IsActive)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))

	page, err := svc.List(ctx, shopDomain, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Recommendations, 1)
}

func TestUpsertSnapshotsSourceFromCatalog(t *testing.T) {
	catalog := &stubCatalog{products: map[string]shopify.Product{
		"gid://shopify/Product/1": {ID: "gid://shopify/Product/1", Title: "Blue Shirt", Handle: "blue-shirt"},
		"gid://shopify/Product/2": {ID: "gid://shopify/Product/2", Title: "Red Hat", Handle: "red-hat"},
	}}
	svc, repo, _ := newTestService(t, catalog)
	ctx := context.Background()

	dto, err := svc.Upsert(ctx, shopDomain, UpsertInput{
		Handle:                "rec-1",
		SourceProductID:       "gid://shopify/Product/1",
		RecommendedProductIDs: []string{"2", "999"},
		IsActive:              true,
	})
	require.NoError(t, err)
	require.NotNil(t, dto.SourceProduct)
	require.Equal(t, "Blue Shirt", dto.SourceProduct.Title)
	require.Equal(t, []shopify.Product{catalog.products["gid://shopify/Product/2"]}, dto.RecommendedProducts)

	stored, err := repo.FindByHandle(ctx, shopDomain, "rec-1")
	require.NoError(t, err)
	require.Equal(t, "blue-shirt", stored.SourceHandle)
}

func TestUpsertFailsWhenCatalogFails(t *testing.T) {
	svc, _, _ := newTestService(t, &stubCatalog{err: errors.New("boom")})
	_, err := svc.Upsert(context.Background(), shopDomain, UpsertInput{SourceProductID: "1", RecommendedProductIDs: []string{"2"}})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	dto, err := svc.Upsert(ctx, shopDomain, UpsertInput{SourceProductID: "1", RecommendedProductIDs: []string{"2"}})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, shopDomain, dto.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = svc.Delete(ctx, shopDomain, dto.ID)
	require.NoError(t, err)
	require.False(t, deleted)

	_, err = svc.Delete(ctx, shopDomain, uuid.Nil)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDeleteIsScopedToShop(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	dto, err := svc.Upsert(ctx, shopDomain, UpsertInput{SourceProductID: "1", RecommendedProductIDs: []string{"2"}})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, "other.myshopify.com", dto.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestToggleFlipsOnlyActiveFlag(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	dto, err := svc.Upsert(ctx, shopDomain, UpsertInput{
		Handle:                "rec-t",
		SourceProductID:       "1",
		RecommendedProductIDs: []string{"2", "3"},
		Priority:              4,
		IsActive:              true,
	})
	require.NoError(t, err)

	toggled, err := svc.Toggle(ctx, shopDomain, dto.ID, true)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)
	require.Equal(t, dto.RecommendedProductIDs, toggled.RecommendedProductIDs)
	require.Equal(t, 4, toggled.Priority)

	// Stale current value: last write wins.
	toggled, err = svc.Toggle(ctx, shopDomain, dto.ID, true)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)

	toggled, err = svc.Toggle(ctx, shopDomain, dto.ID, false)
	require.NoError(t, err)
	require.True(t, toggled.IsActive)

	_, err = svc.Toggle(ctx, shopDomain, uuid.New(), true)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestListPagesMostRecentFirst(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 23; i++ {
		_, err := svc.Upsert(ctx, shopDomain, UpsertInput{
			Handle:                fmt.Sprintf("rec-%02d", i),
			SourceProductID:       fmt.Sprintf("%d", i),
			RecommendedProductIDs: []string{"x"},
		})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, shopDomain, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, first.Recommendations, pagination.PageSize)
	require.True(t, first.PageInfo.HasNextPage)
	require.False(t, first.PageInfo.HasPreviousPage)
	require.NotEmpty(t, first.PageInfo.EndCursor)
	require.Equal(t, "rec-22", first.Recommendations[0].Handle)
	require.Equal(t, "rec-03", first.Recommendations[19].Handle)

	second, err := svc.List(ctx, shopDomain, pagination.Params{Cursor: first.PageInfo.EndCursor})
	require.NoError(t, err)
	require.Len(t, second.Recommendations, 3)
	require.False(t, second.PageInfo.HasNextPage)
	require.True(t, second.PageInfo.HasPreviousPage)
	require.Equal(t, "rec-02", second.Recommendations[0].Handle)
	require.Equal(t, "rec-00", second.Recommendations[2].Handle)
}

func TestListSearchIgnoresCase(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, handle := range []string{"summer-shirts", "winter-hats", "SUMMER-hats"} {
		_, err := svc.Upsert(ctx, shopDomain, UpsertInput{Handle: handle, SourceProductID: "1", RecommendedProductIDs: []string{"2"}})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, shopDomain, pagination.Params{Search: "Summer"})
	require.NoError(t, err)
	require.Len(t, page.Recommendations, 2)

	page, err = svc.List(ctx, shopDomain, pagination.Params{Search: "100%"})
	require.NoError(t, err)
	require.Empty(t, page.Recommendations)
}

func TestListRejectsBadCursor(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.List(context.Background(), shopDomain, pagination.Params{Cursor: "!!!"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestListDegradesWhenCatalogFails(t *testing.T) {
	svc, repo, clock := newTestService(t, nil)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, shopDomain, UpsertInput{SourceProductID: "1", RecommendedProductIDs: []string{"2"}})
	require.NoError(t, err)

	failing, err := NewService(ServiceParams{Repo: repo, Catalog: &stubCatalog{err: errors.New("down")}, Now: clock.Now})
	require.NoError(t, err)

	page, err := failing.List(ctx, shopDomain, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Recommendations, 1)
	require.Equal(t, []shopify.Product{{ID: "2"}}, page.Recommendations[0].RecommendedProducts)
}
