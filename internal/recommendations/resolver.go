package recommendations

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
	"github.com/angelmondragon/easyrecs-backend/pkg/metrics"
	"github.com/angelmondragon/easyrecs-backend/pkg/shopify"
)

// DefaultScanLimit bounds the candidate overrides read per resolve call.
const DefaultScanLimit = 10

type candidateStore interface {
	ActiveCandidates(ctx context.Context, shopDomain, productID string, limit int) ([]models.RecommendationOverride, error)
}

// Resolution is the storefront answer for one source product.
type Resolution struct {
	Products []shopify.Product
	// OverrideHandle is empty when no override matched.
	OverrideHandle string
}

// Matched reports whether an override supplied the products.
func (r Resolution) Matched() bool {
	return r.OverrideHandle != ""
}

// ResolverParams groups dependencies for the resolver.
type ResolverParams struct {
	Repo      candidateStore
	Catalog   Catalog
	Metrics   *metrics.RecommendationMetrics
	ScanLimit int
}

// Resolver picks the authoritative active override for a product.
type Resolver struct {
	repo      candidateStore
	catalog   Catalog
	metrics   *metrics.RecommendationMetrics
	scanLimit int
}

func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recommendation repo is required")
	}
	limit := params.ScanLimit
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	return &Resolver{repo: params.Repo, catalog: params.Catalog, metrics: params.Metrics, scanLimit: limit}, nil
}

// Resolve returns the recommended products of the best active override whose
// source product id contains productID. No match is an empty, successful
// result.
func (r *Resolver) Resolve(ctx context.Context, shopDomain, productID string) (res Resolution, err error) {
	started := time.Now()
	defer func() {
		source := metrics.SourceNone
		switch {
		case err != nil:
			source = metrics.SourceError
		case res.Matched():
			source = metrics.SourceOverride
		}
		r.metrics.ObserveResolve(source, time.Since(started))
	}()

	res = Resolution{Products: []shopify.Product{}}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return res, nil
	}

	candidates, err := r.repo.ActiveCandidates(ctx, shopDomain, productID, r.scanLimit)
	if err != nil {
		return res, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recommendation candidates")
	}

	var best *models.RecommendationOverride
	for i := range candidates {
		// LIKE folds case on some dialects; containment stays exact.
		if strings.Contains(candidates[i].SourceProduct, productID) {
			best = &candidates[i]
			break
		}
	}
	if best == nil {
		return res, nil
	}

	ids := []string(best.RecommendedProducts)
	res.OverrideHandle = best.Handle
	if r.catalog == nil {
		res.Products = idOnlyProducts(ids)
		return res, nil
	}
	products, err := r.catalog.Products(ctx, shopDomain, ids)
	if err != nil {
		return Resolution{Products: []shopify.Product{}}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recommended products")
	}
	res.Products = products
	return res, nil
}
