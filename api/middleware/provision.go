package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/easyrecs-backend/api/responses"
	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
)

type shopEnsurer interface {
	EnsureShop(ctx context.Context, shopDomain string) (*models.Shop, error)
}

// ProvisionShop creates the shop row on first admin contact. It must run
// after the middleware that seeds the shop domain.
func ProvisionShop(ensurer shopEnsurer, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if ensurer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shop := ShopDomainFromContext(r.Context()); shop != "" {
				if _, err := ensurer.EnsureShop(r.Context(), shop); err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
