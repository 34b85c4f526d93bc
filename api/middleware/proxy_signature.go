package middleware

import (
	"net/http"

	"github.com/angelmondragon/easyrecs-backend/api/responses"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
	"github.com/angelmondragon/easyrecs-backend/pkg/shopify"
)

// ProxySignature verifies app proxy requests and seeds the context with the
// shop named in the signed query. skipVerify trusts the query as-is and is
// refused by config outside development.
func ProxySignature(apiSecret string, skipVerify bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			if !skipVerify {
				if err := shopify.VerifyProxySignature(apiSecret, query); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid proxy signature"))
					return
				}
			}

			shop, err := shopify.NormalizeShopDomain(query.Get("shop"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid shop"))
				return
			}

			ctx := WithShopDomain(r.Context(), shop)
			if logg != nil {
				ctx = logg.WithShopDomain(ctx, shop)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
