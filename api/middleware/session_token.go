package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/easyrecs-backend/api/responses"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
	"github.com/angelmondragon/easyrecs-backend/pkg/shopify"
)

// SessionToken validates the embedded admin bearer token and seeds the
// request context with the shop from its dest claim.
func SessionToken(apiKey, apiSecret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return sessionToken(apiKey, apiSecret, time.Now, logg)
}

func sessionToken(apiKey, apiSecret string, now func() time.Time, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := shopify.ParseSessionToken(apiKey, apiSecret, token, now())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			shop, err := claims.ShopDomain()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token destination"))
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
