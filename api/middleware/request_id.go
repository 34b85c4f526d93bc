package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
	"github.com/angelmondragon/easyrecs-backend/pkg/types"
)

// Inbound ids longer than this or outside the charset are replaced.
const maxRequestIDLength = 64

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func acceptRequestID(raw string) bool {
	return raw != "" && len(raw) <= maxRequestIDLength && requestIDPattern.MatchString(raw)
}

// RequestID echoes a well-formed inbound X-Request-Id or mints a UUID, and
// binds it to the request logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(types.RequestIDHeader)
			if !acceptRequestID(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(types.RequestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
