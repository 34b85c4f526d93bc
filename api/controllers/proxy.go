package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/easyrecs-backend/api/middleware"
	"github.com/angelmondragon/easyrecs-backend/api/responses"
	"github.com/angelmondragon/easyrecs-backend/api/validators"
	"github.com/angelmondragon/easyrecs-backend/internal/analytics"
	"github.com/angelmondragon/easyrecs-backend/internal/recommendations"
	"github.com/angelmondragon/easyrecs-backend/internal/usage"
	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
	"github.com/angelmondragon/easyrecs-backend/pkg/metrics"
	"github.com/angelmondragon/easyrecs-backend/pkg/shopify"
)

const (
	defaultProxyLimit = 4
	maxTrackBodyBytes = 16 << 10

	sourceCustom = "custom"
	sourceNone   = "none"
)

var errTrailingJSON = errors.New("unexpected data after JSON body")

// RecommendationResolver picks the override for a storefront product.
type RecommendationResolver interface {
	Resolve(ctx context.Context, shopDomain, productID string) (recommendations.Resolution, error)
}

// UsageLedger is the quota surface used by the storefront and admin handlers.
type UsageLedger interface {
	EnsureShop(ctx context.Context, shopDomain string) (*models.Shop, error)
	CheckUsageLimit(ctx context.Context, shopDomain string, plan enums.Plan) (usage.Status, error)
	IncrementUsage(ctx context.Context, shopDomain string) error
	UpdatePlan(ctx context.Context, shopDomain string, plan enums.Plan) error
}

// EventRecorder persists one storefront analytics event.
type EventRecorder interface {
	Record(ctx context.Context, event analytics.Event) error
}

type proxyRecommendationsResponse struct {
	Recommendations []shopify.Product `json:"recommendations"`
	Source          string            `json:"source,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// ProxyRecommendations serves the storefront widget. Lookup failures degrade
// to an empty list with status 200.
func ProxyRecommendations(resolver RecommendationResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := strings.TrimSpace(r.URL.Query().Get("product_id"))
		if productID == "" {
			responses.WriteJSON(w, http.StatusOK, proxyRecommendationsResponse{
				Recommendations: []shopify.Product{},
				Error:           "product_id required",
			})
			return
		}
		limit := proxyLimit(r)

		ctx := r.Context()
		res, err := resolver.Resolve(ctx, middleware.ShopDomainFromContext(ctx), productID)
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithFields(ctx, responses.ErrorFields(err)), "proxy.recommendations.fetch_failed")
			}
			responses.WriteJSON(w, http.StatusOK, proxyRecommendationsResponse{
				Recommendations: []shopify.Product{},
				Source:          sourceNone,
				Error:           "fetch_failed",
			})
			return
		}

		products := res.Products
		if len(products) > limit {
			products = products[:limit]
		}
		source := sourceNone
		if len(products) > 0 {
			source = sourceCustom
		}
		responses.WriteJSON(w, http.StatusOK, proxyRecommendationsResponse{Recommendations: products, Source: source})
	}
}

// proxyLimit reads the storefront limit. An explicit 0 asks for nothing;
// other non-positive or non-numeric values fall back to the default.
func proxyLimit(r *http.Request) int {
	if strings.TrimSpace(r.URL.Query().Get("limit")) == "0" {
		return 0
	}
	return validators.QueryIntOrDefault(r, "limit", defaultProxyLimit)
}

type trackRequest struct {
	EventType            json.RawMessage `json:"event_type"`
	SourceProductID      string          `json:"source_product_id"`
	RecommendedProductID string          `json:"recommended_product_id"`
}

// eventType reports the raw event_type and whether it was present at all.
// Non-string values are kept verbatim so they fail enum parsing.
func (t trackRequest) eventType() (string, bool) {
	raw := strings.TrimSpace(string(t.EventType))
	if raw == "" || raw == "null" {
		return "", false
	}
	var value string
	if err := json.Unmarshal(t.EventType, &value); err != nil {
		return raw, true
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// decodeTrack reads exactly one JSON object from body.
func decodeTrack(body io.Reader) (trackRequest, error) {
	var payload trackRequest
	dec := json.NewDecoder(io.LimitReader(body, maxTrackBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		return trackRequest{}, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return trackRequest{}, errTrailingJSON
	}
	return payload, nil
}

type errorBody struct {
	Error string `json:"error"`
}

type limitReachedBody struct {
	Error string     `json:"error"`
	Used  int64      `json:"used"`
	Limit *int64     `json:"limit"`
	Plan  enums.Plan `json:"plan"`
}

// ProxyTrack records a storefront event against the shop quota.
func ProxyTrack(ledger UsageLedger, recorder EventRecorder, meters *metrics.RecommendationMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := decodeTrack(r.Body)
		if err != nil {
			responses.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
			return
		}
		rawType, hasType := payload.eventType()
		payload.SourceProductID = strings.TrimSpace(payload.SourceProductID)
		payload.RecommendedProductID = strings.TrimSpace(payload.RecommendedProductID)

		if !hasType || payload.SourceProductID == "" || payload.RecommendedProductID == "" {
			responses.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "Missing required fields: event_type, source_product_id, recommended_product_id"})
			return
		}
		eventType, err := enums.ParseAnalyticsEventType(rawType)
		if err != nil {
			responses.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid event_type. Must be one of: " + joinEventTypes()})
			return
		}

		ctx := r.Context()
		shop := middleware.ShopDomainFromContext(ctx)
		fail := func(step string, err error) {
			if logg != nil {
				fields := responses.ErrorFields(err)
				fields["step"] = step
				logg.Error(logg.WithFields(ctx, fields), "proxy.track.failed", err)
			}
			responses.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "tracking_failed"})
		}

		if _, err := ledger.EnsureShop(ctx, shop); err != nil {
			fail("ensure_shop", err)
			return
		}
		status, err := ledger.CheckUsageLimit(ctx, shop, "")
		if err != nil {
			fail("check_usage", err)
			return
		}
		if !status.HasCapacity {
			meters.IncQuotaRejection(status.Plan.String())
			responses.WriteJSON(w, http.StatusTooManyRequests, limitReachedBody{
				Error: "limit_reached",
				Used:  status.Used,
				Limit: status.Limit,
				Plan:  status.Plan,
			})
			return
		}

		if err := recorder.Record(ctx, analytics.Event{
			ShopDomain:           shop,
			SourceProductID:      payload.SourceProductID,
			RecommendedProductID: payload.RecommendedProductID,
			EventType:            eventType,
		}); err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				responses.WriteJSON(w, http.StatusBadRequest, errorBody{Error: pkgerrors.As(err).PublicMessage()})
				return
			}
			fail("record_event", err)
			return
		}
		if err := ledger.IncrementUsage(ctx, shop); err != nil {
			fail("increment_usage", err)
			return
		}

		meters.IncTrackedEvent(eventType.String())
		responses.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func joinEventTypes() string {
	types := enums.AnalyticsEventTypes()
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, ", ")
}
