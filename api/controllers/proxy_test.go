package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/easyrecs-backend/api/middleware"
	"github.com/angelmondragon/easyrecs-backend/internal/analytics"
	"github.com/angelmondragon/easyrecs-backend/internal/recommendations"
	"github.com/angelmondragon/easyrecs-backend/internal/usage"
	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
	"github.com/angelmondragon/easyrecs-backend/pkg/shopify"
)

const testShop = "demo.myshopify.com"

type stubResolver struct {
	res     recommendations.Resolution
	err     error
	gotShop string
	gotID   string
}

func (s *stubResolver) Resolve(_ context.Context, shop, productID string) (recommendations.Resolution, error) {
	s.gotShop, s.gotID = shop, productID
	return s.res, s.err
}

type stubLedger struct {
	status     usage.Status
	ensureErr  error
	checkErr   error
	incrErr    error
	planErr    error
	increments int
	plan       enums.Plan
	calls      []string
}

func (s *stubLedger) EnsureShop(context.Context, string) (*models.Shop, error) {
	s.calls = append(s.calls, "ensure")
	if s.ensureErr != nil {
		return nil, s.ensureErr
	}
	return &models.Shop{ID: testShop}, nil
}

func (s *stubLedger) CheckUsageLimit(context.Context, string, enums.Plan) (usage.Status, error) {
	s.calls = append(s.calls, "check")
	return s.status, s.checkErr
}

func (s *stubLedger) IncrementUsage(context.Context, string) error {
	s.calls = append(s.calls, "increment")
	if s.incrErr != nil {
		return s.incrErr
	}
	s.increments++
	return nil
}

func (s *stubLedger) UpdatePlan(_ context.Context, _ string, plan enums.Plan) error {
	s.calls = append(s.calls, "plan")
	if s.planErr != nil {
		return s.planErr
	}
	s.plan = plan
	return nil
}

type stubRecorder struct {
	events []analytics.Event
	err    error
}

func (s *stubRecorder) Record(_ context.Context, event analytics.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func withShop(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithShopDomain(req.Context(), testShop))
}

func int64Ptr(v int64) *int64 { return &v }

func TestProxyRecommendationsRequiresProductID(t *testing.T) {
	resolver := &stubResolver{}
	rec := httptest.NewRecorder()
	ProxyRecommendations(resolver, nil).ServeHTTP(rec, withShop(httptest.NewRequest(http.MethodGet, "/proxy/recommendations", nil)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"recommendations":[],"error":"product_id required"}` {
		t.Fatalf("unexpected body %s", got)
	}
	if resolver.gotID != "" {
		t.Fatalf("resolver should not run")
	}
}

func TestProxyRecommendationsAppliesLimit(t *testing.T) {
	resolver := &stubResolver{res: recommendations.Resolution{
		OverrideHandle: "rec-1",
		Products:       []shopify.Product{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}},
	}}

	cases := []struct {
		query  string
		want   int
		source string
	}{
		{"", 4, "custom"},
		{"&limit=2", 2, "custom"},
		{"&limit=abc", 4, "custom"},
		{"&limit=-3", 4, "custom"},
		{"&limit=10", 5, "custom"},
		{"&limit=0", 0, "none"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := withShop(httptest.NewRequest(http.MethodGet, "/proxy/recommendations?product_id=P1"+tc.query, nil))
		ProxyRecommendations(resolver, nil).ServeHTTP(rec, req)

		var body proxyRecommendationsResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Recommendations) != tc.want || body.Source != tc.source {
			t.Fatalf("%q: expected %d %s got %d %s", tc.query, tc.want, tc.source, len(body.Recommendations), body.Source)
		}
	}
	if resolver.gotShop != testShop || resolver.gotID != "P1" {
		t.Fatalf("unexpected resolver args %s %s", resolver.gotShop, resolver.gotID)
	}
}

func TestProxyRecommendationsNoMatch(t *testing.T) {
	resolver := &stubResolver{res: recommendations.Resolution{Products: []shopify.Product{}}}
	rec := httptest.NewRecorder()
	ProxyRecommendations(resolver, nil).ServeHTTP(rec, withShop(httptest.NewRequest(http.MethodGet, "/proxy/recommendations?product_id=P9", nil)))

	if got := strings.TrimSpace(rec.Body.String()); got != `{"recommendations":[],"source":"none"}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestProxyRecommendationsDegradesOnFailure(t *testing.T) {
	resolver := &stubResolver{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	rec := httptest.NewRecorder()
	ProxyRecommendations(resolver, nil).ServeHTTP(rec, withShop(httptest.NewRequest(http.MethodGet, "/proxy/recommendations?product_id=P1", nil)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"recommendations":[],"source":"none","error":"fetch_failed"}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func postTrack(handler http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := withShop(httptest.NewRequest(http.MethodPost, "/proxy/recommendations", strings.NewReader(body)))
	handler.ServeHTTP(rec, req)
	return rec
}

func TestProxyTrackValidation(t *testing.T) {
	ledger := &stubLedger{status: usage.Status{HasCapacity: true}}
	handler := ProxyTrack(ledger, &stubRecorder{}, nil, nil)

	cases := []struct {
		body string
		want string
	}{
		{`{not json`, `{"error":"Invalid JSON body"}`},
		{`{"event_type":"click","source_product_id":"1","recommended_product_id":"2"}garbage`, `{"error":"Invalid JSON body"}`},
		{`{"event_type":"click","source_product_id":"1","recommended_product_id":"2"}{}`, `{"error":"Invalid JSON body"}`},
		{`{"event_type":"click","source_product_id":"1","recommended_product_id":"2"}}`, `{"error":"Invalid JSON body"}`},
		{`{"event_type":null,"source_product_id":"1","recommended_product_id":"2"}`, `{"error":"Missing required fields: event_type, source_product_id, recommended_product_id"}`},
		{`{"event_type":5,"source_product_id":"1","recommended_product_id":"2"}`, `{"error":"Invalid event_type. Must be one of: impression, click, add_to_cart"}`},
		{`{"event_type":"click","source_product_id":"1"}`, `{"error":"Missing required fields: event_type, source_product_id, recommended_product_id"}`},
		{`{"event_type":"purchase","source_product_id":"1","recommended_product_id":"2"}`, `{"error":"Invalid event_type. Must be one of: impression, click, add_to_cart"}`},
	}
	for _, tc := range cases {
		rec := postTrack(handler, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", tc.body, rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != tc.want {
			t.Fatalf("%s: unexpected body %s", tc.body, got)
		}
	}
	if len(ledger.calls) != 0 {
		t.Fatalf("ledger should not be touched on invalid input, got %v", ledger.calls)
	}
}

func TestProxyTrackRecordsAndIncrements(t *testing.T) {
	ledger := &stubLedger{status: usage.Status{Used: 99, Limit: int64Ptr(100), Remaining: int64Ptr(1), HasCapacity: true, Plan: enums.PlanFree}}
	recorder := &stubRecorder{}
	rec := postTrack(ProxyTrack(ledger, recorder, nil, nil), `{"event_type":"click","source_product_id":"1","recommended_product_id":"2"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true}` {
		t.Fatalf("unexpected body %s", got)
	}
	if strings.Join(ledger.calls, ",") != "ensure,check,increment" {
		t.Fatalf("unexpected call order %v", ledger.calls)
	}
	if len(recorder.events) != 1 || recorder.events[0].EventType != enums.AnalyticsEventClick || recorder.events[0].ShopDomain != testShop {
		t.Fatalf("unexpected events %+v", recorder.events)
	}
}

func TestProxyTrackAcceptsPaddedBody(t *testing.T) {
	ledger := &stubLedger{status: usage.Status{HasCapacity: true}}
	recorder := &stubRecorder{}
	rec := postTrack(ProxyTrack(ledger, recorder, nil, nil), "{\"event_type\":\" add_to_cart \",\"source_product_id\":\"1\",\"recommended_product_id\":\"2\"}\n\n")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(recorder.events) != 1 || recorder.events[0].EventType != enums.AnalyticsEventAddToCart {
		t.Fatalf("unexpected events %+v", recorder.events)
	}
}

func TestProxyTrackRejectsOverQuota(t *testing.T) {
	ledger := &stubLedger{status: usage.Status{Used: 100, Limit: int64Ptr(100), Remaining: int64Ptr(0), HasCapacity: false, Plan: enums.PlanFree}}
	recorder := &stubRecorder{}
	rec := postTrack(ProxyTrack(ledger, recorder, nil, nil), `{"event_type":"impression","source_product_id":"1","recommended_product_id":"2"}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"limit_reached","used":100,"limit":100,"plan":"Free"}` {
		t.Fatalf("unexpected body %s", got)
	}
	if len(recorder.events) != 0 || ledger.increments != 0 {
		t.Fatalf("rejected events must not be recorded")
	}
}

func TestProxyTrackFailuresAreOpaque(t *testing.T) {
	body := `{"event_type":"click","source_product_id":"1","recommended_product_id":"2"}`
	cases := map[string]struct {
		ledger   *stubLedger
		recorder *stubRecorder
	}{
		"ensure":    {&stubLedger{ensureErr: errors.New("db")}, &stubRecorder{}},
		"check":     {&stubLedger{checkErr: errors.New("db")}, &stubRecorder{}},
		"record":    {&stubLedger{status: usage.Status{HasCapacity: true}}, &stubRecorder{err: errors.New("db")}},
		"increment": {&stubLedger{status: usage.Status{HasCapacity: true}, incrErr: errors.New("db")}, &stubRecorder{}},
	}
	for name, tc := range cases {
		rec := postTrack(ProxyTrack(tc.ledger, tc.recorder, nil, nil), body)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500 got %d", name, rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"tracking_failed"}` {
			t.Fatalf("%s: unexpected body %s", name, got)
		}
	}
}

func TestProxyTrackSurfacesRecorderValidation(t *testing.T) {
	ledger := &stubLedger{status: usage.Status{HasCapacity: true}}
	recorder := &stubRecorder{err: pkgerrors.New(pkgerrors.CodeValidation, "source_product_id is too long")}
	rec := postTrack(ProxyTrack(ledger, recorder, nil, nil), `{"event_type":"click","source_product_id":"1","recommended_product_id":"2"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "source_product_id is too long") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if ledger.increments != 0 {
		t.Fatalf("rejected events must not consume quota")
	}
}
