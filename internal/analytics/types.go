package analytics

import (
	"time"

	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
)

// TopProductsLimit bounds the topProducts ranking.
const TopProductsLimit = 10

// Event is one storefront interaction to count.
type Event struct {
	ShopDomain           string
	SourceProductID      string
	RecommendedProductID string
	EventType            enums.AnalyticsEventType
	OccurredAt           time.Time
}

// Totals counts events per type.
type Totals struct {
	Impressions int64 `json:"impressions"`
	Clicks      int64 `json:"clicks"`
	AddToCarts  int64 `json:"addToCarts"`
}

func (t *Totals) add(eventType enums.AnalyticsEventType, n int64) {
	switch eventType {
	case enums.AnalyticsEventImpression:
		t.Impressions += n
	case enums.AnalyticsEventClick:
		t.Clicks += n
	case enums.AnalyticsEventAddToCart:
		t.AddToCarts += n
	}
}

// ProductClicks is one row of the click ranking.
type ProductClicks struct {
	ProductID string `json:"productId"`
	Clicks    int64  `json:"clicks"`
}

// Summary is the dashboard view of a shop's counters.
type Summary struct {
	AllTime     Totals          `json:"allTime"`
	Last30Days  Totals          `json:"last30Days"`
	TopProducts []ProductClicks `json:"topProducts"`
}

// EmptySummary is the zero summary with a non-nil ranking.
func EmptySummary() Summary {
	return Summary{TopProducts: []ProductClicks{}}
}
