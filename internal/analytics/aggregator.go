package analytics

import (
	"sort"
	"time"

	"github.com/angelmondragon/easyrecs-backend/pkg/db/models"
	"github.com/angelmondragon/easyrecs-backend/pkg/enums"
)

type aggregator struct {
	cutoff     string
	allTime    Totals
	recent     Totals
	clicks     map[string]int64
	firstOrder []string
}

func newAggregator(now time.Time) *aggregator {
	return &aggregator{
		cutoff: RecentCutoff(now),
		clicks: map[string]int64{},
	}
}

func (a *aggregator) add(row models.AnalyticsCounter) {
	a.allTime.add(row.EventType, row.Count)
	// YYYY-MM-DD compares chronologically as a string.
	if row.EventDate >= a.cutoff {
		a.recent.add(row.EventType, row.Count)
	}
	if row.EventType != enums.AnalyticsEventClick {
		return
	}
	if _, seen := a.clicks[row.RecommendedProductID]; !seen {
		a.firstOrder = append(a.firstOrder, row.RecommendedProductID)
	}
	a.clicks[row.RecommendedProductID] += row.Count
}

func (a *aggregator) summary() Summary {
	ranked := make([]ProductClicks, 0, len(a.firstOrder))
	for _, id := range a.firstOrder {
		ranked = append(ranked, ProductClicks{ProductID: id, Clicks: a.clicks[id]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Clicks > ranked[j].Clicks
	})
	if len(ranked) > TopProductsLimit {
		ranked = ranked[:TopProductsLimit]
	}
	return Summary{AllTime: a.allTime, Last30Days: a.recent, TopProducts: ranked}
}
