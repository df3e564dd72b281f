// Package screener implements the screening engine: the pure filter
// evaluator, the per-user criteria registry, the configuration session
// state machine, and the engine tying them to the quote provider.
package screener

import (
	"fmt"
	"time"

	"github.com/macks-labs/coinscreen/internal/criteria"
	"github.com/macks-labs/coinscreen/internal/models"
)

// predicate tests one criterion bound against one quote. Returning
// false when required data is missing keeps screening fail-closed.
type predicate func(q *models.AssetQuote, bound float64, now time.Time) bool

// predicates maps every criterion key to its test. The criterion table
// and this map must stay in sync; Evaluate panics on a key with no
// predicate rather than silently skipping a filter.
var predicates = map[string]predicate{
	"market_cap_min": func(q *models.AssetQuote, bound float64, _ time.Time) bool {
		return q.MarketCap >= bound
	},
	"market_cap_max": func(q *models.AssetQuote, bound float64, _ time.Time) bool {
		return q.MarketCap <= bound
	},
	"volume_24h_min": func(q *models.AssetQuote, bound float64, _ time.Time) bool {
		return q.Volume24h >= bound
	},
	"change_24h_min": func(q *models.AssetQuote, bound float64, _ time.Time) bool {
		return q.PercentChange24h >= bound
	},
	"change_7d_min": func(q *models.AssetQuote, bound float64, _ time.Time) bool {
		return q.PercentChange7d >= bound
	},
	"change_7d_max": func(q *models.AssetQuote, bound float64, _ time.Time) bool {
		return q.PercentChange7d <= bound
	},
	"change_30d_min": func(q *models.AssetQuote, bound float64, _ time.Time) bool {
		return q.PercentChange30d >= bound
	},
	"change_30d_max": func(q *models.AssetQuote, bound float64, _ time.Time) bool {
		return q.PercentChange30d <= bound
	},
	"volume_mcap_ratio_min": func(q *models.AssetQuote, bound float64, _ time.Time) bool {
		return q.VolumeToMarketCapRatio() >= bound
	},
	"max_age_days": func(q *models.AssetQuote, bound float64, now time.Time) bool {
		days, known := q.DaysSinceLaunch(now)
		if !known {
			return false
		}
		return float64(days) <= bound
	},
	"circulating_supply_min": func(q *models.AssetQuote, bound float64, _ time.Time) bool {
		return q.CirculatingSupply >= bound
	},
}

// Evaluate returns the quotes satisfying every criterion in snap, in
// the order they arrived. All bounds are inclusive and AND-composed.
// Quotes with an empty symbol are treated as malformed and never match.
func Evaluate(quotes []models.AssetQuote, snap criteria.Snapshot, now time.Time) []models.AssetQuote {
	matched := make([]models.AssetQuote, 0, len(quotes))
	for i := range quotes {
		if quotes[i].Symbol == "" {
			continue
		}
		if matches(&quotes[i], snap, now) {
			matched = append(matched, quotes[i])
		}
	}
	return matched
}

func matches(q *models.AssetQuote, snap criteria.Snapshot, now time.Time) bool {
	for key, bound := range snap {
		pred, ok := predicates[key]
		if !ok {
			panic(fmt.Sprintf("screener: criterion %q has no predicate", key))
		}
		if !pred(q, bound, now) {
			return false
		}
	}
	return true
}
