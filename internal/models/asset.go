// Package models defines the core domain entities: asset quotes and edit results.
package models

import (
	"errors"
	"strings"
	"time"
)

// AssetQuote is one asset's market snapshot at fetch time. Quotes are
// constructed fresh on every fetch, never mutated, and discarded after
// evaluation. Numeric fields missing upstream default to zero.
type AssetQuote struct {
	Symbol            string     `json:"symbol"`
	Name              string     `json:"name"`
	Price             float64    `json:"price"`
	MarketCap         float64    `json:"market_cap"`
	Volume24h         float64    `json:"volume_24h"`
	PercentChange24h  float64    `json:"percent_change_24h"`
	PercentChange7d   float64    `json:"percent_change_7d"`
	PercentChange30d  float64    `json:"percent_change_30d"`
	CirculatingSupply float64    `json:"circulating_supply"`
	LaunchedAt        *time.Time `json:"launched_at,omitempty"`
}

// Validate checks quote field constraints.
func (q *AssetQuote) Validate() error {
	if q.Symbol == "" {
		return errors.New("asset symbol must not be empty")
	}
	if q.Symbol != strings.ToUpper(q.Symbol) {
		return errors.New("asset symbol must be uppercase")
	}
	if q.Name == "" {
		return errors.New("asset name must not be empty")
	}
	if q.LaunchedAt != nil && q.LaunchedAt.After(time.Now()) {
		return errors.New("launch date must not be in the future")
	}
	return nil
}

// VolumeToMarketCapRatio returns volume_24h / market_cap expressed as a
// percentage, or 0 when the market cap is zero.
func (q *AssetQuote) VolumeToMarketCapRatio() float64 {
	if q.MarketCap == 0 {
		return 0
	}
	return q.Volume24h / q.MarketCap * 100
}

// DaysSinceLaunch returns the whole days elapsed since the asset
// launched, and false when the launch date is unknown.
func (q *AssetQuote) DaysSinceLaunch(now time.Time) (int, bool) {
	if q.LaunchedAt == nil {
		return 0, false
	}
	return int(now.Sub(*q.LaunchedAt).Hours() / 24), true
}
