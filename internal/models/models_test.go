package models

import (
	"testing"
	"time"
)

func TestAssetQuoteValidate(t *testing.T) {
	launched := time.Now().Add(-30 * 24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name    string
		quote   AssetQuote
		wantErr bool
	}{
		{
			name: "valid quote",
			quote: AssetQuote{
				Symbol:     "BTC",
				Name:       "Bitcoin",
				Price:      64000,
				MarketCap:  1.2e12,
				Volume24h:  3.5e10,
				LaunchedAt: &launched,
			},
			wantErr: false,
		},
		{
			name:    "valid quote without launch date",
			quote:   AssetQuote{Symbol: "AAA", Name: "Alpha"},
			wantErr: false,
		},
		{
			name:    "empty symbol",
			quote:   AssetQuote{Name: "Bitcoin"},
			wantErr: true,
		},
		{
			name:    "lowercase symbol",
			quote:   AssetQuote{Symbol: "btc", Name: "Bitcoin"},
			wantErr: true,
		},
		{
			name:    "empty name",
			quote:   AssetQuote{Symbol: "BTC"},
			wantErr: true,
		},
		{
			name:    "launch date in the future",
			quote:   AssetQuote{Symbol: "BTC", Name: "Bitcoin", LaunchedAt: &future},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.quote.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("AssetQuote.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVolumeToMarketCapRatio(t *testing.T) {
	q := AssetQuote{Symbol: "AAA", Name: "Alpha", MarketCap: 5_000_000, Volume24h: 600_000}
	got := q.VolumeToMarketCapRatio()
	if got < 11.99 || got > 12.01 {
		t.Errorf("ratio = %f, want 12", got)
	}
}

func TestVolumeToMarketCapRatio_ZeroMarketCap(t *testing.T) {
	q := AssetQuote{Symbol: "AAA", Name: "Alpha", MarketCap: 0, Volume24h: 600_000}
	if got := q.VolumeToMarketCapRatio(); got != 0 {
		t.Errorf("ratio with zero market cap = %f, want 0", got)
	}
}

func TestDaysSinceLaunch(t *testing.T) {
	now := time.Now()
	launched := now.Add(-100 * 24 * time.Hour)
	q := AssetQuote{Symbol: "AAA", Name: "Alpha", LaunchedAt: &launched}

	days, ok := q.DaysSinceLaunch(now)
	if !ok {
		t.Fatal("expected known launch date")
	}
	if days != 100 {
		t.Errorf("days = %d, want 100", days)
	}
}

func TestDaysSinceLaunch_Unknown(t *testing.T) {
	q := AssetQuote{Symbol: "AAA", Name: "Alpha"}
	if _, ok := q.DaysSinceLaunch(time.Now()); ok {
		t.Error("expected unknown launch date")
	}
}
