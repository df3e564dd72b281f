// Package criteria defines the screening criterion table and the store
// holding the authoritative current thresholds.
package criteria

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tells how a criterion value is interpreted and validated.
type Kind int

const (
	KindInteger Kind = iota
	KindDecimal
)

// Definition is one row of the criterion table. Both the store and the
// evaluator derive their behavior from this table, so adding a
// criterion means adding a row here and a predicate in the evaluator.
type Definition struct {
	Key     string
	Kind    Kind
	Default float64

	// Hard sanity bounds for user-supplied values, inclusive.
	MinBound float64
	MaxBound float64
}

// table is ordered; the order is the stable display order everywhere.
var table = []Definition{
	{Key: "market_cap_min", Kind: KindInteger, Default: 1_000_000, MinBound: 0, MaxBound: 1e15},
	{Key: "market_cap_max", Kind: KindInteger, Default: 100_000_000, MinBound: 0, MaxBound: 1e15},
	{Key: "volume_24h_min", Kind: KindInteger, Default: 500_000, MinBound: 0, MaxBound: 1e15},
	{Key: "change_24h_min", Kind: KindDecimal, Default: -5, MinBound: -100, MaxBound: 10000},
	{Key: "change_7d_min", Kind: KindDecimal, Default: -15, MinBound: -100, MaxBound: 10000},
	{Key: "change_7d_max", Kind: KindDecimal, Default: 15, MinBound: -100, MaxBound: 10000},
	{Key: "change_30d_min", Kind: KindDecimal, Default: -20, MinBound: -100, MaxBound: 10000},
	{Key: "change_30d_max", Kind: KindDecimal, Default: 20, MinBound: -100, MaxBound: 10000},
	{Key: "volume_mcap_ratio_min", Kind: KindDecimal, Default: 0, MinBound: 0, MaxBound: 10000},
	{Key: "max_age_days", Kind: KindInteger, Default: 730, MinBound: 0, MaxBound: 100000},
	{Key: "circulating_supply_min", Kind: KindInteger, Default: 1, MinBound: 0, MaxBound: 1e18},
}

var tableByKey = func() map[string]Definition {
	m := make(map[string]Definition, len(table))
	for _, def := range table {
		m[def.Key] = def
	}
	return m
}()

// Definitions returns the criterion table in display order.
func Definitions() []Definition {
	out := make([]Definition, len(table))
	copy(out, table)
	return out
}

// Keys returns all criterion keys in display order.
func Keys() []string {
	keys := make([]string, len(table))
	for i, def := range table {
		keys[i] = def.Key
	}
	return keys
}

// Lookup returns the definition for key.
func Lookup(key string) (Definition, bool) {
	def, ok := tableByKey[key]
	return def, ok
}

// ParseValue interprets raw user input as a value for the criterion.
// Integer criteria reject fractional input.
func ParseValue(def Definition, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a finite number", ErrInvalidValue, raw)
	}
	if def.Kind == KindInteger && v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %s takes a whole number, got %q", ErrInvalidValue, def.Key, raw)
	}
	return v, nil
}

// checkBounds validates v against the definition's sanity bounds.
func checkBounds(def Definition, v float64) error {
	if v < def.MinBound || v > def.MaxBound {
		return fmt.Errorf("%w: %s must be in [%g, %g], got %g",
			ErrInvalidValue, def.Key, def.MinBound, def.MaxBound, v)
	}
	return nil
}

// FormatValue renders a criterion value the way users entered it:
// integers without a decimal point, decimals trimmed.
func FormatValue(def Definition, v float64) string {
	if def.Kind == KindInteger {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
