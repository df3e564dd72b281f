package criteria

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// Error kinds callers branch on with errors.Is.
var (
	ErrUnknownCriterion = errors.New("unknown criterion")
	ErrInvalidValue     = errors.New("invalid value")
)

// Snapshot is a value copy of the store taken at one instant. The
// evaluator only ever sees snapshots, so an in-flight evaluation and a
// concurrent edit cannot race.
type Snapshot map[string]float64

// Store holds the current thresholds for one scope (global defaults or
// one user). Writes are serialized; reads get value copies.
type Store struct {
	mu       sync.RWMutex
	values   map[string]float64
	defaults map[string]float64
}

// NewStore creates a store seeded from the compiled criterion table.
// Entries of defaultOverrides replace compiled defaults; unknown keys
// are rejected so a typo in config surfaces at startup.
func NewStore(defaultOverrides map[string]float64) (*Store, error) {
	defaults := make(map[string]float64, len(table))
	for _, def := range table {
		defaults[def.Key] = def.Default
	}
	for key, v := range defaultOverrides {
		def, ok := tableByKey[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q in default overrides", ErrUnknownCriterion, key)
		}
		if err := checkBounds(def, v); err != nil {
			return nil, err
		}
		defaults[key] = v
	}

	values := make(map[string]float64, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	return &Store{values: values, defaults: defaults}, nil
}

// Get returns the current value for key.
func (s *Store) Get(key string) (float64, error) {
	if _, ok := tableByKey[key]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCriterion, key)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

// Snapshot returns a value copy of all current thresholds.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	return snap
}

// Set validates and writes a new value for key, returning the old and
// new values so callers can report the delta.
func (s *Store) Set(key string, value float64) (old, updated float64, err error) {
	def, ok := tableByKey[key]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownCriterion, key)
	}
	if def.Kind == KindInteger && value != math.Trunc(value) {
		return 0, 0, fmt.Errorf("%w: %s takes a whole number, got %g", ErrInvalidValue, key, value)
	}
	if err := checkBounds(def, value); err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.values[key]
	s.values[key] = value
	return old, value, nil
}

// Adjust scales the current value of key by stepPct percent in the
// given direction (+1 or -1) as one read-modify-write. Integer criteria
// are rounded to the nearest whole value; the result is clamped to the
// sanity bounds so repeated adjustments cannot walk out of range.
func (s *Store) Adjust(key string, direction int, stepPct float64) (old, updated float64, err error) {
	def, ok := tableByKey[key]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownCriterion, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.values[key]
	updated = old * (1 + float64(direction)*stepPct/100)
	if def.Kind == KindInteger {
		updated = math.Round(updated)
	}
	if updated < def.MinBound {
		updated = def.MinBound
	}
	if updated > def.MaxBound {
		updated = def.MaxBound
	}
	s.values[key] = updated
	return old, updated, nil
}

// Reset restores every key to its seeded default. Always succeeds.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.defaults {
		s.values[k] = v
	}
}

// Clone returns an independent copy sharing no state with the
// original. Used to give a user a private store on first customization.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	defaults := make(map[string]float64, len(s.defaults))
	for k, v := range s.defaults {
		defaults[k] = v
	}
	return &Store{values: values, defaults: defaults}
}
