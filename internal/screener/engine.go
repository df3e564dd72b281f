package screener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/macks-labs/coinscreen/internal/criteria"
	"github.com/macks-labs/coinscreen/internal/logger"
	"github.com/macks-labs/coinscreen/internal/models"
)

// Error kinds surfaced by the engine beyond the criteria store's own.
var (
	// ErrNoActiveEdit means an edit action arrived with no open
	// session, e.g. a second device acting on an already-cleared one.
	ErrNoActiveEdit = errors.New("no active edit")

	// ErrSnapshotUnavailable means the quote provider failed or timed
	// out. Callers must not conflate it with an empty match set.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
)

// Fetcher is the quote provider boundary. It returns a complete
// point-in-time snapshot or a failure, never a partial one.
type Fetcher interface {
	Fetch(ctx context.Context, limit int, sortKey, sortDir string) ([]models.AssetQuote, error)
}

// OverrideStore is the optional persistence collaborator for per-user
// criteria overrides. A nil OverrideStore keeps the engine in-memory.
type OverrideStore interface {
	SaveOverride(userID, key string, value float64) error
	DeleteOverrides(userID string) error
}

// Config carries the engine's tunables.
type Config struct {
	FetchLimit    int
	SortKey       string
	SortDir       string
	AdjustStepPct float64
}

// DefaultConfig returns the engine defaults used when config omits
// screener settings.
func DefaultConfig() Config {
	return Config{
		FetchLimit:    200,
		SortKey:       "market_cap",
		SortDir:       "asc",
		AdjustStepPct: 10,
	}
}

// Engine exposes the screening command surface: evaluate the current
// snapshot against a user's criteria and drive criteria edits through
// the session state machine. Safe for concurrent use; no lock is held
// while a fetch is in flight.
type Engine struct {
	fetcher  Fetcher
	registry *Registry
	persist  OverrideStore
	cfg      Config
}

// New creates an engine. persist may be nil.
func New(fetcher Fetcher, registry *Registry, persist OverrideStore, cfg Config) *Engine {
	return &Engine{fetcher: fetcher, registry: registry, persist: persist, cfg: cfg}
}

// ListMatches fetches a fresh quote snapshot and returns the complete
// subset matching userID's criteria, in snapshot order. A fetch
// failure is reported as ErrSnapshotUnavailable so a zero-match result
// stays distinguishable from missing data.
func (e *Engine) ListMatches(ctx context.Context, userID string) ([]models.AssetQuote, error) {
	quotes, err := e.fetcher.Fetch(ctx, e.cfg.FetchLimit, e.cfg.SortKey, e.cfg.SortDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
	snap := e.registry.SnapshotFor(userID)
	return Evaluate(quotes, snap, time.Now()), nil
}

// Criteria returns a value copy of the criteria visible to userID.
func (e *Engine) Criteria(userID string) criteria.Snapshot {
	return e.registry.SnapshotFor(userID)
}

// BeginEdit opens a direct-entry edit of key for userID. An unknown
// key never leaves a ghost session behind.
func (e *Engine) BeginEdit(userID, key string) error {
	if _, ok := criteria.Lookup(key); !ok {
		return fmt.Errorf("%w: %q", criteria.ErrUnknownCriterion, key)
	}
	e.registry.SetSession(userID, key, StateAwaitingValue)
	return nil
}

// SubmitValue completes a direct-entry edit with raw user input. An
// invalid value keeps the session awaiting a retry; success writes the
// store, clears the session and returns the delta.
func (e *Engine) SubmitValue(userID, raw string) (models.EditResult, error) {
	sess, ok := e.registry.Session(userID)
	if !ok || sess.State != StateAwaitingValue {
		return models.EditResult{}, ErrNoActiveEdit
	}

	def, ok := criteria.Lookup(sess.Key)
	if !ok {
		panic(fmt.Sprintf("screener: session holds unknown criterion %q", sess.Key))
	}
	value, err := criteria.ParseValue(def, raw)
	if err != nil {
		return models.EditResult{}, err
	}

	old, updated, err := e.registry.OwnedStore(userID).Set(sess.Key, value)
	if err != nil {
		return models.EditResult{}, err
	}
	e.registry.ClearSession(userID)
	e.saveOverride(userID, sess.Key, updated)
	return models.EditResult{Key: sess.Key, OldValue: old, NewValue: updated}, nil
}

// SetValue is the one-shot edit path: key and value arrive together,
// no session is involved.
func (e *Engine) SetValue(userID, key, raw string) (models.EditResult, error) {
	def, ok := criteria.Lookup(key)
	if !ok {
		return models.EditResult{}, fmt.Errorf("%w: %q", criteria.ErrUnknownCriterion, key)
	}
	value, err := criteria.ParseValue(def, raw)
	if err != nil {
		return models.EditResult{}, err
	}
	old, updated, err := e.registry.OwnedStore(userID).Set(key, value)
	if err != nil {
		return models.EditResult{}, err
	}
	e.saveOverride(userID, key, updated)
	return models.EditResult{Key: key, OldValue: old, NewValue: updated}, nil
}

// Adjust applies one relative step to key in the given direction
// (+1 or -1) and leaves the session adjusting so further steps chain
// without re-selecting.
func (e *Engine) Adjust(userID, key string, direction int) (models.EditResult, error) {
	old, updated, err := e.registry.OwnedStore(userID).Adjust(key, direction, e.cfg.AdjustStepPct)
	if err != nil {
		return models.EditResult{}, err
	}
	e.registry.SetSession(userID, key, StateAdjusting)
	e.saveOverride(userID, key, updated)
	return models.EditResult{Key: key, OldValue: old, NewValue: updated}, nil
}

// Cancel abandons userID's open session. A stale cancel reports
// ErrNoActiveEdit and mutates nothing.
func (e *Engine) Cancel(userID string) error {
	if !e.registry.ClearSession(userID) {
		return ErrNoActiveEdit
	}
	return nil
}

// ActiveSession tells the transport whether plain text from userID
// should be treated as an edit value.
func (e *Engine) ActiveSession(userID string) (key string, state SessionState, ok bool) {
	sess, ok := e.registry.Session(userID)
	if !ok {
		return "", StateIdle, false
	}
	return sess.Key, sess.State, true
}

// Reset restores userID's criteria to the seeded defaults, drops any
// open session and removes persisted overrides. Always succeeds from
// the caller's point of view; persistence trouble is only logged.
func (e *Engine) Reset(userID string) {
	if e.registry.Customized(userID) {
		e.registry.OwnedStore(userID).Reset()
	}
	e.registry.ClearSession(userID)
	if e.persist != nil {
		if err := e.persist.DeleteOverrides(userID); err != nil {
			logger.Warn("Failed to drop persisted overrides for user %s: %v", userID, err)
		}
	}
}

// LoadOverrides seeds per-user stores from persisted overrides,
// typically once at startup. Entries that no longer validate are
// skipped with a warning rather than failing the boot.
func (e *Engine) LoadOverrides(all map[string]map[string]float64) {
	users := 0
	for userID, overrides := range all {
		st := e.registry.OwnedStore(userID)
		for key, value := range overrides {
			if _, _, err := st.Set(key, value); err != nil {
				logger.Warn("Skipping persisted override %s=%g for user %s: %v", key, value, userID, err)
			}
		}
		users++
	}
	if users > 0 {
		logger.Info("Loaded persisted criteria overrides for %d user(s)", users)
	}
}

func (e *Engine) saveOverride(userID, key string, value float64) {
	if e.persist == nil {
		return
	}
	if err := e.persist.SaveOverride(userID, key, value); err != nil {
		logger.Warn("Failed to persist override %s=%g for user %s: %v", key, value, userID, err)
	}
}
