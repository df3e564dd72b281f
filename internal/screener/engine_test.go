package screener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/macks-labs/coinscreen/internal/criteria"
	"github.com/macks-labs/coinscreen/internal/models"
)

type fakeFetcher struct {
	quotes []models.AssetQuote
	err    error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ int, _, _ string) ([]models.AssetQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.AssetQuote, len(f.quotes))
	copy(out, f.quotes)
	return out, nil
}

type recordingOverrides struct {
	saved   map[string]map[string]float64
	deleted []string
}

func (r *recordingOverrides) SaveOverride(userID, key string, value float64) error {
	if r.saved == nil {
		r.saved = make(map[string]map[string]float64)
	}
	if r.saved[userID] == nil {
		r.saved[userID] = make(map[string]float64)
	}
	r.saved[userID][key] = value
	return nil
}

func (r *recordingOverrides) DeleteOverrides(userID string) error {
	r.deleted = append(r.deleted, userID)
	delete(r.saved, userID)
	return nil
}

func newTestEngine(t *testing.T, fetcher Fetcher, persist OverrideStore) *Engine {
	t.Helper()
	defaults, err := criteria.NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return New(fetcher, NewRegistry(defaults), persist, DefaultConfig())
}

func TestEngine_ListMatches(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{quotes: []models.AssetQuote{testQuote("AAA", now)}}
	e := newTestEngine(t, fetcher, nil)

	matched, err := e.ListMatches(context.Background(), uuid.New().String())
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(matched) != 1 || matched[0].Symbol != "AAA" {
		t.Fatalf("matched = %v, want [AAA]", symbols(matched))
	}
}

func TestEngine_ListMatches_FetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("upstream timeout")}
	e := newTestEngine(t, fetcher, nil)

	_, err := e.ListMatches(context.Background(), uuid.New().String())
	if !errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("err = %v, want ErrSnapshotUnavailable", err)
	}
}

func TestEngine_EditAffectsNextEvaluation(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{quotes: []models.AssetQuote{testQuote("AAA", now)}}
	e := newTestEngine(t, fetcher, nil)
	user := uuid.New().String()

	if err := e.BeginEdit(user, "volume_24h_min"); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	res, err := e.SubmitValue(user, "700000")
	if err != nil {
		t.Fatalf("SubmitValue: %v", err)
	}
	if res.OldValue != 500_000 || res.NewValue != 700_000 {
		t.Errorf("delta = %g -> %g, want 500000 -> 700000", res.OldValue, res.NewValue)
	}

	matched, err := e.ListMatches(context.Background(), user)
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(matched) != 0 {
		t.Fatalf("matched = %v, want none after tightening", symbols(matched))
	}
}

func TestEngine_BeginEditUnknownKey(t *testing.T) {
	e := newTestEngine(t, &fakeFetcher{}, nil)
	user := uuid.New().String()

	err := e.BeginEdit(user, "unknown_key")
	if !errors.Is(err, criteria.ErrUnknownCriterion) {
		t.Fatalf("err = %v, want ErrUnknownCriterion", err)
	}
	// No ghost session may remain.
	if _, _, ok := e.ActiveSession(user); ok {
		t.Error("unexpected session after rejected BeginEdit")
	}
	// And the visible criteria are untouched.
	if got := e.Criteria(user)["volume_24h_min"]; got != 500_000 {
		t.Errorf("criteria mutated by rejected BeginEdit: %g", got)
	}
}

func TestEngine_SubmitValueInvalidKeepsSession(t *testing.T) {
	e := newTestEngine(t, &fakeFetcher{}, nil)
	user := uuid.New().String()

	if err := e.BeginEdit(user, "market_cap_max"); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	if _, err := e.SubmitValue(user, "abc"); !errors.Is(err, criteria.ErrInvalidValue) {
		t.Fatalf("err = %v, want ErrInvalidValue", err)
	}

	key, state, ok := e.ActiveSession(user)
	if !ok || state != StateAwaitingValue || key != "market_cap_max" {
		t.Fatalf("session = (%q, %v, %v), want awaiting market_cap_max", key, state, ok)
	}

	// Retry without re-selecting succeeds.
	if _, err := e.SubmitValue(user, "500000000"); err != nil {
		t.Fatalf("retry SubmitValue: %v", err)
	}
	if _, _, ok := e.ActiveSession(user); ok {
		t.Error("session should clear after a successful submit")
	}
}

func TestEngine_SubmitValueWithoutSession(t *testing.T) {
	e := newTestEngine(t, &fakeFetcher{}, nil)
	user := uuid.New().String()

	if _, err := e.SubmitValue(user, "42"); !errors.Is(err, ErrNoActiveEdit) {
		t.Fatalf("err = %v, want ErrNoActiveEdit", err)
	}
	if got := e.Criteria(user)["volume_24h_min"]; got != 500_000 {
		t.Errorf("criteria mutated by stale submit: %g", got)
	}
}

func TestEngine_AdjustTwiceCompounds(t *testing.T) {
	e := newTestEngine(t, &fakeFetcher{}, nil)
	user := uuid.New().String()

	if _, err := e.Adjust(user, "market_cap_max", +1); err != nil {
		t.Fatalf("first Adjust: %v", err)
	}
	res, err := e.Adjust(user, "market_cap_max", +1)
	if err != nil {
		t.Fatalf("second Adjust: %v", err)
	}
	want := 100_000_000 * 1.1 * 1.1
	if res.NewValue != want {
		t.Errorf("value after two +10%% steps = %g, want %g", res.NewValue, want)
	}

	key, state, ok := e.ActiveSession(user)
	if !ok || state != StateAdjusting || key != "market_cap_max" {
		t.Fatalf("session = (%q, %v, %v), want adjusting market_cap_max", key, state, ok)
	}
	if err := e.Cancel(user); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, _, ok := e.ActiveSession(user); ok {
		t.Error("session should clear after Cancel")
	}
}

func TestEngine_AdjustUnknownKey(t *testing.T) {
	e := newTestEngine(t, &fakeFetcher{}, nil)
	if _, err := e.Adjust(uuid.New().String(), "bogus", +1); !errors.Is(err, criteria.ErrUnknownCriterion) {
		t.Fatalf("err = %v, want ErrUnknownCriterion", err)
	}
}

func TestEngine_CancelWithoutSession(t *testing.T) {
	e := newTestEngine(t, &fakeFetcher{}, nil)
	if err := e.Cancel(uuid.New().String()); !errors.Is(err, ErrNoActiveEdit) {
		t.Fatalf("err = %v, want ErrNoActiveEdit", err)
	}
}

func TestEngine_SessionIsolationBetweenUsers(t *testing.T) {
	e := newTestEngine(t, &fakeFetcher{}, nil)
	alice := uuid.New().String()
	bob := uuid.New().String()

	if err := e.BeginEdit(alice, "volume_24h_min"); err != nil {
		t.Fatalf("BeginEdit alice: %v", err)
	}
	if err := e.BeginEdit(bob, "market_cap_max"); err != nil {
		t.Fatalf("BeginEdit bob: %v", err)
	}

	if _, err := e.SubmitValue(alice, "800000"); err != nil {
		t.Fatalf("SubmitValue alice: %v", err)
	}

	// Bob's session and criteria are untouched by Alice's edit.
	key, state, ok := e.ActiveSession(bob)
	if !ok || state != StateAwaitingValue || key != "market_cap_max" {
		t.Fatalf("bob session = (%q, %v, %v), want awaiting market_cap_max", key, state, ok)
	}
	if got := e.Criteria(bob)["volume_24h_min"]; got != 500_000 {
		t.Errorf("bob volume_24h_min = %g, want default 500000", got)
	}
	if got := e.Criteria(alice)["volume_24h_min"]; got != 800_000 {
		t.Errorf("alice volume_24h_min = %g, want 800000", got)
	}
}

func TestEngine_ResetRestoresDefaultsAndDropsOverrides(t *testing.T) {
	persist := &recordingOverrides{}
	e := newTestEngine(t, &fakeFetcher{}, persist)
	user := uuid.New().String()

	if _, err := e.SetValue(user, "volume_24h_min", "900000"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if persist.saved[user]["volume_24h_min"] != 900_000 {
		t.Fatalf("override not persisted: %v", persist.saved)
	}

	e.Reset(user)
	if got := e.Criteria(user)["volume_24h_min"]; got != 500_000 {
		t.Errorf("after Reset = %g, want 500000", got)
	}
	if len(persist.deleted) != 1 || persist.deleted[0] != user {
		t.Errorf("persisted overrides not dropped: %v", persist.deleted)
	}
}

func TestEngine_LoadOverrides(t *testing.T) {
	e := newTestEngine(t, &fakeFetcher{}, nil)
	user := uuid.New().String()

	e.LoadOverrides(map[string]map[string]float64{
		user: {
			"volume_24h_min": 750_000,
			"bogus_key":      1, // must be skipped, not fatal
		},
	})

	if got := e.Criteria(user)["volume_24h_min"]; got != 750_000 {
		t.Errorf("loaded override = %g, want 750000", got)
	}
}

func TestEngine_CriteriaReadableDuringSlowFetch(t *testing.T) {
	fetcher := &blockingFetcher{
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	e := newTestEngine(t, fetcher, nil)
	user := uuid.New().String()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.ListMatches(context.Background(), user)
	}()

	<-fetcher.started
	// The fetch is in flight; criteria writes must not block on it.
	if _, err := e.SetValue(user, "volume_24h_min", "600000"); err != nil {
		t.Fatalf("SetValue during fetch: %v", err)
	}
	close(fetcher.release)
	<-done
}

type blockingFetcher struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingFetcher) Fetch(ctx context.Context, _ int, _, _ string) ([]models.AssetQuote, error) {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil, nil
}
