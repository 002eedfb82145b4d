package hydration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/localstate"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/realtime"
	"github.com/mirrormatch/cloudsync/internal/types"
)

type fakeSyncStore struct {
	mu       sync.Mutex
	profiles []*types.StatsProfile
	inserted []*types.StatsProfile
	rounds   []*types.Round
	aiState  *types.AiState
	counters map[string]int64

	lastSession *types.Session

	profileCalls  int
	roundCalls    int
	roundsErr     error
	profilesPanic bool
	gate          chan struct{}
}

func (f *fakeSyncStore) SelectStatsProfiles(ctx context.Context, userID uuid.UUID) ([]*types.StatsProfile, error) {
	f.mu.Lock()
	f.profileCalls++
	gate := f.gate
	panicNow := f.profilesPanic
	out := append([]*types.StatsProfile(nil), f.profiles...)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if panicNow {
		panic("profiles fetch exploded")
	}
	return out, nil
}

func (f *fakeSyncStore) InsertStatsProfile(ctx context.Context, profile *types.StatsProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, profile)
	f.profiles = append(f.profiles, profile)
	return nil
}

func (f *fakeSyncStore) FindOrCreateSession(ctx context.Context, session *types.Session) (*types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *session
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	f.lastSession = &cp
	out := cp
	return &out, nil
}

func (f *fakeSyncStore) SelectRecentRounds(ctx context.Context, userID, statsProfileID uuid.UUID, limit int) ([]*types.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roundCalls++
	if f.roundsErr != nil {
		return nil, f.roundsErr
	}
	return append([]*types.Round(nil), f.rounds...), nil
}

func (f *fakeSyncStore) LoadAiState(ctx context.Context, userID, statsProfileID uuid.UUID) (*types.AiState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aiState, nil
}

func (f *fakeSyncStore) SelectCounters(ctx context.Context, userID, statsProfileID uuid.UUID) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64, len(f.counters))
	for k, v := range f.counters {
		out[k] = v
	}
	return out, nil
}

type fakeDevice struct {
	mu sync.Mutex
	kv map[string]string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{kv: make(map[string]string)}
}

func (d *fakeDevice) Get(ctx context.Context, key string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.kv[key]
	return v, ok, nil
}

func (d *fakeDevice) Set(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kv[key] = value
	return nil
}

func (d *fakeDevice) Remove(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.kv, key)
	return nil
}

type fakeFeed struct {
	mu        sync.Mutex
	entered   chan struct{}
	gate      chan struct{}
	installed int
	cancelled int
}

func (f *fakeFeed) Publish(ctx context.Context, ev realtime.Event) error { return nil }

func (f *fakeFeed) Subscribe(ctx context.Context, channel string, onEvent func(ev realtime.Event)) (func(), error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.installed++
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
	}, nil
}

func (f *fakeFeed) Close() error { return nil }

func testController(t *testing.T, store *fakeSyncStore, device *fakeDevice) *Controller {
	return testControllerWithFeed(t, store, device, nil)
}

func testControllerWithFeed(t *testing.T, store *fakeSyncStore, device *fakeDevice, feed *fakeFeed) *Controller {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	if feed == nil {
		return New(store, device, nil, log)
	}
	return New(store, device, feed, log)
}

func defaultProfile(userID uuid.UUID, trained bool) *types.StatsProfile {
	return &types.StatsProfile{
		ID:                uuid.New(),
		UserID:            userID,
		BaseName:          "default",
		ProfileVersion:    1,
		PredictorDefault:  true,
		TrainingCompleted: trained,
	}
}

func TestHydrateRequiresEnable(t *testing.T) {
	c := testController(t, &fakeSyncStore{}, newFakeDevice())

	status := c.Hydrate(context.Background())
	if status.State != StateDisabled {
		t.Fatalf("state=%s, want disabled", status.State)
	}
	if status.Err == nil {
		t.Fatalf("expected an error while disabled")
	}
}

func TestHydrateHappyPath(t *testing.T) {
	userID := uuid.New()
	profile := defaultProfile(userID, true)
	store := &fakeSyncStore{
		profiles: []*types.StatsProfile{profile},
		rounds: []*types.Round{
			{ID: uuid.New(), ClientRoundID: "r1", PlayedAt: time.Now().UTC()},
		},
		aiState:  &types.AiState{ID: uuid.New(), StatsProfileID: profile.ID, ModelVersion: 2},
		counters: map[string]int64{"rounds_total": 7},
	}
	device := newFakeDevice()
	c := testController(t, store, device)
	c.Enable(userID)

	status := c.Hydrate(context.Background())
	if status.State != StateHydrated || status.Err != nil {
		t.Fatalf("status=%+v, want hydrated", status)
	}

	if got := c.Profile(); got == nil || got.ID != profile.ID {
		t.Fatalf("active profile not the flagged default")
	}
	view := c.View()
	if len(view.Rounds) != 1 || view.AiState == nil || view.Counters["rounds_total"] != 7 {
		t.Fatalf("view not populated: %+v", view)
	}

	// Session continuity: the minted device id is what the session was keyed by.
	continuity, ok, _ := device.Get(context.Background(), localstate.KeyContinuityID)
	if !ok || continuity == "" {
		t.Fatalf("continuity id not persisted")
	}
	if store.lastSession == nil || store.lastSession.ClientSessionID != continuity {
		t.Fatalf("session not keyed by the continuity id")
	}
	if current, ok, _ := device.Get(context.Background(), localstate.KeyCurrentProfileID); !ok || current != profile.ID.String() {
		t.Fatalf("current profile pointer not persisted")
	}
}

func TestLandingPathConsumedOnce(t *testing.T) {
	userID := uuid.New()
	store := &fakeSyncStore{profiles: []*types.StatsProfile{defaultProfile(userID, false)}}
	c := testController(t, store, newFakeDevice())
	c.Enable(userID)

	if _, ok := c.ConsumeLandingPath(); ok {
		t.Fatalf("landing available before any hydration")
	}

	if status := c.Hydrate(context.Background()); status.State != StateHydrated {
		t.Fatalf("hydrate failed: %+v", status)
	}

	landing, ok := c.ConsumeLandingPath()
	if !ok || landing != LandingTraining {
		t.Fatalf("landing=%q/%v, want training once", landing, ok)
	}
	if _, ok := c.ConsumeLandingPath(); ok {
		t.Fatalf("landing served twice")
	}

	// A fresh hydration recomputes it.
	if status := c.Hydrate(context.Background()); status.State != StateHydrated {
		t.Fatalf("re-hydrate failed: %+v", status)
	}
	if _, ok := c.ConsumeLandingPath(); !ok {
		t.Fatalf("landing not recomputed after re-hydration")
	}
}

func TestHydrateCreatesDefaultProfileWhenNoneExist(t *testing.T) {
	userID := uuid.New()
	store := &fakeSyncStore{}
	c := testController(t, store, newFakeDevice())
	c.Enable(userID)

	if status := c.Hydrate(context.Background()); status.State != StateHydrated {
		t.Fatalf("hydrate failed: %+v", status)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d profiles, want 1", len(store.inserted))
	}
	created := store.inserted[0]
	if created.BaseName != "default" || !created.PredictorDefault {
		t.Fatalf("created profile %+v not a flagged default", created)
	}
	if got := c.Profile(); got == nil || got.ID != created.ID {
		t.Fatalf("active profile is not the created one")
	}
}

func TestResolveDefaultProfileSkipsArchived(t *testing.T) {
	userID := uuid.New()
	archived := &types.StatsProfile{ID: uuid.New(), UserID: userID, PredictorDefault: true, Archived: true}
	plain := &types.StatsProfile{ID: uuid.New(), UserID: userID}
	flagged := &types.StatsProfile{ID: uuid.New(), UserID: userID, PredictorDefault: true}
	store := &fakeSyncStore{profiles: []*types.StatsProfile{archived, plain, flagged}}
	c := testController(t, store, newFakeDevice())

	got, err := c.resolveDefaultProfile(context.Background(), userID)
	if err != nil {
		t.Fatalf("resolveDefaultProfile: %v", err)
	}
	if got.ID != flagged.ID {
		t.Fatalf("picked %s, want the non-archived flagged default", got.ID)
	}

	// Without a usable flagged default, creation order decides.
	store.profiles = []*types.StatsProfile{archived, plain}
	got, err = c.resolveDefaultProfile(context.Background(), userID)
	if err != nil {
		t.Fatalf("resolveDefaultProfile: %v", err)
	}
	if got.ID != plain.ID {
		t.Fatalf("picked %s, want the first non-archived profile", got.ID)
	}
}

func TestHydrateFailureDegradesAndRecovers(t *testing.T) {
	userID := uuid.New()
	store := &fakeSyncStore{
		profiles:  []*types.StatsProfile{defaultProfile(userID, true)},
		roundsErr: errors.New("connection refused"),
	}
	c := testController(t, store, newFakeDevice())
	c.Enable(userID)

	status := c.Hydrate(context.Background())
	if status.State != StateError || status.Err == nil {
		t.Fatalf("status=%+v, want error state", status)
	}
	if _, ok := c.ConsumeLandingPath(); ok {
		t.Fatalf("failed hydration should not produce a landing")
	}

	store.mu.Lock()
	store.roundsErr = nil
	store.mu.Unlock()

	status = c.Hydrate(context.Background())
	if status.State != StateHydrated || status.Err != nil {
		t.Fatalf("retry status=%+v, want hydrated", status)
	}
	if got := c.Status(); got.Err != nil {
		t.Fatalf("stale error kept after recovery: %v", got.Err)
	}
}

func TestConcurrentHydrateSharesOneRun(t *testing.T) {
	userID := uuid.New()
	gate := make(chan struct{})
	store := &fakeSyncStore{
		profiles: []*types.StatsProfile{defaultProfile(userID, true)},
		gate:     gate,
	}
	c := testController(t, store, newFakeDevice())
	c.Enable(userID)

	statuses := make(chan Status, 2)
	go func() { statuses <- c.Hydrate(context.Background()) }()

	// Wait until the first run holds the in-flight slot.
	deadline := time.Now().Add(2 * time.Second)
	for c.Status().State != StateHydrating {
		if time.Now().After(deadline) {
			t.Fatalf("first hydrate never started")
		}
		time.Sleep(time.Millisecond)
	}
	go func() { statuses <- c.Hydrate(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	close(gate)

	for i := 0; i < 2; i++ {
		if status := <-statuses; status.State != StateHydrated {
			t.Fatalf("status=%+v, want hydrated", status)
		}
	}
	if store.roundCalls != 1 {
		t.Fatalf("round fetches=%d, want a single shared run", store.roundCalls)
	}
}

func TestDisableDropsHydratedState(t *testing.T) {
	userID := uuid.New()
	store := &fakeSyncStore{profiles: []*types.StatsProfile{defaultProfile(userID, true)}}
	c := testController(t, store, newFakeDevice())
	c.Enable(userID)
	if status := c.Hydrate(context.Background()); status.State != StateHydrated {
		t.Fatalf("hydrate failed: %+v", status)
	}

	c.Disable()
	if got := c.Status(); got.State != StateDisabled {
		t.Fatalf("state=%s after disable", got.State)
	}
	if c.Profile() != nil || c.Session() != nil {
		t.Fatalf("disable kept hydrated identity state")
	}
	if view := c.View(); len(view.Rounds) != 0 || view.AiState != nil {
		t.Fatalf("disable kept hydrated view")
	}
}

func TestDisableDuringSubscriptionSetupTearsDown(t *testing.T) {
	userID := uuid.New()
	store := &fakeSyncStore{profiles: []*types.StatsProfile{defaultProfile(userID, true)}}
	feed := &fakeFeed{entered: make(chan struct{}), gate: make(chan struct{})}
	c := testControllerWithFeed(t, store, newFakeDevice(), feed)
	c.Enable(userID)

	done := make(chan Status, 1)
	go func() { done <- c.Hydrate(context.Background()) }()

	// Sign out while the feed subscription is still being set up.
	<-feed.entered
	c.Disable()
	close(feed.gate)
	<-done

	if got := c.Status(); got.State != StateDisabled {
		t.Fatalf("state=%s after sign-out", got.State)
	}
	c.mu.Lock()
	installed := c.unsubscribe != nil
	c.mu.Unlock()
	if installed {
		t.Fatalf("live subscription kept while disabled")
	}
	feed.mu.Lock()
	cancelled := feed.cancelled
	feed.mu.Unlock()
	if cancelled != 1 {
		t.Fatalf("subscription torn down %d times, want 1", cancelled)
	}
}

func TestHydratePanicReleasesInFlight(t *testing.T) {
	userID := uuid.New()
	store := &fakeSyncStore{profilesPanic: true}
	c := testController(t, store, newFakeDevice())
	c.Enable(userID)

	status := c.Hydrate(context.Background())
	if status.State != StateError || status.Err == nil {
		t.Fatalf("status=%+v, want error state", status)
	}

	// The in-flight slot was released; a later attempt runs normally.
	store.mu.Lock()
	store.profilesPanic = false
	store.profiles = []*types.StatsProfile{defaultProfile(userID, true)}
	store.mu.Unlock()

	status = c.Hydrate(context.Background())
	if status.State != StateHydrated || status.Err != nil {
		t.Fatalf("retry status=%+v, want hydrated", status)
	}
}

func TestOnEventFiltersByProfile(t *testing.T) {
	userID := uuid.New()
	profile := defaultProfile(userID, true)
	store := &fakeSyncStore{profiles: []*types.StatsProfile{profile}}
	c := testController(t, store, newFakeDevice())
	c.Enable(userID)
	if status := c.Hydrate(context.Background()); status.State != StateHydrated {
		t.Fatalf("hydrate failed: %+v", status)
	}

	c.onEvent(realtime.Event{
		Kind:           realtime.KindRoundInserted,
		UserID:         userID,
		StatsProfileID: uuid.New(),
		Round:          &types.Round{ID: uuid.New(), ClientRoundID: "other", PlayedAt: time.Now()},
	})
	if len(c.View().Rounds) != 0 {
		t.Fatalf("event for another profile merged into the view")
	}

	c.onEvent(realtime.Event{
		Kind:           realtime.KindRoundInserted,
		UserID:         userID,
		StatsProfileID: profile.ID,
		Round:          &types.Round{ID: uuid.New(), ClientRoundID: "mine", PlayedAt: time.Now()},
	})
	if got := c.View().Rounds; len(got) != 1 || got[0].ClientRoundID != "mine" {
		t.Fatalf("matching event not merged: %+v", got)
	}
}
