package hydration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mirrormatch/cloudsync/internal/localstate"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/realtime"
	"github.com/mirrormatch/cloudsync/internal/realtime/bus"
	"github.com/mirrormatch/cloudsync/internal/types"
)

type State string

const (
	StateDisabled  State = "disabled"
	StateIdle      State = "idle"
	StateHydrating State = "hydrating"
	StateHydrated  State = "hydrated"
	StateError     State = "error"
)

// Landing destinations computed after a hydration run.
const (
	LandingTraining = "training"
	LandingPlay     = "play"
)

const DefaultRecentRoundsBound = 250

type Status struct {
	State State
	Err   error
}

// Store is the slice of the remote store hydration reads through.
type Store interface {
	SelectStatsProfiles(ctx context.Context, userID uuid.UUID) ([]*types.StatsProfile, error)
	InsertStatsProfile(ctx context.Context, profile *types.StatsProfile) error
	FindOrCreateSession(ctx context.Context, session *types.Session) (*types.Session, error)
	SelectRecentRounds(ctx context.Context, userID, statsProfileID uuid.UUID, limit int) ([]*types.Round, error)
	LoadAiState(ctx context.Context, userID, statsProfileID uuid.UUID) (*types.AiState, error)
	SelectCounters(ctx context.Context, userID, statsProfileID uuid.UUID) (map[string]int64, error)
}

// Controller bootstraps cloud state on sign-in and keeps it live through the
// event feed. At most one hydrate run is in flight; a concurrent request
// waits for the running one and observes its status. Hydration failures
// degrade to local play: the controller stores the error and stays usable.
type Controller struct {
	store  Store
	device localstate.DeviceStore
	feed   bus.Bus
	log    *logger.Logger
	bound  int

	mu              sync.Mutex
	state           State
	lastErr         error
	userID          uuid.UUID
	profile         *types.StatsProfile
	session         *types.Session
	view            ViewState
	landing         string
	landingSet      bool
	landingConsumed bool
	inflight        chan struct{}
	unsubscribe     func()
}

func New(store Store, device localstate.DeviceStore, feed bus.Bus, baseLog *logger.Logger) *Controller {
	return &Controller{
		store:  store,
		device: device,
		feed:   feed,
		log:    baseLog.With("component", "HydrationController"),
		bound:  DefaultRecentRoundsBound,
		state:  StateDisabled,
	}
}

// Enable transitions disabled → idle once an authenticated account and cloud
// capability are available.
func (c *Controller) Enable(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisabled {
		return
	}
	c.userID = userID
	c.state = StateIdle
}

// Disable tears down the live subscription and drops hydrated state; called
// on sign-out or when cloud capability is withdrawn.
func (c *Controller) Disable() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.state = StateDisabled
	c.lastErr = nil
	c.userID = uuid.Nil
	c.profile = nil
	c.session = nil
	c.view = ViewState{}
	c.landing = ""
	c.landingSet = false
	c.landingConsumed = false
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, Err: c.lastErr}
}

// View returns the current in-memory cloud state. The slices and map are the
// reducer's outputs; callers must not mutate them.
func (c *Controller) View() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) Profile() *types.StatsProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

func (c *Controller) Session() *types.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// ConsumeLandingPath exposes the post-hydration landing destination exactly
// once; it is not recomputed until the next full hydration.
func (c *Controller) ConsumeLandingPath() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.landingSet || c.landingConsumed {
		return "", false
	}
	c.landingConsumed = true
	return c.landing, true
}

// Hydrate loads the account's authoritative remote state. A call that finds
// a run already in flight does not start a second one; it waits for that run
// and returns its outcome.
func (c *Controller) Hydrate(ctx context.Context) Status {
	c.mu.Lock()
	switch c.state {
	case StateDisabled:
		c.mu.Unlock()
		return Status{State: StateDisabled, Err: fmt.Errorf("cloud sync not enabled")}
	case StateHydrating:
		ch := c.inflight
		c.mu.Unlock()
		if ch != nil {
			<-ch
		}
		return c.Status()
	}

	ch := make(chan struct{})
	c.inflight = ch
	c.state = StateHydrating
	userID := c.userID
	c.mu.Unlock()

	// The in-flight slot is released no matter how the run ends; waiters
	// must never be stranded on ch.
	defer func() {
		c.mu.Lock()
		if c.inflight == ch {
			c.inflight = nil
		}
		c.mu.Unlock()
		close(ch)
	}()

	res, err := c.runHydration(ctx, userID)

	c.mu.Lock()
	if err != nil {
		c.state = StateError
		c.lastErr = err
		c.mu.Unlock()
		c.log.Warn("hydration failed", "user_id", userID.String(), "error", err)
		return Status{State: StateError, Err: err}
	}

	c.state = StateHydrated
	c.lastErr = nil
	c.profile = res.profile
	c.session = res.session
	c.view = res.view
	c.landing = computeLanding(res.profile)
	c.landingSet = true
	c.landingConsumed = false
	c.mu.Unlock()

	c.resubscribe(userID, res.profile.ID)
	c.log.Info("hydrated",
		"user_id", userID.String(),
		"profile_id", res.profile.ID.String(),
		"rounds", len(res.view.Rounds),
	)
	return Status{State: StateHydrated}
}

type hydrateResult struct {
	profile *types.StatsProfile
	session *types.Session
	view    ViewState
}

// runHydration contains a panic from the fetch path so it degrades like any
// other failure instead of stranding concurrent waiters.
func (c *Controller) runHydration(ctx context.Context, userID uuid.UUID) (res *hydrateResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hydration panic: %v", r)
		}
	}()
	return c.hydrateOnce(ctx, userID)
}

func (c *Controller) hydrateOnce(ctx context.Context, userID uuid.UUID) (*hydrateResult, error) {
	continuityID, err := localstate.EnsureContinuityID(ctx, c.device)
	if err != nil {
		return nil, fmt.Errorf("continuity id: %w", err)
	}

	profile, err := c.resolveDefaultProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve default profile: %w", err)
	}

	now := time.Now().UTC()
	session, err := c.store.FindOrCreateSession(ctx, &types.Session{
		UserID:                userID,
		ClientSessionID:       continuityID,
		PrimaryStatsProfileID: &profile.ID,
		StartedAt:             now,
		LastEventAt:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	var (
		rounds   []*types.Round
		aiState  *types.AiState
		counters map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rounds, err = c.store.SelectRecentRounds(gctx, userID, profile.ID, c.bound)
		return err
	})
	g.Go(func() error {
		var err error
		aiState, err = c.store.LoadAiState(gctx, userID, profile.ID)
		return err
	})
	g.Go(func() error {
		var err error
		counters, err = c.store.SelectCounters(gctx, userID, profile.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := c.device.Set(ctx, localstate.KeyCurrentProfileID, profile.ID.String()); err != nil {
		return nil, fmt.Errorf("persist profile pointer: %w", err)
	}

	return &hydrateResult{
		profile: profile,
		session: session,
		view: ViewState{
			Rounds:   rounds,
			AiState:  aiState,
			Counters: counters,
		},
	}, nil
}

// resolveDefaultProfile picks the first profile flagged default, else the
// first by creation order, else inserts one.
func (c *Controller) resolveDefaultProfile(ctx context.Context, userID uuid.UUID) (*types.StatsProfile, error) {
	profiles, err := c.store.SelectStatsProfiles(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.PredictorDefault && !p.Archived {
			return p, nil
		}
	}
	for _, p := range profiles {
		if !p.Archived {
			return p, nil
		}
	}

	now := time.Now().UTC()
	created := &types.StatsProfile{
		ID:               uuid.New(),
		UserID:           userID,
		BaseName:         "default",
		ProfileVersion:   1,
		DisplayName:      "Default",
		PredictorDefault: true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := c.store.InsertStatsProfile(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// resubscribe replaces the live event subscription; exactly one is held at a
// time.
func (c *Controller) resubscribe(userID, profileID uuid.UUID) {
	c.mu.Lock()
	prev := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if prev != nil {
		prev()
	}
	if c.feed == nil {
		return
	}

	channel := realtime.Channel(userID, profileID)
	unsub, err := c.feed.Subscribe(context.Background(), channel, c.onEvent)
	if err != nil {
		c.log.Warn("event subscription failed", "channel", channel, "error", err)
		return
	}

	// A sign-out may have landed while the subscription was being set up;
	// installing it then would leak a live feed past Disable.
	c.mu.Lock()
	current := c.state == StateHydrated && c.userID == userID && c.profile != nil && c.profile.ID == profileID
	if current {
		c.unsubscribe = unsub
	}
	c.mu.Unlock()
	if !current {
		unsub()
	}
}

// onEvent merges one inbound event into the in-memory state. This is the
// eventually-consistent read path; it never blocks or orders against the
// write queue.
func (c *Controller) onEvent(ev realtime.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateHydrated || c.profile == nil {
		return
	}
	if ev.StatsProfileID != c.profile.ID {
		return
	}
	c.view = Reduce(c.view, ev, c.bound)
}

func computeLanding(profile *types.StatsProfile) string {
	if profile != nil && profile.TrainingCompleted {
		return LandingPlay
	}
	return LandingTraining
}
