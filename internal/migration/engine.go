package migration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/mirrormatch/cloudsync/internal/identity"
	"github.com/mirrormatch/cloudsync/internal/localstate"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/types"
)

var tracer = otel.Tracer("mirrormatch/migration")

const defaultBatchSize = 50

// Store is the slice of the remote store the engine writes through. Every
// method is an upsert or an idempotent guarded insert, which is what makes
// replaying the tail of a phase safe.
type Store interface {
	UpsertPlayerProfile(ctx context.Context, profile *types.PlayerProfile) error
	FindOrCreateSession(ctx context.Context, session *types.Session) (*types.Session, error)
	UpsertStatsProfile(ctx context.Context, profile *types.StatsProfile) error
	UpsertAiState(ctx context.Context, state *types.AiState) error
	UpsertRounds(ctx context.Context, rounds []*types.Round) error
	UpsertMatches(ctx context.Context, matches []*types.Match) error
}

// Credentials for the account the local history is promoted into.
type Credentials struct {
	Username string
	Password string
}

// Result is what a run hands back: the issued session and the per-phase
// progress the caller persists for resume.
type Result struct {
	Session  *identity.Session
	Progress Progress
}

// Engine promotes a frozen local snapshot into remote rows under a newly
// issued identity. Runs are idempotent under resume: ids are remapped
// deterministically and every write is an upsert or a client-id-guarded
// insert.
type Engine struct {
	store     Store
	ident     identity.Client
	log       *logger.Logger
	batchSize int
}

func New(store Store, ident identity.Client, baseLog *logger.Logger) *Engine {
	return &Engine{
		store:     store,
		ident:     ident,
		log:       baseLog.With("component", "MigrationEngine"),
		batchSize: defaultBatchSize,
	}
}

// Run executes the phase sequence. A nil resume means a fresh run. On error
// the returned Result still carries the progress reached, so the caller can
// persist it and resume; if identity issuance itself failed there is no
// result and the caller must not mark the profile phase complete.
func (e *Engine) Run(ctx context.Context, snap *localstate.Snapshot, creds Credentials, resume Progress) (*Result, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}

	progress := Progress{
		PhaseProfile:       {Done: 0, Total: 1},
		PhaseStatsProfiles: {Done: 0, Total: len(snap.StatsProfiles)},
		PhaseAiStates:      {Done: 0, Total: len(snap.AiStates)},
		PhaseRounds:        {Done: 0, Total: len(snap.Rounds)},
		PhaseMatches:       {Done: 0, Total: len(snap.Matches)},
	}

	ctx, span := tracer.Start(ctx, "migration.run")
	defer span.End()

	var sess *identity.Session
	err := e.phase(ctx, PhaseProfile, func(ctx context.Context) error {
		var err error
		sess, err = e.runProfilePhase(ctx, snap, creds, resume)
		return err
	})
	if err != nil {
		return nil, err
	}
	progress[PhaseProfile] = PhaseProgress{Done: 1, Total: 1}
	e.log.Info("identity established", "user_id", sess.UserID.String())

	rt := buildRemap(sess.UserID, snap)
	result := &Result{Session: sess, Progress: progress}

	var resolved map[string]uuid.UUID
	err = e.phase(ctx, PhaseSessions, func(ctx context.Context) error {
		var err error
		resolved, err = e.runSessionsPhase(ctx, sess.UserID, rt, progress)
		return err
	})
	if err != nil {
		return result, err
	}
	if err := e.phase(ctx, PhaseStatsProfiles, func(ctx context.Context) error {
		return e.runStatsProfilesPhase(ctx, sess.UserID, snap, rt, resume, progress)
	}); err != nil {
		return result, err
	}
	if err := e.phase(ctx, PhaseAiStates, func(ctx context.Context) error {
		return e.runAiStatesPhase(ctx, sess.UserID, snap, rt, resume, progress)
	}); err != nil {
		return result, err
	}
	if err := e.phase(ctx, PhaseRounds, func(ctx context.Context) error {
		return e.runRoundsPhase(ctx, sess.UserID, snap, rt, resolved, resume, progress)
	}); err != nil {
		return result, err
	}
	if err := e.phase(ctx, PhaseMatches, func(ctx context.Context) error {
		return e.runMatchesPhase(ctx, sess.UserID, snap, rt, resolved, resume, progress)
	}); err != nil {
		return result, err
	}

	e.log.Info("migration complete",
		"user_id", sess.UserID.String(),
		"rounds", progress[PhaseRounds].Done,
		"matches", progress[PhaseMatches].Done,
	)
	return result, nil
}

// phase runs one migration phase under its own span; errors carry the phase
// name for the operator-facing resume message.
func (e *Engine) phase(ctx context.Context, name Phase, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "migration.phase",
		trace.WithAttributes(attribute.String("phase", string(name))))
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("phase %s: %w", name, err)
	}
	return nil
}

// runProfilePhase is the only phase that is not naturally idempotent:
// retrying account creation could mint a second account. The caller-supplied
// resume flag gates it; on resume the engine re-establishes the session
// instead.
func (e *Engine) runProfilePhase(ctx context.Context, snap *localstate.Snapshot, creds Credentials, resume Progress) (*identity.Session, error) {
	if resume.DoneFor(PhaseProfile) >= 1 {
		sess, err := e.ident.SignIn(ctx, creds.Username, creds.Password)
		if err != nil {
			return nil, fmt.Errorf("re-establish session: %w", err)
		}
		return sess, nil
	}

	sess, err := e.ident.CreateAccount(ctx, identity.CreateAccountRequest{
		Username:         creds.Username,
		Password:         creds.Password,
		FirstName:        snap.Profile.FirstName,
		LastInitial:      snap.Profile.LastInitial,
		Grade:            snap.Profile.Grade,
		Age:              snap.Profile.Age,
		School:           snap.Profile.School,
		PriorExperience:  snap.Profile.PriorExperience,
		ConsentVersion:   snap.Profile.ConsentVersion,
		ConsentGrantedAt: snap.Profile.ConsentGrantedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	now := time.Now().UTC()
	profile := &types.PlayerProfile{
		UserID:            sess.UserID,
		Username:          creds.Username,
		FirstName:         snap.Profile.FirstName,
		LastInitial:       snap.Profile.LastInitial,
		Grade:             snap.Profile.Grade,
		Age:               snap.Profile.Age,
		School:            snap.Profile.School,
		PriorExperience:   snap.Profile.PriorExperience,
		TrainingCompleted: snap.Profile.TrainingCompleted,
		TrainingCount:     snap.Profile.TrainingCount,
		ConsentVersion:    snap.Profile.ConsentVersion,
		ConsentGrantedAt:  snap.Profile.ConsentGrantedAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.store.UpsertPlayerProfile(ctx, profile); err != nil {
		return nil, err
	}
	return sess, nil
}

// runSessionsPhase resolves every session plan, even ones a prior attempt
// already created: rounds and matches need the canonical remote session ids,
// and find-or-create on an existing row does not mutate it.
func (e *Engine) runSessionsPhase(ctx context.Context, userID uuid.UUID, rt *remapTable, progress Progress) (map[string]uuid.UUID, error) {
	plans := rt.orderedSessionPlans()
	progress[PhaseSessions] = PhaseProgress{Done: 0, Total: len(plans)}

	resolved := make(map[string]uuid.UUID, len(plans))
	for i, plan := range plans {
		row := &types.Session{
			ID:              plan.ID,
			UserID:          userID,
			ClientSessionID: plan.ClientSessionID,
			StartedAt:       plan.StartedAt,
			LastEventAt:     plan.LastEventAt,
		}
		got, err := e.store.FindOrCreateSession(ctx, row)
		if err != nil {
			return nil, err
		}
		resolved[plan.ClientSessionID] = got.ID
		progress[PhaseSessions] = PhaseProgress{Done: i + 1, Total: len(plans)}
	}
	return resolved, nil
}

func (e *Engine) runStatsProfilesPhase(ctx context.Context, userID uuid.UUID, snap *localstate.Snapshot, rt *remapTable, resume, progress Progress) error {
	total := len(snap.StatsProfiles)
	done := resume.DoneFor(PhaseStatsProfiles)
	if done > total {
		done = total
	}
	progress[PhaseStatsProfiles] = PhaseProgress{Done: done, Total: total}

	now := time.Now().UTC()
	for i := done; i < total; i++ {
		sp := snap.StatsProfiles[i]
		id, ok := rt.profileID(sp.ID)
		if !ok {
			progress[PhaseStatsProfiles] = PhaseProgress{Done: i + 1, Total: total}
			continue
		}

		row := &types.StatsProfile{
			ID:                id,
			UserID:            userID,
			BaseName:          sp.BaseName,
			ProfileVersion:    sp.ProfileVersion,
			DisplayName:       sp.DisplayName,
			TrainingCount:     sp.TrainingCount,
			TrainingCompleted: sp.TrainingCompleted,
			PredictorDefault:  sp.PredictorDefault,
			Archived:          sp.Archived,
			Version:           1,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		// Lineage pointers rewrite through the remap; targets outside the
		// migrating set are dropped, never left dangling.
		if prev, ok := rt.profileID(sp.PreviousID); ok && sp.PreviousID != "" {
			row.PreviousProfileID = &prev
		}
		if next, ok := rt.profileID(sp.NextID); ok && sp.NextID != "" {
			row.NextProfileID = &next
		}

		if err := e.store.UpsertStatsProfile(ctx, row); err != nil {
			return err
		}
		progress[PhaseStatsProfiles] = PhaseProgress{Done: i + 1, Total: total}
	}
	return nil
}

func (e *Engine) runAiStatesPhase(ctx context.Context, userID uuid.UUID, snap *localstate.Snapshot, rt *remapTable, resume, progress Progress) error {
	total := len(snap.AiStates)
	done := resume.DoneFor(PhaseAiStates)
	if done > total {
		done = total
	}
	progress[PhaseAiStates] = PhaseProgress{Done: done, Total: total}

	for i := done; i < total; i++ {
		st := snap.AiStates[i]
		profileID, ok := rt.profileID(st.StatsProfileID)
		if !ok {
			progress[PhaseAiStates] = PhaseProgress{Done: i + 1, Total: total}
			continue
		}

		row := &types.AiState{
			ID:             uuid.NewSHA1(rt.ns, []byte("aistate:"+st.StatsProfileID)),
			UserID:         userID,
			StatsProfileID: profileID,
			ModelVersion:   st.ModelVersion,
			RoundsSeen:     st.RoundsSeen,
			State:          datatypes.JSON(st.State),
			NeedsRebuild:   st.NeedsRebuild,
			Version:        1,
			UpdatedAt:      time.Now().UTC(),
		}
		if err := e.store.UpsertAiState(ctx, row); err != nil {
			return err
		}
		progress[PhaseAiStates] = PhaseProgress{Done: i + 1, Total: total}
	}
	return nil
}

func (e *Engine) runRoundsPhase(ctx context.Context, userID uuid.UUID, snap *localstate.Snapshot, rt *remapTable, resolved map[string]uuid.UUID, resume, progress Progress) error {
	ordered := make([]localstate.LocalRound, len(snap.Rounds))
	copy(ordered, snap.Rounds)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].PlayedAt.Equal(ordered[j].PlayedAt) {
			return ordered[i].PlayedAt.Before(ordered[j].PlayedAt)
		}
		return ordered[i].RoundNumber < ordered[j].RoundNumber
	})

	total := len(ordered)
	done := resume.DoneFor(PhaseRounds)
	if done > total {
		done = total
	}
	progress[PhaseRounds] = PhaseProgress{Done: done, Total: total}

	// Round numbers are sequential per remote session. Replay the counter
	// over the already-migrated prefix so a resumed run continues from where
	// the prior attempt stopped.
	nextNumber := make(map[uuid.UUID]int)
	assign := func(r localstate.LocalRound) (*types.Round, bool) {
		profileID, ok := rt.profileID(r.StatsProfileID)
		if !ok {
			return nil, false
		}
		sessionID := resolved[sessionKey(r.SessionKey)]
		nextNumber[sessionID]++

		row := &types.Round{
			UserID:              userID,
			SessionID:           sessionID,
			StatsProfileID:      profileID,
			ClientRoundID:       rt.roundClientID(r.ClientRoundID),
			RoundNumber:         nextNumber[sessionID],
			PlayedAt:            r.PlayedAt,
			Mode:                r.Mode,
			Difficulty:          r.Difficulty,
			PlayerMove:          r.PlayerMove,
			AiMove:              r.AiMove,
			PredictedPlayerMove: r.PredictedPlayerMove,
			Outcome:             r.Outcome,
			DecisionPolicy:      r.DecisionPolicy,
			AiConfidence:        r.AiConfidence,
			ConfidenceBucket:    r.ConfidenceBucket,
			StreakAi:            r.StreakAi,
			StreakYou:           r.StreakYou,
		}
		if mid, ok := rt.matchID(r.MatchID); ok && r.MatchID != "" {
			row.MatchID = &mid
		}
		return row, true
	}

	for i := 0; i < done; i++ {
		assign(ordered[i])
	}

	for start := done; start < total; start += e.batchSize {
		end := start + e.batchSize
		if end > total {
			end = total
		}
		batch := make([]*types.Round, 0, end-start)
		for i := start; i < end; i++ {
			if row, ok := assign(ordered[i]); ok {
				batch = append(batch, row)
			}
		}
		if err := e.store.UpsertRounds(ctx, batch); err != nil {
			return err
		}
		progress[PhaseRounds] = PhaseProgress{Done: end, Total: total}
	}
	return nil
}

func (e *Engine) runMatchesPhase(ctx context.Context, userID uuid.UUID, snap *localstate.Snapshot, rt *remapTable, resolved map[string]uuid.UUID, resume, progress Progress) error {
	total := len(snap.Matches)
	done := resume.DoneFor(PhaseMatches)
	if done > total {
		done = total
	}
	progress[PhaseMatches] = PhaseProgress{Done: done, Total: total}

	for start := done; start < total; start += e.batchSize {
		end := start + e.batchSize
		if end > total {
			end = total
		}
		batch := make([]*types.Match, 0, end-start)
		for i := start; i < end; i++ {
			m := snap.Matches[i]
			profileID, ok := rt.profileID(m.StatsProfileID)
			if !ok {
				continue
			}
			id, ok := rt.matchID(m.ClientMatchID)
			if !ok {
				continue
			}
			batch = append(batch, &types.Match{
				ID:             id,
				UserID:         userID,
				SessionID:      resolved[sessionKey(m.SessionKey)],
				StatsProfileID: profileID,
				ClientMatchID:  rt.matchClientID(m.ClientMatchID),
				StartedAt:      m.StartedAt,
				EndedAt:        m.EndedAt,
				ScoreYou:       m.ScoreYou,
				ScoreAi:        m.ScoreAi,
			})
		}
		if err := e.store.UpsertMatches(ctx, batch); err != nil {
			return err
		}
		progress[PhaseMatches] = PhaseProgress{Done: end, Total: total}
	}
	return nil
}
