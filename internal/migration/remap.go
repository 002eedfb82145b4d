package migration

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/localstate"
)

// fallbackSessionKey buckets rounds and matches that carry no local session
// id onto one synthetic remote session.
const fallbackSessionKey = "migrated"

// sessionPlan is the remote session row a group of local records collapses
// onto. StartedAt/LastEventAt are the min/max timestamps of everything that
// maps to it.
type sessionPlan struct {
	ID              uuid.UUID
	ClientSessionID string
	StartedAt       time.Time
	LastEventAt     time.Time
}

// remapTable maps local identifiers to remote-safe ones. Ids are UUIDv5
// under a namespace derived from the new account id, so a resumed run
// regenerates exactly the ids a prior attempt wrote.
type remapTable struct {
	ns       uuid.UUID
	profiles map[string]uuid.UUID
	matches  map[string]uuid.UUID
	sessions map[string]*sessionPlan
}

func buildRemap(userID uuid.UUID, snap *localstate.Snapshot) *remapTable {
	ns := uuid.NewSHA1(uuid.NameSpaceOID, []byte("mirrormatch-migration:"+userID.String()))
	rt := &remapTable{
		ns:       ns,
		profiles: make(map[string]uuid.UUID),
		matches:  make(map[string]uuid.UUID),
		sessions: make(map[string]*sessionPlan),
	}

	for _, sp := range snap.StatsProfiles {
		if sp.ID == "" {
			continue
		}
		rt.profiles[sp.ID] = uuid.NewSHA1(ns, []byte("profile:"+sp.ID))
	}
	for _, m := range snap.Matches {
		if m.ClientMatchID == "" {
			continue
		}
		rt.matches[m.ClientMatchID] = uuid.NewSHA1(ns, []byte("match:"+m.ClientMatchID))
	}

	for _, r := range snap.Rounds {
		rt.observeSession(sessionKey(r.SessionKey), r.PlayedAt, r.PlayedAt)
	}
	for _, m := range snap.Matches {
		last := m.StartedAt
		if m.EndedAt != nil && m.EndedAt.After(last) {
			last = *m.EndedAt
		}
		rt.observeSession(sessionKey(m.SessionKey), m.StartedAt, last)
	}

	return rt
}

func sessionKey(key string) string {
	if key == "" {
		return fallbackSessionKey
	}
	return key
}

func (rt *remapTable) observeSession(key string, first, last time.Time) {
	plan, ok := rt.sessions[key]
	if !ok {
		plan = &sessionPlan{
			ID:              uuid.NewSHA1(rt.ns, []byte("session:"+key)),
			ClientSessionID: key,
			StartedAt:       first,
			LastEventAt:     last,
		}
		rt.sessions[key] = plan
		return
	}
	if first.Before(plan.StartedAt) {
		plan.StartedAt = first
	}
	if last.After(plan.LastEventAt) {
		plan.LastEventAt = last
	}
}

// profileID resolves a local profile id; ok is false for pointers outside
// the migrating set (callers drop those rather than leave them dangling).
func (rt *remapTable) profileID(localID string) (uuid.UUID, bool) {
	id, ok := rt.profiles[localID]
	return id, ok
}

func (rt *remapTable) matchID(localID string) (uuid.UUID, bool) {
	id, ok := rt.matches[localID]
	return id, ok
}

// roundClientID assigns the fresh idempotency id a migrated round is written
// under. Deterministic, so replaying the tail of the rounds phase is safe.
func (rt *remapTable) roundClientID(localClientRoundID string) string {
	return uuid.NewSHA1(rt.ns, []byte("round:"+localClientRoundID)).String()
}

// matchClientID is the analog for migrated matches.
func (rt *remapTable) matchClientID(localClientMatchID string) string {
	return uuid.NewSHA1(rt.ns, []byte("match-client:"+localClientMatchID)).String()
}

// orderedSessionPlans returns the plans sorted by client session id so phase
// progress counting is stable across runs.
func (rt *remapTable) orderedSessionPlans() []*sessionPlan {
	keys := make([]string, 0, len(rt.sessions))
	for k := range rt.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	plans := make([]*sessionPlan, 0, len(keys))
	for _, k := range keys {
		plans = append(plans, rt.sessions[k])
	}
	return plans
}
