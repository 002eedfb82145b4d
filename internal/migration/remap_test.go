package migration

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/localstate"
)

func TestRemapIsDeterministicPerAccount(t *testing.T) {
	userID := uuid.New()
	snap := &localstate.Snapshot{
		StatsProfiles: []localstate.LocalStatsProfile{{ID: "p1"}, {ID: "p2"}},
		Matches:       []localstate.LocalMatch{{ClientMatchID: "m1", SessionKey: "s1", StatsProfileID: "p1", StartedAt: time.Now()}},
	}

	first := buildRemap(userID, snap)
	second := buildRemap(userID, snap)

	for local, id := range first.profiles {
		if second.profiles[local] != id {
			t.Fatalf("profile %q remapped to %s then %s", local, id, second.profiles[local])
		}
	}
	if first.matches["m1"] != second.matches["m1"] {
		t.Fatalf("match remap not stable across builds")
	}
	if first.roundClientID("r1") != second.roundClientID("r1") {
		t.Fatalf("round client id not stable across builds")
	}

	other := buildRemap(uuid.New(), snap)
	if other.profiles["p1"] == first.profiles["p1"] {
		t.Fatalf("different accounts should not share remapped ids")
	}
}

func TestRemapSessionCollapsing(t *testing.T) {
	userID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := &localstate.Snapshot{}
	for i := 0; i < 10; i++ {
		snap.Rounds = append(snap.Rounds, localstate.LocalRound{
			ClientRoundID: uuid.NewString(),
			SessionKey:    "shared",
			PlayedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	matchEnd := base.Add(45 * time.Minute)
	snap.Matches = append(snap.Matches,
		localstate.LocalMatch{ClientMatchID: "m1", SessionKey: "shared", StartedAt: base.Add(-5 * time.Minute)},
		localstate.LocalMatch{ClientMatchID: "m2", SessionKey: "shared", StartedAt: base, EndedAt: &matchEnd},
	)

	rt := buildRemap(userID, snap)
	if len(rt.sessions) != 1 {
		t.Fatalf("got %d session plans, want 1", len(rt.sessions))
	}
	plan := rt.sessions["shared"]
	if !plan.StartedAt.Equal(base.Add(-5 * time.Minute)) {
		t.Fatalf("started_at=%v, want earliest record timestamp", plan.StartedAt)
	}
	if !plan.LastEventAt.Equal(matchEnd) {
		t.Fatalf("last_event_at=%v, want latest record timestamp", plan.LastEventAt)
	}
}

func TestRemapFallbackSessionBucket(t *testing.T) {
	rt := buildRemap(uuid.New(), &localstate.Snapshot{
		Rounds: []localstate.LocalRound{
			{ClientRoundID: "r1", SessionKey: "", PlayedAt: time.Now()},
			{ClientRoundID: "r2", SessionKey: "", PlayedAt: time.Now()},
		},
	})
	if len(rt.sessions) != 1 {
		t.Fatalf("got %d session plans, want 1 fallback bucket", len(rt.sessions))
	}
	if _, ok := rt.sessions[fallbackSessionKey]; !ok {
		t.Fatalf("fallback bucket missing")
	}
}

func TestRemapProfileLookupOutsideSet(t *testing.T) {
	rt := buildRemap(uuid.New(), &localstate.Snapshot{
		StatsProfiles: []localstate.LocalStatsProfile{{ID: "p1"}},
	})
	if _, ok := rt.profileID("p1"); !ok {
		t.Fatalf("p1 should resolve")
	}
	if _, ok := rt.profileID("elsewhere"); ok {
		t.Fatalf("pointer outside the migrating set should not resolve")
	}
}
