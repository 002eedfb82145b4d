package remotestore

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mirrormatch/cloudsync/internal/platform/apierr"
	"github.com/mirrormatch/cloudsync/internal/types"
)

func TestSplitRoundRows(t *testing.T) {
	withPK := &types.Round{ID: uuid.New(), ClientRoundID: "a"}
	fresh1 := &types.Round{ClientRoundID: "b"}
	fresh2 := &types.Round{ClientRoundID: "c"}

	withID, withoutID := splitRoundRows([]*types.Round{withPK, fresh1, nil, fresh2})
	if len(withID) != 1 || withID[0] != withPK {
		t.Fatalf("withID=%v, want the pre-assigned row only", withID)
	}
	if len(withoutID) != 2 {
		t.Fatalf("withoutID has %d rows, want 2", len(withoutID))
	}
}

func TestSplitMatchRows(t *testing.T) {
	withPK := &types.Match{ID: uuid.New(), ClientMatchID: "m1"}
	fresh := &types.Match{ClientMatchID: "m2"}

	withID, withoutID := splitMatchRows([]*types.Match{withPK, fresh})
	if len(withID) != 1 || len(withoutID) != 1 {
		t.Fatalf("split=%d/%d, want 1/1", len(withID), len(withoutID))
	}
}

func TestNormalizePgError(t *testing.T) {
	err := normalize(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	ae := apierr.From(err)
	if ae == nil {
		t.Fatalf("normalize did not produce an apierr: %v", err)
	}
	if ae.Status != 409 {
		t.Fatalf("status=%d, want 409", ae.Status)
	}
	if ae.Code != "23505" {
		t.Fatalf("code=%q, want 23505", ae.Code)
	}
}

func TestNormalizeKeepsExistingShape(t *testing.T) {
	orig := apierr.New(422, "", errors.New("bad payload"))
	if got := normalize(orig); got != orig {
		t.Fatalf("normalize rewrapped an already-normalized error")
	}
}

func TestNormalizePlainError(t *testing.T) {
	plain := errors.New("boom")
	ae := apierr.From(normalize(plain))
	if ae == nil {
		t.Fatalf("plain error not normalized")
	}
	if !errors.Is(ae, plain) {
		t.Fatalf("normalized error lost its cause")
	}
	if ae.Status != 0 || ae.Code != "" {
		t.Fatalf("plain error should carry no status/code, got %d/%q", ae.Status, ae.Code)
	}
}

func TestNormalizeNil(t *testing.T) {
	if err := normalize(nil); err != nil {
		t.Fatalf("normalize(nil)=%v, want nil", err)
	}
}
