package bus

import (
	"context"

	"github.com/mirrormatch/cloudsync/internal/realtime"
)

// Bus carries the incremental sync event feed. Subscribe returns a teardown
// function; the hydration controller holds exactly one live subscription at
// a time.
type Bus interface {
	Publish(ctx context.Context, ev realtime.Event) error
	Subscribe(ctx context.Context, channel string, onEvent func(ev realtime.Event)) (func(), error)
	Close() error
}
