package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/realtime"
)

type redisBus struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisBus(addr string, baseLog *logger.Logger) (Bus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log: baseLog.With("component", "RedisSyncBus"),
		rdb: rdb,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, ev realtime.Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis sync bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, realtime.Channel(ev.UserID, ev.StatsProfileID), raw).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, channel string, onEvent func(ev realtime.Event)) (func(), error) {
	if b == nil || b.rdb == nil {
		return nil, fmt.Errorf("redis sync bus not initialized")
	}
	if onEvent == nil {
		return nil, fmt.Errorf("onEvent callback required")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := b.rdb.Subscribe(subCtx, channel)

	// ensures subscription actually started
	if _, err := sub.Receive(subCtx); err != nil {
		cancel()
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev realtime.Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad sync event payload", "channel", channel, "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return cancel, nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
