package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mirrormatch/cloudsync/internal/platform/apierr"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
)

func testQueue(t *testing.T) *Queue {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	q := New(log, Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		PaceMin:     0,
		PaceMax:     time.Millisecond,
		Buffer:      64,
	})
	t.Cleanup(q.Close)
	return q
}

func transientErr() error {
	return apierr.New(409, "", errors.New("conflict"))
}

func TestQueueExecutesInSubmissionOrder(t *testing.T) {
	q := testQueue(t)

	const n = 25
	var (
		mu       sync.Mutex
		observed []int
	)
	results := make([]<-chan error, 0, n)
	for i := 0; i < n; i++ {
		i := i
		results = append(results, q.EnqueueAsync(context.Background(), "ordered", func(ctx context.Context) error {
			mu.Lock()
			observed = append(observed, i)
			mu.Unlock()
			return nil
		}))
	}
	for i, ch := range results {
		if err := <-ch; err != nil {
			t.Fatalf("task %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(observed) != n {
		t.Fatalf("observed %d side effects, want %d", len(observed), n)
	}
	for i, got := range observed {
		if got != i {
			t.Fatalf("side effect %d came from task %d, want %d", i, got, i)
		}
	}
}

func TestQueueRetriesTransientExactlyThreeTimes(t *testing.T) {
	q := testQueue(t)

	attempts := 0
	err := q.Enqueue(context.Background(), "always_transient", func(ctx context.Context) error {
		attempts++
		return transientErr()
	})
	if err == nil {
		t.Fatalf("expected final failure")
	}
	if attempts != 3 {
		t.Fatalf("attempts=%d, want 3", attempts)
	}
}

func TestQueueFatalFailsWithoutRetry(t *testing.T) {
	q := testQueue(t)

	attempts := 0
	fatal := errors.New("malformed payload")
	err := q.Enqueue(context.Background(), "fatal", func(ctx context.Context) error {
		attempts++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("err=%v, want %v", err, fatal)
	}
	if attempts != 1 {
		t.Fatalf("attempts=%d, want 1", attempts)
	}
}

func TestQueueTransientThenSuccess(t *testing.T) {
	q := testQueue(t)

	attempts := 0
	err := q.Enqueue(context.Background(), "flaky", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return transientErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts=%d, want 3", attempts)
	}
}

func TestQueueFailureDoesNotBlockSubsequentTasks(t *testing.T) {
	q := testQueue(t)

	failing := q.EnqueueAsync(context.Background(), "doomed", func(ctx context.Context) error {
		return transientErr()
	})
	ran := false
	ok := q.EnqueueAsync(context.Background(), "survivor", func(ctx context.Context) error {
		ran = true
		return nil
	})

	if err := <-failing; err == nil {
		t.Fatalf("doomed task should fail")
	}
	if err := <-ok; err != nil {
		t.Fatalf("survivor task: %v", err)
	}
	if !ran {
		t.Fatalf("survivor task never ran")
	}
}

func TestQueueRejectsAfterClose(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	q := New(log, Config{MaxAttempts: 1, PaceMax: 0})
	q.Close()

	if err := q.Enqueue(context.Background(), "late", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error after close")
	}
}
