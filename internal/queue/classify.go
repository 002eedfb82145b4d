package queue

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mirrormatch/cloudsync/internal/platform/apierr"
)

// Decision is the retry classifier's verdict for a failed mutation.
type Decision int

const (
	DecisionFatal Decision = iota
	DecisionRetry
)

// Postgres SQLSTATE codes the schema can produce under write races. Both are
// retried because the competing write may complete first and make the retry
// succeed.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Classify decides whether a failed remote mutation is worth retrying.
// Transient network failures, optimistic-concurrency conflicts (409) and
// unique/foreign-key races retry; everything else is fatal and propagates.
func Classify(err error) Decision {
	if err == nil {
		return DecisionFatal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return DecisionRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return DecisionRetry
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DecisionRetry
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return DecisionRetry
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return DecisionRetry
		}
		return DecisionFatal
	}

	if ae := apierr.From(err); ae != nil {
		if ae.Status == 409 {
			return DecisionRetry
		}
		switch ae.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return DecisionRetry
		}
	}

	return DecisionFatal
}
