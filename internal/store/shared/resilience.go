package shared

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Breakers keeps reads and writes on separate circuits, so a burst of failing
// content queries cannot block cache writes
type Breakers struct {
	Read  *gobreaker.CircuitBreaker
	Write *gobreaker.CircuitBreaker
}

// NewBreakers returns the read and write circuits of one provider
func NewBreakers(name string) Breakers {
	return Breakers{
		Read:  NewBreaker(name + "-read"),
		Write: NewBreaker(name + "-write"),
	}
}

// NewBreaker returns a circuit breaker that trips on connection failures only.
// Query errors (missing table, bad column) are the caller's problem and leave it closed.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		IsSuccessful: func(err error) bool {
			return !Transient(err)
		},
	})
}

// Transient reports whether err comes from the connection to the database
// rather than from the statement itself
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientSQLState(string(pqErr.Code))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientSQLState(pgErr.Code)
	}
	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr) || pgconn.Timeout(err)
}

// transientSQLState matches connection exceptions (08), insufficient resources (53)
// and operator intervention (57)
func transientSQLState(code string) bool {
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "53") || strings.HasPrefix(code, "57")
}

// Read runs a read through the breaker, retrying transient failures with backoff
func Read(ctx context.Context, logger *zap.Logger, cb *gobreaker.CircuitBreaker, op string, fn func() (interface{}, error)) (interface{}, error) {
	var result interface{}
	err := retry.Do(
		func() error {
			res, err := cb.Execute(fn)
			if err != nil {
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(Transient),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying store read", zap.String("op", op), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	return result, err
}

// Write runs a write through the breaker once. Writes are never retried.
func Write(cb *gobreaker.CircuitBreaker, fn func() (interface{}, error)) (interface{}, error) {
	return cb.Execute(fn)
}
