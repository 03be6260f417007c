// Package readiness blocks until a freshly started service instance
// answers a trivial query, or declares failure after a bounded number of
// attempts.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dakshina99/apimdbctl/internal/config"
	"github.com/dakshina99/apimdbctl/internal/logger"
)

// ErrTimeout indicates the target never answered within the attempt
// budget. Callers must treat it as fatal for that target.
var ErrTimeout = errors.New("readiness timeout")

// Prober issues one capability probe against a target. Only the returned
// error matters; probe output is discarded.
type Prober interface {
	Ping(ctx context.Context, target config.Target) error
}

// Poller polls one target at a time. Safe to reuse across targets and from
// concurrent goroutines: all per-call state lives on the stack.
type Poller struct {
	prober Prober
	log    logger.Logger

	// Two-phase schedule. Engine containers start bimodally: most answer
	// within a few short waits, first boots take much longer. A short fixed
	// delay for the first attempts and a longer fixed delay after covers
	// both without punishing the common fast path the way exponential
	// growth would.
	FastDelay    time.Duration
	SlowDelay    time.Duration
	FastAttempts int
}

func New(prober Prober, log logger.Logger) *Poller {
	return &Poller{
		prober:       prober,
		log:          log,
		FastDelay:    5 * time.Second,
		SlowDelay:    10 * time.Second,
		FastAttempts: 3,
	}
}

// WaitReady returns nil on the first successful probe, or ErrTimeout after
// maxAttempts consecutive failures. Attempts are numbered from 1 and
// polling starts immediately: an early failure is an expected attempt, not
// a reason for a settle delay before the first probe.
func (p *Poller) WaitReady(ctx context.Context, target config.Target, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempt := 0
	operation := func() error {
		attempt++
		return p.prober.Ping(ctx, target)
	}
	notify := func(err error, next time.Duration) {
		p.log.Debug("instance not ready yet",
			"database", target.Database,
			"attempt", attempt,
			"next_delay", next.String(),
		)
	}

	schedule := backoff.WithContext(
		backoff.WithMaxRetries(p.schedule(), uint64(maxAttempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, schedule, notify); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s not query-capable after %d attempts: %v",
			ErrTimeout, target.Database, maxAttempts, err)
	}

	p.log.Info("instance ready", "database", target.Database, "attempts", attempt)
	return nil
}

func (p *Poller) schedule() backoff.BackOff {
	return &twoPhaseBackOff{
		fastDelay:    p.FastDelay,
		slowDelay:    p.SlowDelay,
		fastAttempts: p.FastAttempts,
	}
}

// twoPhaseBackOff yields fastDelay after each of the first fastAttempts
// attempts and slowDelay after every later one. Deliberately not
// exponential.
type twoPhaseBackOff struct {
	fastDelay    time.Duration
	slowDelay    time.Duration
	fastAttempts int
	attempts     int
}

var _ backoff.BackOff = (*twoPhaseBackOff)(nil)

func (b *twoPhaseBackOff) NextBackOff() time.Duration {
	b.attempts++
	if b.attempts <= b.fastAttempts {
		return b.fastDelay
	}
	return b.slowDelay
}

func (b *twoPhaseBackOff) Reset() {
	b.attempts = 0
}
