// Package txn owns the read -> compute -> apply -> write -> broadcast loop.
// Concurrency control is optimistic: the conditional write's affected-row
// count arbitrates racing committers, and the loser retries against a fresh
// read. There are no locks anywhere on this path.
package txn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/moonlitgames/werewolf-backend/internal/engine"
	"github.com/moonlitgames/werewolf-backend/internal/game"
	"github.com/moonlitgames/werewolf-backend/internal/night"
	"github.com/moonlitgames/werewolf-backend/internal/pubsub"
	"github.com/moonlitgames/werewolf-backend/internal/store"
)

var (
	// ErrNotFound: the room row does not exist. Terminal, never retried.
	ErrNotFound = store.ErrNotFound
	// ErrConflict: the CAS lost MaxAttempts times in a row.
	ErrConflict = errors.New("txn: commit conflict, retries exhausted")
	// ErrInternal wraps panics recovered at the Commit boundary.
	ErrInternal = errors.New("txn: internal error")
)

// RejectedError is a handler-level business rule failure. Terminal; the
// reason is surfaced to the caller verbatim.
type RejectedError struct{ Reason string }

func (e *RejectedError) Error() string { return "txn: intent rejected: " + e.Reason }

// Compute turns the freshly read state into a ProcessResult. It must be
// side-effect free: it may run several times when the CAS loses.
type Compute func(s game.State, revision int64) engine.ProcessResult

// Progression optionally attaches an auto-advance evaluation to the commit;
// its actions fold strictly after the handler's.
type Progression struct {
	Enabled bool
	NowMs   int64
}

type Result struct {
	State       game.State
	Revision    int64
	SideEffects engine.SideEffects
}

// Publisher is the best-effort notification port. It is invoked strictly
// after the write commits and has no failure mode the caller can observe.
type Publisher interface {
	Publish(roomID string, m pubsub.Message)
}

type Coordinator struct {
	store store.RoomStore
	pub   Publisher
	log   *zap.Logger

	// Policy knobs. The observable contract (conflicts retried transparently
	// up to a bound, then surfaced as ErrConflict) does not depend on the
	// exact values.
	MaxAttempts int
	Backoff     time.Duration
}

func New(st store.RoomStore, pub Publisher, log *zap.Logger) *Coordinator {
	return &Coordinator{
		store:       st,
		pub:         pub,
		log:         log,
		MaxAttempts: 3,
		Backoff:     50 * time.Millisecond,
	}
}

// The commit loop as an explicit phase machine, so each transition is a
// plain value change instead of nested control flow.
type phase int

const (
	phaseReading phase = iota
	phaseComputing
	phaseWriting
	phaseConflict
	phaseDone
	phaseFailed
)

type attempt struct {
	roomID  string
	compute Compute
	prog    Progression

	phase   phase
	number  int // 1-based attempt counter
	state   game.State
	rev     int64
	result  engine.ProcessResult
	next    game.State
	out     Result
	err     error
}

// Commit runs one intent against a room. Behavior by failure class:
// missing room -> ErrNotFound; handler rejection -> RejectedError with the
// handler's reason, store untouched; CAS loss -> silent retry with linear
// backoff until MaxAttempts, then ErrConflict; panic in compute/reduce ->
// ErrInternal. On success the new snapshot is handed to the publisher,
// whose outcome never affects the returned result.
func (c *Coordinator) Commit(ctx context.Context, roomID string, compute Compute, prog Progression) (Result, error) {
	a := &attempt{roomID: roomID, compute: compute, prog: prog, phase: phaseReading, number: 1}

	for a.phase != phaseDone && a.phase != phaseFailed {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		c.step(ctx, a)
	}
	if a.phase == phaseFailed {
		return Result{}, a.err
	}

	c.pub.Publish(roomID, pubsub.Message{
		Type:     pubsub.TypeStateUpdate,
		State:    &a.out.State,
		Revision: a.out.Revision,
	})
	return a.out, nil
}

func (c *Coordinator) step(ctx context.Context, a *attempt) {
	switch a.phase {
	case phaseReading:
		s, rev, err := c.store.Load(ctx, a.roomID)
		if errors.Is(err, store.ErrNotFound) {
			a.phase, a.err = phaseFailed, ErrNotFound
			return
		}
		if err != nil {
			a.phase, a.err = phaseFailed, err
			return
		}
		a.state, a.rev = s, rev
		a.phase = phaseComputing

	case phaseComputing:
		if err := c.runCompute(a); err != nil {
			a.phase, a.err = phaseFailed, err
			return
		}
		if !a.result.Success {
			a.phase, a.err = phaseFailed, &RejectedError{Reason: a.result.Reason}
			return
		}
		a.phase = phaseWriting

	case phaseWriting:
		ok, err := c.store.CompareAndSwap(ctx, a.roomID, a.next, a.rev)
		if err != nil {
			a.phase, a.err = phaseFailed, err
			return
		}
		if !ok {
			a.phase = phaseConflict
			return
		}
		a.out = Result{State: a.next, Revision: a.rev + 1, SideEffects: a.result.SideEffects}
		a.phase = phaseDone

	case phaseConflict:
		if a.number >= c.MaxAttempts {
			c.log.Warn("commit retries exhausted",
				zap.String("room", a.roomID), zap.Int("attempts", a.number))
			a.phase, a.err = phaseFailed, ErrConflict
			return
		}
		// Linear backoff keyed on the attempt that just lost.
		select {
		case <-time.After(c.Backoff * time.Duration(a.number)):
		case <-ctx.Done():
			a.phase, a.err = phaseFailed, ctx.Err()
			return
		}
		a.number++
		a.phase = phaseReading

	default:
		panic(fmt.Sprintf("txn: step called in phase %d", a.phase))
	}
}

// runCompute executes the handler and the action folds with a recover guard:
// a panic anywhere in compute or reduce surfaces as ErrInternal instead of
// tearing the server down.
func (c *Coordinator) runCompute(a *attempt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("commit compute panicked",
				zap.String("room", a.roomID), zap.Any("panic", r))
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	a.result = a.compute(a.state, a.rev)
	if !a.result.Success {
		return nil
	}

	next := game.ReduceAll(a.state, a.result.Actions)
	if a.prog.Enabled {
		d := night.Evaluate(next, a.prog.NowMs)
		next = game.ReduceAll(next, night.Actions(next, d))
	}
	a.next = game.Normalize(next)
	return nil
}
