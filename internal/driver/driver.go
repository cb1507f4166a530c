// Package driver implements the reference outer loop: it persists state
// through a corral.Frame, invokes a corral.Machine, and hands the resulting
// actions to a caller-supplied Executor, feeding tracked-action completions
// back in as inputs.
//
// It is a single-writer event loop fed through a thread-safe queue,
// processing one event at a time to keep the state machine's mutations
// serialized.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tannerlabs/corral"
)

// Executor physically performs action side effects: HTTP calls, payment
// processors, message sends. It is the external collaborator the core
// state-transition contract never performs itself. Completions are
// reported back to the Driver via Complete.
type Executor[TP, UP any] interface {
	// Execute dispatches one action. For tracked actions the executor must
	// eventually report the outcome via Driver.Complete, correlated by id.
	// For untracked actions, no further correlation occurs.
	Execute(ctx context.Context, action corral.Action[TP, UP]) error
}

// Completion carries a tracked action's outcome back into the driver.
type Completion[TR any] struct {
	ID     corral.ActionID
	Result TR
}

// Driver is the single-writer outer loop for one state machine instance.
// CRITICAL: Run must be called from exactly one goroutine, so all
// STF/Restore invocations for this machine happen serially in that
// goroutine.
type Driver[S, N, TP, UP, TR any] struct {
	machine  corral.Machine[S, N, TP, UP, TR]
	opener   corral.FrameOpener[S]
	executor Executor[TP, UP]

	normalCh     chan submission[N, TR]
	completionCh chan Completion[TR]
	closed       chan struct{}

	actionCapacity int
	log            *slog.Logger
}

type submission[N, TR any] struct {
	input corral.Input[N, TR]
	errCh chan error
}

// New constructs a Driver. actionCapacity bounds the Actions container
// passed to the Machine per call; 0 means unbounded.
func New[S, N, TP, UP, TR any](
	machine corral.Machine[S, N, TP, UP, TR],
	opener corral.FrameOpener[S],
	executor Executor[TP, UP],
	actionCapacity int,
) *Driver[S, N, TP, UP, TR] {
	return &Driver[S, N, TP, UP, TR]{
		machine:        machine,
		opener:         opener,
		executor:       executor,
		normalCh:       make(chan submission[N, TR], 64),
		completionCh:   make(chan Completion[TR], 64),
		closed:         make(chan struct{}),
		actionCapacity: actionCapacity,
		log:            slog.Default(),
	}
}

// Submit enqueues a Normal input and blocks until its Transition call has
// been committed or rolled back, returning the resulting error (if any).
// Thread-safe: may be called from any goroutine.
func (d *Driver[S, N, TP, UP, TR]) Submit(ctx context.Context, payload N) error {
	errCh := make(chan error, 1)
	sub := submission[N, TR]{input: corral.NormalInput[N, TR](payload), errCh: errCh}

	select {
	case d.normalCh <- sub:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.closed:
		return fmt.Errorf("driver: stopped")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete reports a tracked action's outcome. Thread-safe.
func (d *Driver[S, N, TP, UP, TR]) Complete(ctx context.Context, id corral.ActionID, result TR) error {
	select {
	case d.completionCh <- Completion[TR]{ID: id, Result: result}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.closed:
		return fmt.Errorf("driver: stopped")
	}
}

// Stop closes the driver's stop signal, causing Run to return once any
// in-flight call finishes and making later Submit and Complete calls fail.
// The input channels themselves are left open.
func (d *Driver[S, N, TP, UP, TR]) Stop() {
	close(d.closed)
}

// Recover runs Restore against currently persisted state and submits its
// actions to the executor: cold start or post-crash recovery. Restore
// failures are NOT tolerated: the caller must not begin processing normal
// inputs until Recover succeeds.
func (d *Driver[S, N, TP, UP, TR]) Recover(ctx context.Context) error {
	frame, err := d.opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("driver: open recovery frame: %w", err)
	}
	// Restore is read-only; always roll back rather than commit.
	defer frame.Rollback(ctx)

	state, err := frame.Read(ctx)
	if err != nil {
		return fmt.Errorf("driver: read state for recovery: %w", err)
	}

	actions := corral.NewActions[TP, UP](d.actionCapacity)
	if err := d.machine.Restore(ctx, state, actions); err != nil {
		d.log.Error("restore failed", "error", err)
		return corral.NewRestoreError(err)
	}

	d.log.Info("restore complete", "actions", actions.Len())
	d.dispatch(ctx, actions)
	return nil
}

// Run starts the single-writer event loop. It blocks until ctx is
// cancelled or Stop is called.
//
// ERROR HANDLING: a single submitted input's Transition failure is
// reported to whoever called Submit for it, but does not stop the loop:
// other flows must keep progressing ("log and continue").
func (d *Driver[S, N, TP, UP, TR]) Run(ctx context.Context) error {
	d.log.Info("driver starting")
	actions := corral.NewActions[TP, UP](d.actionCapacity)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("driver stopping: context cancelled")
			return ctx.Err()

		case <-d.closed:
			d.log.Info("driver stopping: stopped")
			return nil

		case sub := <-d.normalCh:
			sub.errCh <- d.step(ctx, sub.input, actions)

		case comp := <-d.completionCh:
			input := corral.CompletedInput[N, TR](comp.ID, comp.Result)
			if err := d.step(ctx, input, actions); err != nil {
				d.log.Error("completion transition failed", "action_id", comp.ID, "error", err)
			}
		}
	}
}

// step processes one input: clear actions, open a frame, invoke the
// machine, then commit-and-dispatch on success or roll-back-and-discard on
// failure.
func (d *Driver[S, N, TP, UP, TR]) step(ctx context.Context, in corral.Input[N, TR], actions *corral.Actions[TP, UP]) error {
	actions.Clear()

	frame, err := d.opener.Open(ctx)
	if err != nil {
		return corral.NewResourceError(fmt.Errorf("open frame: %w", err))
	}

	state, err := frame.Read(ctx)
	if err != nil {
		frame.Rollback(ctx)
		return corral.NewResourceError(fmt.Errorf("read state: %w", err))
	}

	traceID := uuid.Must(uuid.NewV7()).String()
	d.log.Debug("transition starting", "trace_id", traceID)

	if err := d.machine.Transition(ctx, state, in, actions); err != nil {
		frame.Rollback(ctx)
		d.log.Debug("transition failed", "trace_id", traceID, "error", err)
		return err
	}

	if err := frame.Write(ctx, state); err != nil {
		frame.Rollback(ctx)
		return corral.NewResourceError(fmt.Errorf("write state: %w", err))
	}

	if err := frame.Commit(ctx); err != nil {
		return corral.NewResourceError(fmt.Errorf("commit frame: %w", err))
	}

	d.log.Info("transition committed", "trace_id", traceID, "actions", actions.Len())
	d.dispatch(ctx, actions)
	return nil
}

// dispatch submits actions to the executor in append order. The executor is
// free to race tracked dispatches against each other; only the submission
// order (not the completion order) is guaranteed.
func (d *Driver[S, N, TP, UP, TR]) dispatch(ctx context.Context, actions *corral.Actions[TP, UP]) {
	for _, action := range actions.All() {
		if err := d.executor.Execute(ctx, action); err != nil {
			d.log.Error("executor failed", "error", err)
		}
	}
}
