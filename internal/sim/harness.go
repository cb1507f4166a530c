// Package sim implements a deterministic, seeded driver variant: it
// substitutes a caller-supplied executor with a seeded oracle, drives
// inputs from a seeded generator, and checks invariants between every
// transition.
//
// Run opens a fresh frame per step, drives a sequence of steps, and reports
// a structured Result over an open-ended, seed-reproducible random walk
// rather than a fixed action script.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/tannerlabs/corral"
)

// TraceEvent records one step of a simulation run for diagnostics and
// golden-file comparison.
type TraceEvent struct {
	Step     int             `json:"step"`
	Kind     string          `json:"kind"` // "normal" | "completion" | "restore"
	ActionID corral.ActionID `json:"action_id,omitempty"`
	Err      string          `json:"err,omitempty"`
}

// Config parameterizes one simulation run. All randomness is drawn from
// the rng passed to GenerateInput and Oracle; the harness itself never
// consults the wall clock or unseeded entropy.
type Config[S, N, TP, UP, TR any] struct {
	Seed  uint64
	Steps int

	// GenerateInput produces the next externally-originated input. Called
	// whenever the pending-completion queue is empty.
	GenerateInput func(rng *rand.Rand, step int) N

	// Oracle produces a synthetic completion result for a tracked action,
	// standing in for the real executor.
	Oracle func(rng *rand.Rand, action corral.Action[TP, UP]) TR

	// CheckInvariants is invoked after every transition. A non-nil return
	// aborts the run.
	CheckInvariants func(state *S) error

	// CrashEvery, if > 0, injects a crash-and-restore cycle every N steps:
	// the harness drops its in-memory pending-completion queue, reopens a
	// frame on persisted state, and calls Restore to repopulate it, as if
	// the driver process had died and come back up.
	CrashEvery int
}

// Result reports the outcome of a simulation run. On failure, Seed and
// FailedAtStep are enough to reproduce the exact failing run.
type Result struct {
	Seed         uint64
	StepsRun     int
	FailedAtStep int // -1 if the run completed without failure
	Err          error
	Trace        []TraceEvent
}

type pendingCompletion[N, TR any] struct {
	input corral.Input[N, TR]
}

// Run drives machine through Config.Steps steps, each against a fresh frame
// opened from opener, injecting crashes per CrashEvery and checking
// invariants after every committed transition. A step taken by a
// crash-and-restore cycle applies no input and is not counted in StepsRun.
func Run[S, N, TP, UP, TR any](
	ctx context.Context,
	machine corral.Machine[S, N, TP, UP, TR],
	opener corral.FrameOpener[S],
	cfg Config[S, N, TP, UP, TR],
) (*Result, error) {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	result := &Result{Seed: cfg.Seed, FailedAtStep: -1}
	queue := make([]pendingCompletion[N, TR], 0, 16)

	for step := 0; step < cfg.Steps; step++ {
		if cfg.CrashEvery > 0 && step > 0 && step%cfg.CrashEvery == 0 {
			if err := crashAndRestore(ctx, machine, opener, cfg, rng, &queue, result, step); err != nil {
				result.Err = err
				result.FailedAtStep = step
				return result, fmt.Errorf("sim: crash recovery failed at seed=%d step=%d: %w", cfg.Seed, step, err)
			}
			continue
		}

		var in corral.Input[N, TR]
		kind := "normal"
		if len(queue) > 0 {
			in = queue[0].input
			queue = queue[1:]
			kind = "completion"
		} else {
			in = corral.NormalInput[N, TR](cfg.GenerateInput(rng, step))
		}

		frame, err := opener.Open(ctx)
		if err != nil {
			return result, fmt.Errorf("sim: open frame at step %d: %w", step, err)
		}

		state, err := frame.Read(ctx)
		if err != nil {
			frame.Rollback(ctx)
			return result, fmt.Errorf("sim: read state at step %d: %w", step, err)
		}

		actions := corral.NewActions[TP, UP](0)
		txErr := machine.Transition(ctx, state, in, actions)
		result.StepsRun++

		if txErr != nil {
			frame.Rollback(ctx)
			result.Trace = append(result.Trace, TraceEvent{Step: step, Kind: kind, Err: txErr.Error()})
			// A Transition error is an expected, recoverable outcome (e.g.
			// DomainError); it is not itself a simulation failure unless
			// the caller's generator produced input that should have
			// succeeded. The harness continues the run.
			continue
		}

		if err := frame.Write(ctx, state); err != nil {
			frame.Rollback(ctx)
			return result, fmt.Errorf("sim: write state at step %d: %w", step, err)
		}
		if err := frame.Commit(ctx); err != nil {
			return result, fmt.Errorf("sim: commit at step %d: %w", step, err)
		}

		result.Trace = append(result.Trace, TraceEvent{Step: step, Kind: kind})

		if cfg.CheckInvariants != nil {
			if err := cfg.CheckInvariants(state); err != nil {
				result.Err = err
				result.FailedAtStep = step
				return result, fmt.Errorf("sim: invariant violated at seed=%d step=%d: %w", cfg.Seed, step, err)
			}
		}

		for _, action := range actions.All() {
			id, payload, ok := action.AsTracked()
			if !ok {
				continue
			}
			res := cfg.Oracle(rng, corral.Tracked[TP, UP](id, payload))
			queue = append(queue, pendingCompletion[N, TR]{input: corral.CompletedInput[N, TR](id, res)})
		}
	}

	return result, nil
}

// crashAndRestore drops the in-memory pending-completion queue (modeling
// the loss of in-flight executor state on process death) and re-derives it
// from Restore's output against currently persisted state.
func crashAndRestore[S, N, TP, UP, TR any](
	ctx context.Context,
	machine corral.Machine[S, N, TP, UP, TR],
	opener corral.FrameOpener[S],
	cfg Config[S, N, TP, UP, TR],
	rng *rand.Rand,
	queue *[]pendingCompletion[N, TR],
	result *Result,
	step int,
) error {
	*queue = (*queue)[:0]

	frame, err := opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("open recovery frame: %w", err)
	}
	defer frame.Rollback(ctx)

	state, err := frame.Read(ctx)
	if err != nil {
		return fmt.Errorf("read state for recovery: %w", err)
	}

	actions := corral.NewActions[TP, UP](0)
	if err := machine.Restore(ctx, state, actions); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	result.Trace = append(result.Trace, TraceEvent{Step: step, Kind: "restore"})

	for _, action := range actions.All() {
		id, payload, ok := action.AsTracked()
		if !ok {
			continue
		}
		res := cfg.Oracle(rng, corral.Tracked[TP, UP](id, payload))
		*queue = append(*queue, pendingCompletion[N, TR]{input: corral.CompletedInput[N, TR](id, res)})
	}
	return nil
}
