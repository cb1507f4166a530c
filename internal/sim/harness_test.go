package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tannerlabs/corral"
	"github.com/tannerlabs/corral/internal/memframe"
)

// counter is a tiny tracked-increment machine: Transition on a Normal
// input issues a tracked "apply" action; completing it with success=true
// bumps Value. Restore re-emits any still-pending id. Small enough that
// invariant violations are easy to reason about by hand while still
// exercising the crash/restore path.
type counter struct {
	Value   int
	Pending map[corral.ActionID]int
	NextID  corral.ActionID
}

type bumpInput struct{ delta int }

type counterMachine struct{}

func (counterMachine) Transition(ctx context.Context, state *counter, in corral.Input[bumpInput, bool], actions *corral.Actions[int, struct{}]) error {
	if state.Pending == nil {
		state.Pending = map[corral.ActionID]int{}
	}
	if payload, ok := in.Normal(); ok {
		id := state.NextID
		state.NextID++
		state.Pending[id] = payload.delta
		return actions.Add(corral.Tracked[int, struct{}](id, payload.delta))
	}
	id, success, ok := in.Completed()
	if !ok {
		return nil
	}
	delta, exists := state.Pending[id]
	if !exists {
		return &corral.UnknownTrackedActionError{ID: id}
	}
	delete(state.Pending, id)
	if success {
		state.Value += delta
	}
	return nil
}

func (counterMachine) Restore(ctx context.Context, state *counter, actions *corral.Actions[int, struct{}]) error {
	actions.Clear()
	for id, delta := range state.Pending {
		if err := actions.Add(corral.Tracked[int, struct{}](id, delta)); err != nil {
			return err
		}
	}
	return nil
}

func TestHarness_RunWithoutCrashStaysPositive(t *testing.T) {
	store := memframe.New(counter{})
	cfg := Config[counter, bumpInput, int, struct{}, bool]{
		Seed:  42,
		Steps: 200,
		GenerateInput: func(rng *rand.Rand, step int) bumpInput {
			return bumpInput{delta: 1 + rng.IntN(5)}
		},
		Oracle: func(rng *rand.Rand, action corral.Action[int, struct{}]) bool {
			return true // always succeeds: Value is non-decreasing
		},
		CheckInvariants: func(state *counter) error {
			if state.Value < 0 {
				return fmt.Errorf("value went negative: %d", state.Value)
			}
			return nil
		},
	}

	result, err := Run(context.Background(), counterMachine{}, store, cfg)
	require.NoError(t, err)
	assert.Equal(t, -1, result.FailedAtStep)
	assert.Equal(t, 200, result.StepsRun)
}

func TestHarness_CrashInjectionReemitsPending(t *testing.T) {
	store := memframe.New(counter{})
	cfg := Config[counter, bumpInput, int, struct{}, bool]{
		Seed:  7,
		Steps: 50,
		GenerateInput: func(rng *rand.Rand, step int) bumpInput {
			return bumpInput{delta: 1}
		},
		Oracle: func(rng *rand.Rand, action corral.Action[int, struct{}]) bool {
			return true
		},
		CrashEvery: 10,
	}

	result, err := Run(context.Background(), counterMachine{}, store, cfg)
	require.NoError(t, err)

	var restores int
	for _, ev := range result.Trace {
		if ev.Kind == "restore" {
			restores++
		}
	}
	assert.Greater(t, restores, 0, "expected at least one injected crash/restore cycle")
	assert.Empty(t, store.Peek().Pending, "every tracked action should eventually complete")
}

func TestHarness_InvariantViolationReportsSeedAndStep(t *testing.T) {
	store := memframe.New(counter{})
	cfg := Config[counter, bumpInput, int, struct{}, bool]{
		Seed:  99,
		Steps: 10,
		GenerateInput: func(rng *rand.Rand, step int) bumpInput {
			return bumpInput{delta: 1}
		},
		Oracle: func(rng *rand.Rand, action corral.Action[int, struct{}]) bool {
			return true
		},
		CheckInvariants: func(state *counter) error {
			if state.Value >= 1 {
				return fmt.Errorf("value reached %d", state.Value)
			}
			return nil
		},
	}

	result, err := Run(context.Background(), counterMachine{}, store, cfg)
	require.Error(t, err)
	assert.Equal(t, uint64(99), result.Seed)
	assert.GreaterOrEqual(t, result.FailedAtStep, 0)
}
