package corral

import "context"

// Frame is the atomic unit within which state mutations either all
// persist (on Commit) or all vanish (on Rollback). The package specifies
// only this contract, never a concrete storage choice.
//
// A Frame is exclusively owned by the caller that opened it for the
// duration of one Transition or Restore call; implementations must not be
// shared across concurrent callers.
type Frame[S any] interface {
	// Read returns the current state visible within this frame.
	Read(ctx context.Context) (*S, error)

	// Write records a new value for state within this frame. The write is
	// not durable until Commit succeeds.
	Write(ctx context.Context, state *S) error

	// Commit makes the frame's writes durable. After a successful Commit,
	// the frame must not be reused.
	Commit(ctx context.Context) error

	// Rollback discards the frame's writes, leaving persisted state exactly
	// as it was before the frame was opened. After Rollback, the frame
	// must not be reused.
	Rollback(ctx context.Context) error
}

// FrameOpener opens a fresh Frame rooted at the currently persisted state.
// The driver opens one frame per Transition call and one read-only frame
// for Restore.
type FrameOpener[S any] interface {
	Open(ctx context.Context) (Frame[S], error)
}
