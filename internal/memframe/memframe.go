// Package memframe provides an in-memory corral.Frame that satisfies the
// atomic-frame contract via gob snapshot/restore: commit is the identity
// function on success, and rollback resets to the pre-transition snapshot
// on failure.
package memframe

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/tannerlabs/corral"
)

// Store holds the single persisted copy of state shared by every frame
// opened against it: a single-writer-owned handle to durable state.
type Store[S any] struct {
	mu    sync.Mutex
	value S
}

// New creates a Store seeded with the given initial state.
func New[S any](initial S) *Store[S] {
	return &Store[S]{value: initial}
}

// Open opens a fresh Frame rooted at the currently persisted state. It
// snapshots the current value via gob so Rollback can restore it exactly,
// including for state types whose zero value is not their correct reset
// point (maps, slices).
func (s *Store[S]) Open(ctx context.Context) (corral.Frame[S], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := encode(s.value)
	if err != nil {
		return nil, fmt.Errorf("memframe: snapshot state: %w", err)
	}

	// Decode a private deep copy rather than struct-assigning s.value: S
	// may embed maps or slices, and a shallow copy would share their
	// backing storage with the store, letting an in-place mutation during
	// Transition corrupt committed state before Commit is ever called.
	var isolated S
	if err := decode(snapshot, &isolated); err != nil {
		return nil, fmt.Errorf("memframe: isolate state: %w", err)
	}

	return &frame[S]{store: s, snapshot: snapshot, current: isolated}, nil
}

// Peek returns the currently persisted state without opening a frame. It
// is intended for read-only inspection (tests, diagnostics), not for
// mutation.
func (s *Store[S]) Peek() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

type frame[S any] struct {
	store    *Store[S]
	snapshot []byte
	current  S
	done     bool
}

func (f *frame[S]) Read(ctx context.Context) (*S, error) {
	if f.done {
		return nil, fmt.Errorf("memframe: frame already closed")
	}
	return &f.current, nil
}

func (f *frame[S]) Write(ctx context.Context, state *S) error {
	if f.done {
		return fmt.Errorf("memframe: frame already closed")
	}
	f.current = *state
	return nil
}

func (f *frame[S]) Commit(ctx context.Context) error {
	if f.done {
		return fmt.Errorf("memframe: frame already closed")
	}
	f.done = true

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.value = f.current
	return nil
}

func (f *frame[S]) Rollback(ctx context.Context) error {
	if f.done {
		return nil
	}
	f.done = true
	return decode(f.snapshot, &f.current)
}

func encode[S any](v S) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode[S any](data []byte, out *S) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}
