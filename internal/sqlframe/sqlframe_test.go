package sqlframe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type ledgerState struct {
	Balance int `json:"balance"`
}

func TestSqlframe_CommitPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "corral.db")

	store, err := Open(path, ledgerState{Balance: 5})
	require.NoError(t, err)

	frame, err := store.Open(ctx)
	require.NoError(t, err)

	state, err := frame.Read(ctx)
	require.NoError(t, err)
	state.Balance = 42
	require.NoError(t, frame.Write(ctx, state))
	require.NoError(t, frame.Commit(ctx))
	require.NoError(t, store.Close())

	reopened, err := Open(path, ledgerState{Balance: 0})
	require.NoError(t, err)
	defer reopened.Close()

	frame2, err := reopened.Open(ctx)
	require.NoError(t, err)
	got, err := frame2.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 42, got.Balance)
	require.NoError(t, frame2.Rollback(ctx))
}

func TestSqlframe_RollbackDiscardsWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "corral.db")

	store, err := Open(path, ledgerState{Balance: 5})
	require.NoError(t, err)
	defer store.Close()

	frame, err := store.Open(ctx)
	require.NoError(t, err)
	state, err := frame.Read(ctx)
	require.NoError(t, err)
	state.Balance = 999
	require.NoError(t, frame.Write(ctx, state))
	require.NoError(t, frame.Rollback(ctx))

	frame2, err := store.Open(ctx)
	require.NoError(t, err)
	got, err := frame2.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, got.Balance)
	require.NoError(t, frame2.Rollback(ctx))
}
