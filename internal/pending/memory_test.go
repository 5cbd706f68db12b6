package pending

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryTracker_PendingLifecycle(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker()

	on, err := tr.IsPending(ctx, 42)
	require.NoError(t, err)
	require.False(t, on)

	require.NoError(t, tr.RecordRequest(ctx, 42))
	on, err = tr.IsPending(ctx, 42)
	require.NoError(t, err)
	require.True(t, on)

	require.NoError(t, tr.Clear(ctx, 42))
	on, err = tr.IsPending(ctx, 42)
	require.NoError(t, err)
	require.False(t, on)
}

func TestMemoryTracker_PreAuthorization(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker()

	pre, err := tr.IsPreAuthorized(ctx, 42)
	require.NoError(t, err)
	require.False(t, pre)

	require.NoError(t, tr.PreAuthorize(ctx, 42, "o1"))
	pre, err = tr.IsPreAuthorized(ctx, 42)
	require.NoError(t, err)
	require.True(t, pre)

	// pre-authorization is tracked separately from pending requests
	on, err := tr.IsPending(ctx, 42)
	require.NoError(t, err)
	require.False(t, on)

	require.NoError(t, tr.ClearPreAuthorization(ctx, 42))
	pre, err = tr.IsPreAuthorized(ctx, 42)
	require.NoError(t, err)
	require.False(t, pre)
}
