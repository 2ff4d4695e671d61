package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breedkit/gblup/resource"
)

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(2, nil)
	defer m.Close()

	ctx := context.Background()

	id, err := m.Submit(ctx, KindSolve, func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := m.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 42, snap.Result)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.Finished.IsZero())
	assert.True(t, snap.Status.Terminal())
}

func TestManager_Failed(t *testing.T) {
	m := NewManager(1, nil)
	defer m.Close()

	ctx := context.Background()

	id, err := m.Submit(ctx, KindBuildGRM, func(ctx context.Context) (any, error) {
		return nil, assert.AnError
	})
	require.NoError(t, err)

	snap, err := m.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.ErrorIs(t, snap.Err, assert.AnError)
	assert.Nil(t, snap.Result)
}

func TestManager_CancelDiscardsResult(t *testing.T) {
	m := NewManager(1, nil)
	defer m.Close()

	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	id, err := m.Submit(ctx, KindRun, func(ctx context.Context) (any, error) {
		close(started)
		<-release
		// The task keeps computing and returns a value; cancellation
		// must drop it anyway.
		return "late result", nil
	})
	require.NoError(t, err)

	<-started
	require.NoError(t, m.Cancel(id))
	close(release)

	snap, err := m.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.Nil(t, snap.Result)
}

func TestManager_CancelQueued(t *testing.T) {
	m := NewManager(1, nil)
	defer m.Close()

	ctx := context.Background()
	block := make(chan struct{})

	// Occupy the single worker.
	first, err := m.Submit(ctx, KindSolve, func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	})
	require.NoError(t, err)

	queued, err := m.Submit(ctx, KindSolve, func(ctx context.Context) (any, error) {
		return "should never run", nil
	})
	require.NoError(t, err)

	snap, err := m.Get(queued)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, snap.Status)

	require.NoError(t, m.Cancel(queued))
	close(block)

	snap, err = m.Wait(ctx, queued)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.Nil(t, snap.Result)

	snap, err = m.Wait(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snap.Status)
}

func TestManager_WaitContext(t *testing.T) {
	m := NewManager(1, nil)
	defer m.Close()

	release := make(chan struct{})
	id, err := m.Submit(context.Background(), KindSolve, func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = m.Wait(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestManager_NotFound(t *testing.T) {
	m := NewManager(1, nil)
	defer m.Close()

	_, err := m.Get(NewID())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Wait(context.Background(), NewID())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, m.Cancel(NewID()), ErrNotFound)
}

func TestManager_SubmitAfterClose(t *testing.T) {
	m := NewManager(1, nil)
	m.Close()
	m.Close() // idempotent

	_, err := m.Submit(context.Background(), KindSolve, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_ConcurrencyBoundedByController(t *testing.T) {
	ctrl := resource.NewController(resource.Config{MaxConcurrentSolves: 1})
	m := NewManager(4, ctrl)
	defer m.Close()

	ctx := context.Background()

	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})

	var ids []ID
	for i := 0; i < 4; i++ {
		id, err := m.Submit(ctx, KindSolve, func(ctx context.Context) (any, error) {
			if err := ctrl.AcquireSolve(ctx); err != nil {
				return nil, err
			}
			defer ctrl.ReleaseSolve()

			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			<-release

			mu.Lock()
			running--
			mu.Unlock()
			return nil, nil
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)

	for _, id := range ids {
		snap, err := m.Wait(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, snap.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, peak)
}

func TestManager_Forget(t *testing.T) {
	m := NewManager(1, nil)
	defer m.Close()

	ctx := context.Background()
	id, err := m.Submit(ctx, KindSolve, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	_, err = m.Wait(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	m.Forget(id)
	assert.Equal(t, 0, m.Len())

	_, err = m.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}
