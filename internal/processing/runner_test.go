package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultForm/internal/queue"
)

func collect(t *testing.T) (HandlerFunc, <-chan queue.Job) {
	t.Helper()
	done := make(chan queue.Job, 8)
	return func(_ context.Context, job queue.Job) error {
		done <- job
		return nil
	}, done
}

func waitJob(t *testing.T, ch <-chan queue.Job) queue.Job {
	t.Helper()
	select {
	case job := <-ch:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
		return queue.Job{}
	}
}

func TestRunnerRunsDueJobs(t *testing.T) {
	handle, done := collect(t)
	r := New(handle, 2)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	require.NoError(t, r.Schedule(ctx, queue.Job{Type: queue.TaskExtract, Payload: queue.Payload{UploadID: "u1"}}))
	require.NoError(t, r.Schedule(ctx, queue.Job{Type: queue.TaskRemind, RunAt: time.Now().Add(-time.Minute)}))

	got := map[string]bool{}
	got[waitJob(t, done).Type] = true
	got[waitJob(t, done).Type] = true
	assert.True(t, got[queue.TaskExtract])
	assert.True(t, got[queue.TaskRemind])

	cancel()
	r.Wait()
}

func TestRunnerDelaysFutureJobs(t *testing.T) {
	handle, done := collect(t)
	r := New(handle, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	require.NoError(t, r.Schedule(ctx, queue.Job{Type: queue.TaskExpire, RunAt: time.Now().Add(50 * time.Millisecond)}))
	assert.Equal(t, 1, r.Pending())
	select {
	case <-done:
		t.Fatal("delayed job ran early")
	case <-time.After(10 * time.Millisecond):
	}

	assert.Equal(t, queue.TaskExpire, waitJob(t, done).Type)
	assert.Equal(t, 0, r.Pending())
}

func TestRunnerCancelStopsTimers(t *testing.T) {
	handle, done := collect(t)
	r := New(handle, 1)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	require.NoError(t, r.Schedule(ctx, queue.Job{Type: queue.TaskExpire, RunAt: time.Now().Add(time.Hour)}))
	cancel()
	r.Wait()
	assert.Eventually(t, func() bool { return r.Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, done)
}

func TestRunnerQueueFull(t *testing.T) {
	r := New(func(context.Context, queue.Job) error { return errors.New("unused") }, 1)
	// No workers started, so the buffer fills up.
	for i := 0; i < cap(r.queue); i++ {
		require.NoError(t, r.Schedule(context.Background(), queue.Job{Type: queue.TaskExtract}))
	}
	assert.ErrorIs(t, r.Schedule(context.Background(), queue.Job{Type: queue.TaskExtract}), ErrQueueFull)
}
