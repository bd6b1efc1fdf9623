package auth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_RunsSubmittedTasks(t *testing.T) {
	q := auth.NewTaskQueue(8, auth.WithTaskLogger(auth.NoopLogger()))
	q.Start(context.Background(), 2)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Submit(auth.Task{
			Name: "count",
			Run: func(context.Context) error {
				ran.Add(1)
				return nil
			},
		}))
	}

	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int32(5), ran.Load())

	err := q.Submit(auth.Task{Name: "late", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, auth.ErrQueueClosed)
}

func TestTaskQueue_FullQueueDoesNotBlock(t *testing.T) {
	q := auth.NewTaskQueue(1, auth.WithTaskLogger(auth.NoopLogger()))

	noop := auth.Task{Name: "noop", Run: func(context.Context) error { return nil }}
	require.NoError(t, q.Submit(noop))
	assert.ErrorIs(t, q.Submit(noop), auth.ErrQueueFull)

	require.NoError(t, q.Close(context.Background()))
}

func TestTaskQueue_SurvivesFailuresAndPanics(t *testing.T) {
	logger := &recordingLogger{}
	q := auth.NewTaskQueue(4, auth.WithTaskLogger(logger), auth.WithTaskTimeout(time.Second))
	q.Start(context.Background(), 1)

	done := make(chan struct{})
	require.NoError(t, q.Submit(auth.Task{Name: "fails", Run: func(context.Context) error { return errors.New("boom") }}))
	require.NoError(t, q.Submit(auth.Task{Name: "panics", Run: func(context.Context) error { panic("oops") }}))
	require.NoError(t, q.Submit(auth.Task{Name: "ok", Run: func(context.Context) error {
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker stopped after a failing task")
	}

	require.NoError(t, q.Close(context.Background()))

	_, failed := logger.find("task failed")
	assert.True(t, failed)
	_, panicked := logger.find("task panicked")
	assert.True(t, panicked)
}

func TestTaskQueue_TaskTimeout(t *testing.T) {
	q := auth.NewTaskQueue(1, auth.WithTaskLogger(auth.NoopLogger()))
	q.Start(context.Background(), 1)

	result := make(chan error, 1)
	require.NoError(t, q.Submit(auth.Task{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			result <- ctx.Err()
			return ctx.Err()
		},
	}))

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("task timeout not applied")
	}

	require.NoError(t, q.Close(context.Background()))
}

func TestInlineTasks(t *testing.T) {
	logger := &recordingLogger{}
	tasks := auth.InlineTasks{Logger: logger}

	ran := false
	require.NoError(t, tasks.Submit(auth.Task{Name: "inline", Run: func(context.Context) error {
		ran = true
		return nil
	}}))
	assert.True(t, ran)

	require.NoError(t, tasks.Submit(auth.Task{Name: "broken", Run: func(context.Context) error {
		return errors.New("broken")
	}}))
	entry, ok := logger.find("task failed")
	require.True(t, ok)
	assert.Equal(t, "broken", argValue(entry.args, "task"))
}
