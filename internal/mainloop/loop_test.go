package mainloop_test

import (
	"context"
	"testing"
	"time"

	"eventflow/internal/mainloop"
	logx "eventflow/pkg/logx"

	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *mainloop.Loop {
	t.Helper()
	l := mainloop.New(logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func flush(t *testing.T, l *mainloop.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Flush(ctx))
}

func TestLoop_runsTasksInPostOrder(t *testing.T) {
	t.Parallel()

	l := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	flush(t, l)

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
	require.GreaterOrEqual(t, l.Executed(), uint64(100))
}

func TestLoop_postDoesNotBlockOnSlowTask(t *testing.T) {
	t.Parallel()

	l := startLoop(t)

	release := make(chan struct{})
	require.True(t, l.Post(func() { <-release }))

	posted := make(chan struct{})
	go func() {
		defer close(posted)
		for i := 0; i < 1000; i++ {
			l.Post(func() {})
		}
	}()

	select {
	case <-posted:
	case <-time.After(2 * time.Second):
		t.Fatal("Post blocked behind a slow task")
	}
	close(release)
	flush(t, l)
}

func TestLoop_recoversFromPanickingTask(t *testing.T) {
	t.Parallel()

	l := startLoop(t)

	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })
	flush(t, l)

	require.True(t, ran)
	require.Equal(t, uint64(1), l.Panics())
}

func TestLoop_closeRejectsPosts(t *testing.T) {
	t.Parallel()

	l := mainloop.New(logx.Nop())
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	l.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	require.False(t, l.Post(func() {}))
	require.ErrorIs(t, l.Flush(context.Background()), mainloop.ErrStopped)
	require.ErrorIs(t, l.Run(context.Background()), mainloop.ErrStopped)
}
