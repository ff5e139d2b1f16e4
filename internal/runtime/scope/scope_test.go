package scope

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScope_stopCancelsAndWaits(t *testing.T) {
	s := New(context.Background())
	exited := make(chan struct{})
	require.True(t, s.Go0("worker", func(ctx context.Context) {
		<-ctx.Done()
		close(exited)
	}))
	require.Equal(t, uint64(1), s.Counters().Started)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	<-exited
	require.True(t, s.Ended())
	require.Zero(t, s.Counters().Active)
	require.False(t, s.Go0("late", func(context.Context) {}), "ended scope must reject new work")
}

func TestScope_panicIsRecordedAndCancels(t *testing.T) {
	s := New(context.Background(), WithCancelOnError(true))
	s.Go0("boom", func(context.Context) { panic("boom") })

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("panic did not cancel scope")
	}
	require.ErrorContains(t, s.Wait(context.Background()), "panic in boom")
}

func TestScope_firstErrorWins(t *testing.T) {
	s := New(context.Background())
	first := errors.New("first")
	s.Go("a", func(context.Context) error { return first })
	require.Eventually(t, func() bool { return s.Err() != nil }, time.Second, time.Millisecond)
	s.Go("b", func(context.Context) error { return errors.New("second") })
	s.Go("c", func(context.Context) error { return context.Canceled })

	require.ErrorIs(t, s.Wait(context.Background()), first)
	require.False(t, s.Ended(), "errors do not cancel without WithCancelOnError")
	s.Cancel()
}

func TestScope_parentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := New(parent)
	cancel()
	require.True(t, s.Ended())
	require.False(t, s.Go0("x", func(context.Context) {}))
}
