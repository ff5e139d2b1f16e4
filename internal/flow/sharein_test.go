package flow_test

import (
	"context"
	"testing"
	"time"

	"eventflow/internal/flow"

	"github.com/stretchr/testify/require"
)

func TestShareIn_stopsOnContextDone(t *testing.T) {
	t.Parallel()

	src := flow.MustNewReplay[int](flow.ReplayConfig{ExtraBuffer: 8})
	in := src.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shared, done, err := flow.ShareIn(ctx, in, flow.ReplayConfig{Replay: 1, ExtraBuffer: 8})
	require.NoError(t, err)

	out := shared.Subscribe()
	defer out.Close()

	emitAll(t, src, 1, 2)
	require.Equal(t, []int{1, 2}, nextN(t, out, 2))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("share goroutine did not stop")
	}

	// The upstream subscription is released with it.
	require.Equal(t, 0, src.Subscribers())
	require.Equal(t, []int{2}, shared.ReplayCache())
}

func TestShareIn_stopsOnSourceClosed(t *testing.T) {
	t.Parallel()

	c := flow.NewLatest(-99)
	in := c.Subscribe()

	shared, done, err := flow.ShareIn(context.Background(), in, flow.ReplayConfig{})
	require.NoError(t, err)
	require.NotNil(t, shared)

	in.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("share goroutine did not stop")
	}
	require.Equal(t, 0, c.Subscribers())
}

func TestShareIn_invalidConfig(t *testing.T) {
	t.Parallel()

	c := flow.NewLatest(0)
	in := c.Subscribe()
	defer in.Close()

	_, _, err := flow.ShareIn(context.Background(), in, flow.ReplayConfig{Replay: -1})
	require.ErrorIs(t, err, flow.ErrInvalidConfig)
}
