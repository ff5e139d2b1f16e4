package flow_test

import (
	"context"
	"testing"

	"eventflow/internal/flow"

	"github.com/stretchr/testify/require"
)

func TestLatest_subscriberFirstSeesCurrentValue(t *testing.T) {
	t.Parallel()

	for _, sets := range [][]int{nil, {1}, {1, 2, 3}, {5, 5, 4}} {
		c := flow.NewLatest(-99)
		for _, v := range sets {
			c.Set(v)
		}
		want := -99
		if len(sets) > 0 {
			want = sets[len(sets)-1]
		}

		s := c.Subscribe()
		require.Equal(t, want, nextSoon(t, s))
		require.Equal(t, want, c.Get())
		requireEmpty(t, s)
		s.Close()
	}
}

func TestLatest_deliversLaterSets(t *testing.T) {
	t.Parallel()

	c := flow.NewLatest(0)
	s := c.Subscribe()
	defer s.Close()

	require.Equal(t, 0, nextSoon(t, s))
	c.Set(1)
	require.Equal(t, 1, nextSoon(t, s))
	c.Set(2)
	require.Equal(t, 2, nextSoon(t, s))
}

func TestLatest_coalescesForSlowSubscriber(t *testing.T) {
	t.Parallel()

	c := flow.NewLatest(0)
	s := c.Subscribe()
	defer s.Close()

	for i := 1; i <= 10; i++ {
		require.True(t, c.Set(i))
	}

	// Only the latest survives; intermediate values were coalesced.
	require.Equal(t, 10, nextSoon(t, s))
	requireEmpty(t, s)
	require.Equal(t, uint64(10), s.Dropped())
	require.Equal(t, uint64(10), c.Version())
}

func TestLatest_distinctUntilChanged(t *testing.T) {
	t.Parallel()

	c := flow.NewLatest(1, flow.DistinctUntilChanged[int]())
	s := c.Subscribe()
	defer s.Close()
	require.Equal(t, 1, nextSoon(t, s))

	require.False(t, c.Set(1))
	requireEmpty(t, s)

	require.True(t, c.Set(2))
	require.Equal(t, 2, nextSoon(t, s))
}

func TestLatest_update(t *testing.T) {
	t.Parallel()

	c := flow.NewLatest(1)
	require.Equal(t, 3, c.Update(func(v int) int { return v + 2 }))
	require.Equal(t, 3, c.Get())
}

func TestLatest_closeStopsDelivery(t *testing.T) {
	t.Parallel()

	c := flow.NewLatest("a")
	s := c.Subscribe()
	require.Equal(t, 1, c.Subscribers())

	s.Close()
	s.Close()
	require.Equal(t, 0, c.Subscribers())

	c.Set("b")
	_, err := s.Next(context.Background())
	require.ErrorIs(t, err, flow.ErrClosed)

	// A new subscription sees the latest value, nothing was buffered while
	// unsubscribed.
	s2 := c.Subscribe()
	defer s2.Close()
	require.Equal(t, "b", nextSoon(t, s2))
	requireEmpty(t, s2)
}

func TestLatest_nextUnblocksOnClose(t *testing.T) {
	t.Parallel()

	c := flow.NewLatest(0)
	s := c.Subscribe()
	require.Equal(t, 0, nextSoon(t, s))

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		errCh <- err
	}()
	s.Close()
	require.ErrorIs(t, <-errCh, flow.ErrClosed)
}

func TestCollect_returnsNilOnClose(t *testing.T) {
	t.Parallel()

	c := flow.NewLatest(0)
	s := c.Subscribe()

	var got []int
	done := make(chan error, 1)
	go func() {
		done <- flow.Collect(context.Background(), s, func(v int) {
			got = append(got, v)
			if v == 0 {
				c.Set(1)
			}
			if v == 1 {
				s.Close()
			}
		})
	}()
	require.NoError(t, <-done)
	require.Equal(t, []int{0, 1}, got)
}
