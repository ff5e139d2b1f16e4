package flow_test

import (
	"context"
	"testing"
	"time"

	"eventflow/internal/flow"

	"github.com/stretchr/testify/require"
)

// nextSoon reads one value or fails the test after a second.
func nextSoon[T any](t *testing.T, s *flow.Subscription[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := s.Next(ctx)
	require.NoError(t, err)
	return v
}

// nextN reads n values.
func nextN[T any](t *testing.T, s *flow.Subscription[T], n int) []T {
	t.Helper()
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, nextSoon(t, s))
	}
	return out
}

// requireEmpty asserts nothing is queued for s.
func requireEmpty[T any](t *testing.T, s *flow.Subscription[T]) {
	t.Helper()
	v, ok := s.TryNext()
	require.Falsef(t, ok, "unexpected value %v", v)
}
