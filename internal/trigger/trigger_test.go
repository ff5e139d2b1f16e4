package trigger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "eventflow/pkg/logx"
)

func TestServiceFiresOnInterval(t *testing.T) {
	var n atomic.Int32
	s := New(func() { n.Add(1) }, logx.Nop())
	require.NoError(t, s.Apply("every:1s"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer func() { require.NoError(t, s.Stop(context.Background())) }()

	require.Eventually(t, func() bool { return n.Load() >= 1 }, 4*time.Second, 20*time.Millisecond)
	require.GreaterOrEqual(t, s.Fired(), uint64(1))
}

func TestServiceApplyKeepsPreviousOnError(t *testing.T) {
	s := New(nil, logx.Nop())
	require.NoError(t, s.Apply("@every 5s"))
	require.Error(t, s.Apply("bogus"))
	require.Equal(t, "@every 5s", s.Spec())

	require.NoError(t, s.Apply(""))
	require.Empty(t, s.Spec())
}

func TestServiceDisabledNeverFires(t *testing.T) {
	var n atomic.Int32
	s := New(func() { n.Add(1) }, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(1200 * time.Millisecond)
	cancel()
	require.Zero(t, n.Load())
	require.NoError(t, s.Stop(context.Background()))
}
