package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCommand_quitAndUnknown(t *testing.T) {
	var out bytes.Buffer
	require.ErrorIs(t, runCommand(context.Background(), nil, []string{"Q"}, &out), errQuit)

	require.NoError(t, runCommand(context.Background(), nil, []string{"frobnicate"}, &out))
	require.Contains(t, out.String(), `unknown command "frobnicate"`)

	out.Reset()
	require.NoError(t, runCommand(context.Background(), nil, []string{"help"}, &out))
	require.Equal(t, help, out.String())
}

func TestCommandLoop_returnsEOFWhenInputCloses(t *testing.T) {
	in := make(chan string)
	close(in)
	var out bytes.Buffer
	require.ErrorIs(t, commandLoop(context.Background(), nil, in, &out), io.EOF)
}

func TestCommandLoop_stopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, commandLoop(ctx, nil, make(chan string), io.Discard))
}
