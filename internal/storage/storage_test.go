package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "eventflow/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, d := range []string{"", "none", " NONE "} {
		j, err := Open(Config{Driver: d}, logx.Nop())
		require.NoError(t, err)
		require.Nil(t, j)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop())
	require.Error(t, err)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{Driver: "file"}, logx.Nop())
	require.Error(t, err)
	_, err = Open(Config{Driver: "sqlite"}, logx.Nop())
	require.Error(t, err)
}

func TestJournalDrivers(t *testing.T) {
	for _, tc := range []struct {
		driver string
		file   string
	}{
		{driver: "file", file: "journal"},
		{driver: "sqlite", file: "journal.db"},
	} {
		t.Run(tc.driver, func(t *testing.T) {
			dir := t.TempDir()
			j, err := Open(Config{Driver: tc.driver, Path: filepath.Join(dir, tc.file), BusyTimeout: time.Second}, logx.Nop())
			require.NoError(t, err)
			require.NotNil(t, j)
			t.Cleanup(func() { _ = j.Close() })

			ctx := context.Background()
			at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
			for i := 0; i < 5; i++ {
				require.NoError(t, j.Append(ctx, Entry{At: at, Session: "s1", Panel: "LiveData", Value: i, Seq: i}))
				require.NoError(t, j.Append(ctx, Entry{At: at, Session: "s1", Panel: "SharedFlow", Value: 100 + i, Seq: i}))
			}

			got, err := j.Recent(ctx, "LiveData", 3)
			require.NoError(t, err)
			require.Len(t, got, 3)
			require.Equal(t, []int{2, 3, 4}, values(got))
			require.Equal(t, "s1", got[0].Session)
			require.True(t, got[0].At.Equal(at))

			all, err := j.Recent(ctx, "", 0)
			require.NoError(t, err)
			require.Len(t, all, 10)
			require.Equal(t, "LiveData", all[0].Panel)
			require.Equal(t, "SharedFlow", all[9].Panel)

			none, err := j.Recent(ctx, "StateFlow", 10)
			require.NoError(t, err)
			require.Empty(t, none)
		})
	}
}

func TestFileJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "journal.jsonl")
	ctx := context.Background()

	j, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, Entry{Session: "a", Panel: "StateFlow", Value: -99}))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	j, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer j.Close()
	require.NoError(t, j.Append(ctx, Entry{Session: "b", Panel: "StateFlow", Value: 0}))

	got, err := j.Recent(ctx, "StateFlow", 10)
	require.NoError(t, err)
	require.Equal(t, []int{-99, 0}, values(got))
	require.False(t, got[0].At.IsZero())
}

func TestFileJournalSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	j, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "journal")}, logx.Nop())
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(ctx, Entry{Panel: "LiveData", Value: 1}))
	f, err := os.OpenFile(filepath.Join(dir, "journal.journal.jsonl"), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, j.Append(ctx, Entry{Panel: "LiveData", Value: 2}))

	got, err := j.Recent(ctx, "LiveData", 0)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, values(got))
}

func values(es []Entry) []int {
	out := make([]int, 0, len(es))
	for _, e := range es {
		out = append(out, e.Value)
	}
	return out
}
