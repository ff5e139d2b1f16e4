package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestDecodeYAMLAndJSON(t *testing.T) {
	yml := []byte(`
store:
  initial: 0
  replay: 2
  overflow: drop_oldest
producer:
  delay: 250ms
  schedule: "@every 3s"
storage:
  driver: sqlite
  path: ./journal.db
`)
	cfg, err := Decode("c.yaml", yml)
	require.NoError(t, err)
	require.NotNil(t, cfg.Store.Initial)
	require.Equal(t, 0, *cfg.Store.Initial)
	require.Equal(t, 2, cfg.Store.Replay)
	require.Equal(t, "drop_oldest", cfg.Store.Overflow)
	require.Equal(t, "@every 3s", cfg.Producer.Schedule)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.NoError(t, Validate(context.Background(), cfg))

	cfg, err = Decode("c.json", []byte(`{"store":{"replay":1},"panels":{"echo":true}}`))
	require.NoError(t, err)
	require.Nil(t, cfg.Store.Initial)
	require.True(t, cfg.Panels.Echo)
	require.Nil(t, cfg.Storage)
}

func TestDecodeEmptyYAML(t *testing.T) {
	cfg, err := Decode("c.yml", nil)
	require.NoError(t, err)
	require.NoError(t, Validate(context.Background(), cfg))
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	_, err := Decode("c.yaml", []byte("store:\n  replays: 1\n"))
	require.Error(t, err)
	_, err = Decode("c.json", []byte(`{"store":{}} {"store":{}}`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "zero", ok: true},
		{name: "negative replay", cfg: Config{Store: StoreConfig{Replay: -1}}},
		{name: "negative extra", cfg: Config{Store: StoreConfig{ExtraBuffer: -1}}},
		{name: "bad overflow", cfg: Config{Store: StoreConfig{Overflow: "maybe"}}},
		{name: "drop latest", cfg: Config{Store: StoreConfig{Overflow: "drop-latest"}}, ok: true},
		{name: "bad delay", cfg: Config{Producer: ProducerConfig{Delay: "1 sec"}}},
		{name: "negative delay", cfg: Config{Producer: ProducerConfig{Delay: "-1s"}}},
		{name: "negative rate", cfg: Config{Failures: FailureConfig{RatePerSec: -1}}},
		{name: "negative shared replay", cfg: Config{Panels: PanelsConfig{SharedStateReplay: -2}}},
		{name: "storage without path", cfg: Config{Storage: &StorageConfig{Driver: "file"}}},
		{name: "storage unknown", cfg: Config{Storage: &StorageConfig{Driver: "mongo", Path: "x"}}},
		{name: "storage none", cfg: Config{Storage: &StorageConfig{Driver: "none"}}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := Validate(context.Background(), &cfg)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", time.Second)
	require.NoError(t, err)
	require.Equal(t, time.Second, d)

	d, err = ParseDurationOrDefault("x", "0s", time.Second)
	require.NoError(t, err)
	require.Zero(t, d)

	_, err = ParseDurationOrDefault("x", "abc", time.Second)
	require.ErrorContains(t, err, "x:")
}

func TestManagerLoadAndValidator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventflow.yaml")
	write(t, path, "store:\n  replay: 3\n")

	m := NewConfigManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Store.Replay)
	require.Same(t, cfg, m.Get())

	m.SetValidator(Validate)
	write(t, path, "store:\n  replay: -3\n")
	published, err := m.Reload(context.Background())
	require.Error(t, err)
	require.False(t, published)
	require.Equal(t, 3, m.Get().Store.Replay, "rejected config must not be committed")
}

func TestManagerReloadSkipsUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventflow.yaml")
	write(t, path, "store:\n  replay: 1\n")
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	published, err := m.Reload(context.Background())
	require.NoError(t, err)
	require.False(t, published)

	write(t, path, "store:\n  replay: 2\n")
	published, err = m.Reload(context.Background())
	require.NoError(t, err)
	require.True(t, published)
	require.Equal(t, 2, (<-sub).Store.Replay)
}

func TestManagerPublishKeepsLatest(t *testing.T) {
	m := NewConfigManager("unused.yaml")
	sub := m.Subscribe(1)
	m.publish(&Config{Store: StoreConfig{Replay: 1}})
	m.publish(&Config{Store: StoreConfig{Replay: 2}})
	require.Equal(t, 2, (<-sub).Store.Replay)

	m.Unsubscribe(sub)
	_, ok := <-sub
	require.False(t, ok)
}

func TestManagerWatchPublishesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventflow.yaml")
	write(t, path, "producer:\n  delay: 1s\n")
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	sub := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	time.Sleep(200 * time.Millisecond)
	write(t, path, "producer:\n  delay: 2s\n")

	select {
	case cfg := <-sub:
		require.Equal(t, "2s", cfg.Producer.Delay)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published after file change")
	}
}

func TestSummarizeChange(t *testing.T) {
	one := 1
	a := &Config{Producer: ProducerConfig{Delay: "1s"}}
	b := &Config{Producer: ProducerConfig{Delay: "2s"}, Store: StoreConfig{Initial: &one}}

	ch := SummarizeChange(a, b)
	require.True(t, ch.Has("producer"))
	require.True(t, ch.Has("store"))
	require.False(t, ch.Has("logging"))
	require.True(t, ch.RestartRequired)

	require.True(t, SummarizeChange(a, a).Empty())
	two := 1
	require.True(t, SummarizeChange(&Config{Store: StoreConfig{Initial: &one}}, &Config{Store: StoreConfig{Initial: &two}}).Empty())
}
