package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventflow/internal/config"
	"eventflow/internal/counter"
	"eventflow/internal/flow"
	"eventflow/internal/storage"
	"eventflow/internal/trigger"
	logx "eventflow/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.TrimSpace(sc.Driver)
	if driver == "" || strings.EqualFold(driver, "none") {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	dl := strings.ToLower(driver)
	switch dl {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: dl, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", driver)
	}
}

func mapStoreConfig(cfg *config.Config) (counter.Config, error) {
	out := counter.DefaultConfig()
	if cfg == nil {
		return out, nil
	}
	if cfg.Store.Initial != nil {
		out.Initial = *cfg.Store.Initial
	}
	policy, err := flow.ParseOverflow(cfg.Store.Overflow)
	if err != nil {
		return counter.Config{}, fmt.Errorf("store.overflow: %w", err)
	}
	out.Shared = flow.ReplayConfig{
		Replay:      cfg.Store.Replay,
		ExtraBuffer: cfg.Store.ExtraBuffer,
		Overflow:    policy,
	}
	if err := out.Shared.Validate(); err != nil {
		return counter.Config{}, fmt.Errorf("store: %w", err)
	}
	return out, nil
}

func mapSharedStateConfig(cfg *config.Config) flow.ReplayConfig {
	if cfg == nil {
		return flow.ReplayConfig{}
	}
	return flow.ReplayConfig{Replay: cfg.Panels.SharedStateReplay}
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	if cfg == nil {
		return logx.Config{Level: "info", Console: true}
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func producerDelay(cfg *config.Config) (time.Duration, error) {
	if cfg == nil {
		return counter.DefaultDelay, nil
	}
	return config.ParseDurationOrDefault("producer.delay", cfg.Producer.Delay, counter.DefaultDelay)
}

// validateConfig is installed on the config manager: a bad hot reload is
// rejected before it is committed.
func validateConfig(ctx context.Context, cfg *config.Config) error {
	if err := config.Validate(ctx, cfg); err != nil {
		return err
	}
	if _, err := mapStoreConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if s := strings.TrimSpace(cfg.Producer.Schedule); s != "" {
		if _, err := trigger.ParseSchedule(s); err != nil {
			return fmt.Errorf("producer.schedule: %w", err)
		}
	}
	return nil
}
