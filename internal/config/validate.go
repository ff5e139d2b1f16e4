package config

import (
	"context"
	"fmt"
	"strings"
)

// Validate checks values the strict decoder can't.
// It matches the func signature expected by ConfigManager.SetValidator.
func Validate(_ context.Context, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Store.Replay < 0 {
		return fmt.Errorf("store.replay: must be >= 0, got %d", cfg.Store.Replay)
	}
	if cfg.Store.ExtraBuffer < 0 {
		return fmt.Errorf("store.extra_buffer: must be >= 0, got %d", cfg.Store.ExtraBuffer)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Overflow)) {
	case "", "suspend", "block", "drop_oldest", "drop-oldest", "drop_latest", "drop-latest", "drop_newest", "drop-newest":
	default:
		return fmt.Errorf("store.overflow: unknown policy %q", cfg.Store.Overflow)
	}
	if cfg.Panels.SharedStateReplay < 0 {
		return fmt.Errorf("panels.shared_state_replay: must be >= 0, got %d", cfg.Panels.SharedStateReplay)
	}
	if cfg.Failures.RatePerSec < 0 {
		return fmt.Errorf("failures.rate_per_sec: must be >= 0, got %d", cfg.Failures.RatePerSec)
	}
	if _, err := ParseDurationField("producer.delay", cfg.Producer.Delay); err != nil {
		return err
	}
	if st := cfg.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(st.Path) == "" {
				return fmt.Errorf("storage.path: required for driver %q", st.Driver)
			}
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", st.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
