package config

// Config is the on-disk configuration (YAML or JSON).
//
// Example (YAML):
//
//	logging:
//	  level: debug
//	  console: true
//	store:
//	  replay: 0
//	  extra_buffer: 64
//	  overflow: suspend
//	producer:
//	  delay: 1s
//	  schedule: "@every 3s"
//	storage:
//	  driver: file
//	  path: ./data/journal
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Store    StoreConfig    `json:"store"`
	Producer ProducerConfig `json:"producer"`
	Panels   PanelsConfig   `json:"panels"`
	Failures FailureConfig  `json:"failures"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StoreConfig controls the counter store primitives.
// Changes take effect on restart only.
//
// Defaults (when fields are omitted/zero):
//   - initial: -99
//   - replay: 0
//   - extra_buffer: 0
//   - overflow: "suspend" ("drop_oldest" and "drop_latest" are also accepted)
type StoreConfig struct {
	// Initial is a pointer so an explicit 0 differs from "omitted".
	Initial     *int   `json:"initial,omitempty"`
	Replay      int    `json:"replay"`
	ExtraBuffer int    `json:"extra_buffer"`
	Overflow    string `json:"overflow,omitempty"`
}

// ProducerConfig controls the action producer and the automatic trigger.
// Both fields are hot-reloaded.
type ProducerConfig struct {
	// Delay is a Go duration string (default "1s"). "0s" dispatches at once.
	Delay string `json:"delay,omitempty"`
	// Schedule fires Execute automatically: cron ("*/5 * * * * *", "@every 2s"),
	// a duration ("2s") or HH:MM. Empty disables the automatic trigger.
	Schedule string `json:"schedule,omitempty"`
}

// PanelsConfig controls the display side.
type PanelsConfig struct {
	// SharedStateReplay is the replay size of the stream shared from the
	// StateFlow panel source (default 0).
	SharedStateReplay int `json:"shared_state_replay"`
	// Echo prints every rendered value on stdout.
	Echo bool `json:"echo"`
}

// FailureConfig controls listener failure reporting.
type FailureConfig struct {
	RatePerSec int `json:"rate_per_sec"`
}

// StorageConfig controls the optional display journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/journal.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
