package config

import (
	"strings"

	logx "eventflow/pkg/logx"
)

// Change lists the sections that differ between two configs.
type Change struct {
	Sections []string
	Fields   []logx.Field

	// RestartRequired is set when a section that is only read at startup
	// changed (store, panels, storage).
	RestartRequired bool
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// SummarizeChange compares two configs for hot-reload decisions and logging.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change

	if oldCfg.Logging != newCfg.Logging {
		ch.Sections = append(ch.Sections, "logging")
		ch.Fields = append(ch.Fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Producer.Delay) != strings.TrimSpace(newCfg.Producer.Delay) ||
		strings.TrimSpace(oldCfg.Producer.Schedule) != strings.TrimSpace(newCfg.Producer.Schedule) {
		ch.Sections = append(ch.Sections, "producer")
		ch.Fields = append(ch.Fields,
			logx.String("producer.delay", strings.TrimSpace(newCfg.Producer.Delay)),
			logx.String("producer.schedule", strings.TrimSpace(newCfg.Producer.Schedule)),
		)
	}

	if oldCfg.Failures != newCfg.Failures {
		ch.Sections = append(ch.Sections, "failures")
		ch.Fields = append(ch.Fields, logx.Int("failures.rate_per_sec", newCfg.Failures.RatePerSec))
	}

	if !sameStore(oldCfg.Store, newCfg.Store) {
		ch.Sections = append(ch.Sections, "store")
		ch.RestartRequired = true
	}
	if oldCfg.Panels != newCfg.Panels {
		ch.Sections = append(ch.Sections, "panels")
		ch.RestartRequired = true
	}
	if !sameStorage(oldCfg.Storage, newCfg.Storage) {
		ch.Sections = append(ch.Sections, "storage")
		ch.RestartRequired = true
	}
	return ch
}

func sameStore(a, b StoreConfig) bool {
	if a.Replay != b.Replay || a.ExtraBuffer != b.ExtraBuffer ||
		!strings.EqualFold(strings.TrimSpace(a.Overflow), strings.TrimSpace(b.Overflow)) {
		return false
	}
	if (a.Initial == nil) != (b.Initial == nil) {
		return false
	}
	return a.Initial == nil || *a.Initial == *b.Initial
}

func sameStorage(a, b *StorageConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
