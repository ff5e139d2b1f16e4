package storage

import (
	"context"
	"errors"
	"strings"

	logx "eventflow/pkg/logx"
)

// Journal is the persistence API used by the display.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	// Recent returns up to limit entries for panel, oldest first.
	// An empty panel matches every panel.
	Recent(ctx context.Context, panel string, limit int) ([]Entry, error)
	Close() error
}

// Open initializes the configured journal.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Journal, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// keepLast trims es to its last limit elements (limit <= 0 keeps all).
func keepLast(es []Entry, limit int) []Entry {
	if limit <= 0 || len(es) <= limit {
		return es
	}
	return append([]Entry(nil), es[len(es)-limit:]...)
}
