package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry is one rendered panel value.
// Keep it compact and schema-stable.
type Entry struct {
	At      time.Time `json:"at"`
	Session string    `json:"session"`
	Panel   string    `json:"panel"`
	Value   int       `json:"value"`
	// Seq is the line index within the panel for this session.
	Seq int `json:"seq"`
}
