package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// CaptureRecord indexes one stored artifact.
// Keep it compact and schema-stable.
type CaptureRecord struct {
	At      time.Time
	Path    string
	Bytes   int64
	Quality string
	TookMS  int64
}
