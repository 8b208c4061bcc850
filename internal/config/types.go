package config

import (
	"fmt"
	"strings"
)

// Config is the full daemon configuration.
//
// The scheduling sections (timezone, hours, modes, normal, cron, stop_file,
// standby) are read once at startup and stay fixed for the life of the
// process. The ambient sections (logging, pprof) may be hot-reloaded via
// Manager.Watch.
type Config struct {
	// Timezone is an integer hour offset added to the UTC hour before the
	// frequency window lookup. It is applied as-is: offsets that push the
	// hour outside 0-23 simply match no window.
	Timezone int `json:"timezone"`

	// Hours maps frequency labels to [start, end) hour-of-day ranges.
	// JSON object order is preserved; the first matching range wins.
	Hours HourWindows `json:"hours"`

	// Modes are date-ranged policy bundles, checked in order.
	// The last mode acts as the implicit default when no period matches.
	Modes []Mode `json:"modes"`

	// Normal is the default policy used by single-shot runs.
	Normal NormalPolicy `json:"normal"`

	// Cron bounds the total runtime of `-cron` runs.
	Cron CronConfig `json:"cron"`

	// StopFile is the stop-signal marker: while this path exists the loop
	// idles instead of capturing. Polled once per iteration.
	StopFile string `json:"stop_file,omitempty"`

	// Standby is how long (seconds) the loop sleeps per iteration while the
	// stop-signal marker is present. Default 600.
	Standby float64 `json:"standby,omitempty"`

	Logging   LoggingConfig   `json:"logging,omitempty"`
	Telegram  TelegramConfig  `json:"telegram,omitempty"`
	Storage   StorageConfig   `json:"storage,omitempty"`
	Camera    CameraConfig    `json:"camera,omitempty"`
	Timelapse TimelapseConfig `json:"timelapse,omitempty"`
	Pprof     PprofConfig     `json:"pprof,omitempty"`
}

// Mode is a named, date-ranged policy bundle.
type Mode struct {
	ID string `json:"id"`

	// Periods are inclusive [start, end] date ranges as YYYYMMDD integers.
	Periods [][2]int `json:"periods"`

	// Frequency maps frequency labels to capture policy. A label resolved
	// by Hours but absent here is a normal standby condition, not an error.
	Frequency map[string]Frequency `json:"frequency"`

	Quality string `json:"quality"`
}

// Frequency is the capture policy for one label inside a mode.
type Frequency struct {
	// Wait is the desired seconds between capture starts.
	// Values below 1 mark the period as disabled.
	Wait float64 `json:"wait"`
}

// NormalPolicy is the default policy bundle (single-shot runs only).
type NormalPolicy struct {
	Frequency map[string]Frequency `json:"frequency,omitempty"`
	Quality   string               `json:"quality,omitempty"`

	// Standby is the warm-up delay (seconds) before the single capture.
	Standby float64 `json:"standby,omitempty"`
}

type CronConfig struct {
	// Duration is the total seconds a bounded (`-cron`) run may consume.
	Duration float64 `json:"duration"`
}

type LoggingConfig struct {
	Level    string             `json:"level,omitempty"`
	Console  bool               `json:"console,omitempty"`
	File     LogFileConfig      `json:"file,omitempty"`
	Telegram TelegramSinkConfig `json:"telegram,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type TelegramSinkConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

type StorageConfig struct {
	// Driver: "none" (default), "file" or "sqlite".
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only, duration string
}

type CameraConfig struct {
	// Backend: "v4l2" (default) or "stub".
	Backend   string `json:"backend,omitempty"`
	Device    string `json:"device,omitempty"`     // default /dev/video0
	OutputDir string `json:"output_dir,omitempty"` // default ./snapshots
	Latest    string `json:"latest,omitempty"`     // default <output_dir>/latest.jpg
}

type TimelapseConfig struct {
	Enabled   bool   `json:"enabled,omitempty"`
	Spec      string `json:"spec,omitempty"` // cron spec, default "5 0 * * *"
	OutputDir string `json:"output_dir,omitempty"`
	FPS       int    `json:"fps,omitempty"`
}

type PprofConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"` // default 127.0.0.1:6060
}

// Validate rejects configs the scheduler cannot run on.
// Standby/no-policy conditions are runtime states, not config errors, so
// only structural problems are fatal here.
func (c *Config) Validate() error {
	if len(c.Modes) == 0 {
		return fmt.Errorf("config: modes must not be empty")
	}
	seen := map[string]bool{}
	for i, m := range c.Modes {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("config: modes[%d]: id is required", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("config: modes[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
		for j, p := range m.Periods {
			if p[0] > p[1] {
				return fmt.Errorf("config: modes[%d].periods[%d]: start %d after end %d", i, j, p[0], p[1])
			}
		}
	}
	for _, w := range c.Hours {
		if w.Start > w.End {
			return fmt.Errorf("config: hours[%s]: start %d after end %d", w.Label, w.Start, w.End)
		}
	}
	if c.Standby < 0 {
		return fmt.Errorf("config: standby must be >= 0")
	}
	if c.Cron.Duration < 0 {
		return fmt.Errorf("config: cron.duration must be >= 0")
	}
	return nil
}

// StandbySeconds returns the external-stop standby duration with its default.
func (c *Config) StandbySeconds() float64 {
	if c.Standby > 0 {
		return c.Standby
	}
	return 600
}
