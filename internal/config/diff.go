package config

import (
	"encoding/json"
	"reflect"
	"strings"

	logx "lapsecam/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like tokens),
// and (3) whether any immutable scheduling section changed (which requires a
// restart to take effect).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, bool) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)
	restart := false

	// Scheduling policy (immutable at runtime).
	if oldCfg.Timezone != newCfg.Timezone ||
		!reflect.DeepEqual(oldCfg.Hours, newCfg.Hours) ||
		!equalJSON(oldCfg.Modes, newCfg.Modes) ||
		!equalJSON(oldCfg.Normal, newCfg.Normal) ||
		oldCfg.Cron != newCfg.Cron ||
		strings.TrimSpace(oldCfg.StopFile) != strings.TrimSpace(newCfg.StopFile) ||
		oldCfg.Standby != newCfg.Standby {
		changed = append(changed, "schedule")
		restart = true
		attrs = append(attrs,
			logx.Int("schedule.modes", len(newCfg.Modes)),
			logx.Int("schedule.hours", len(newCfg.Hours)),
		)
	}

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	// Telegram (never log token)
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		restart = true
		attrs = append(attrs, logx.Bool("telegram.chat_set", newCfg.Telegram.ChatID != 0))
	}

	// Storage / camera / timelapse are bound at startup.
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		restart = true
	}
	if oldCfg.Camera != newCfg.Camera {
		changed = append(changed, "camera")
		restart = true
	}
	if oldCfg.Timelapse != newCfg.Timelapse {
		changed = append(changed, "timelapse")
		restart = true
	}

	// Pprof
	if oldCfg.Pprof != newCfg.Pprof {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", newCfg.Pprof.Addr),
		)
	}

	return changed, attrs, restart
}

// equalJSON compares values by their JSON encoding; good enough for config
// structs containing maps and slices.
func equalJSON(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}
