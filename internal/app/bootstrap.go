package app

import (
	"time"

	"lapsecam/internal/camera"
	"lapsecam/internal/config"
	"lapsecam/internal/observability/pprof"
	"lapsecam/internal/schedule"
	"lapsecam/internal/storage"
	"lapsecam/internal/timelapse"
	logx "lapsecam/pkg/logx"
)

// The map* helpers translate config sections into per-service configs so
// services never import internal/config.

func mapLogging(cfg *config.Config, debug bool) logx.Config {
	level := cfg.Logging.Level
	if debug {
		level = "DEBUG"
	}
	out := logx.Config{
		Level:   level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
	// A config with no sinks at all still logs to console (logx falls back
	// anyway; this just keeps the intent visible).
	if !out.Console && !out.File.Enabled && !out.Telegram.Enabled {
		out.Console = true
	}
	return out
}

func mapStorage(cfg *config.Config) storage.Config {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		// Validate() does not parse this; fall back silently to the driver
		// default rather than failing startup over a tuning knob.
		busy = 0
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}

func mapCamera(cfg *config.Config) camera.Config {
	return camera.Config{
		Backend:   cfg.Camera.Backend,
		Device:    cfg.Camera.Device,
		OutputDir: cfg.Camera.OutputDir,
		Latest:    cfg.Camera.Latest,
	}
}

func mapSchedule(cfg *config.Config) schedule.Config {
	windows := make([]schedule.Window, 0, len(cfg.Hours))
	for _, w := range cfg.Hours {
		windows = append(windows, schedule.Window{Label: w.Label, Start: w.Start, End: w.End})
	}

	modes := make([]schedule.Mode, 0, len(cfg.Modes))
	for _, m := range cfg.Modes {
		modes = append(modes, schedule.Mode{
			ID:        m.ID,
			Periods:   m.Periods,
			Frequency: mapFrequency(m.Frequency),
			Quality:   m.Quality,
		})
	}

	return schedule.Config{
		TimezoneOffset: cfg.Timezone,
		Windows:        windows,
		Modes:          modes,
		Normal: schedule.NormalPolicy{
			Frequency: mapFrequency(cfg.Normal.Frequency),
			Quality:   cfg.Normal.Quality,
			Standby:   cfg.Normal.Standby,
		},
		StopFile:   cfg.StopFile,
		Standby:    time.Duration(cfg.StandbySeconds() * float64(time.Second)),
		CronBudget: cfg.Cron.Duration,
	}
}

func mapFrequency(in map[string]config.Frequency) map[string]schedule.Frequency {
	if in == nil {
		return nil
	}
	out := make(map[string]schedule.Frequency, len(in))
	for k, v := range in {
		out[k] = schedule.Frequency{Wait: v.Wait}
	}
	return out
}

func mapTimelapse(cfg *config.Config) timelapse.Config {
	srcDir := cfg.Camera.OutputDir
	if srcDir == "" {
		srcDir = "./snapshots"
	}
	return timelapse.Config{
		Enabled:   cfg.Timelapse.Enabled,
		Spec:      cfg.Timelapse.Spec,
		SourceDir: srcDir,
		OutputDir: cfg.Timelapse.OutputDir,
		FPS:       cfg.Timelapse.FPS,
	}
}

func mapPprof(cfg *config.Config) pprof.Config {
	return pprof.Config{
		Enabled: cfg.Pprof.Enabled,
		Addr:    cfg.Pprof.Addr,
	}
}
