// Package app wires the daemon together: config, logging, storage, camera,
// scheduler, and the ancillary services.
package app

import (
	"context"
	"strings"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"

	"lapsecam/internal/camera"
	"lapsecam/internal/config"
	"lapsecam/internal/notify"
	"lapsecam/internal/observability/pprof"
	"lapsecam/internal/runtime/supervisor"
	"lapsecam/internal/schedule"
	"lapsecam/internal/storage"
	"lapsecam/internal/timelapse"
	logx "lapsecam/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	logs *logx.Service
	log  logx.Logger

	store storage.Store
	cam   *camera.Service
	sched *schedule.Scheduler
	lapse *timelapse.Service
	prof  *pprof.Service

	sup *supervisor.Supervisor
}

// New loads the config and builds all services. Config problems are fatal
// here, before any scheduling starts.
func New(cfgPath string, debug bool) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// Telegram log sink is optional; it needs both the bot credentials and
	// the sink toggle.
	var sender logx.Sender
	if cfg.Logging.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) != "" {
		tg, err := notify.NewTelegram(notify.Config{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		})
		if err != nil {
			return nil, err
		}
		sender = tg
	}

	logs, log := logx.New(mapLogging(cfg, debug), sender)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logs.Logger().With(logx.String("comp", "config")))

	store, err := storage.Open(mapStorage(cfg), logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	if store != nil {
		log.Info("capture index enabled", logx.String("driver", cfg.Storage.Driver))
	}

	cam, err := camera.New(mapCamera(cfg), store, logs.Logger().With(logx.String("comp", "camera")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	sched := schedule.New(mapSchedule(cfg), cam,
		schedule.WithLogger(logs.Logger().With(logx.String("comp", "schedule"))),
		schedule.WithReadyProbe(cam.Ready),
	)

	a := &App{
		cfgm:  cfgm,
		cfg:   cfg,
		logs:  logs,
		log:   log,
		store: store,
		cam:   cam,
		sched: sched,
		lapse: timelapse.New(mapTimelapse(cfg), logs.Logger().With(logx.String("comp", "timelapse"))),
		prof:  pprof.New(mapPprof(cfg), logs.Logger().With(logx.String("comp", "pprof"))),
	}
	cfgm.SetOnChange(a.onConfigChange)
	return a, nil
}

// Log returns the app's root logger (used by main for top-level events).
func (a *App) Log() logx.Logger { return a.log }

// RunForever runs the unbounded loop plus the ancillary services
// (config watcher, timelapse cron, pprof). The loop itself stays on the
// calling goroutine.
func (a *App) RunForever(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	a.sup.Go("config-watch", a.cfgm.Watch)

	if err := a.lapse.Start(a.sup.Context()); err != nil {
		a.log.Warn("timelapse service not started", logx.Err(err))
	}
	if err := a.prof.Start(ctx); err != nil {
		a.log.Warn("pprof not started", logx.Err(err))
	}

	// Under systemd, flag readiness; everywhere else this is a no-op.
	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyReady)
	a.log.Info("capture loop starting", logx.String("run_mode", "forever"))

	err := a.sched.RunForever(ctx)

	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)
	a.stopAncillary()
	return err
}

// RunCron runs the bounded loop. Ancillary services stay down: a bounded
// batch should do nothing but capture.
func (a *App) RunCron(ctx context.Context) error {
	a.log.Info("capture loop starting",
		logx.String("run_mode", "cron"),
		logx.Float64("budget_s", a.cfg.Cron.Duration),
	)
	return a.sched.RunCron(ctx)
}

// RunOnce performs the single-shot capture.
func (a *App) RunOnce(ctx context.Context) error {
	return a.sched.RunOnce(ctx)
}

func (a *App) stopAncillary() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.lapse.Stop(stopCtx)
	a.prof.Stop(stopCtx)
	if a.sup != nil {
		_ = a.sup.Stop(stopCtx)
	}
}

// Close releases resources; call after the run mode returns.
func (a *App) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

// onConfigChange applies hot-reloadable sections and flags the rest.
// Scheduling policy is immutable while running; a changed scheduling section
// only takes effect after a restart, and we say so in the log.
func (a *App) onConfigChange(prev, next *config.Config) {
	changed, attrs, restart := config.SummarizeConfigChange(prev, next)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config changed", append([]logx.Field{logx.Any("sections", changed)}, attrs...)...)

	a.logs.Apply(mapLogging(next, false))
	a.prof.Reconfigure(context.Background(), mapPprof(next))

	if restart {
		a.log.Warn("changed sections require a restart to take effect",
			logx.Any("sections", changed))
	}
}
