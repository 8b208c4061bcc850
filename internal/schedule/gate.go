package schedule

import (
	"os"
	"time"

	logx "lapsecam/pkg/logx"
)

// DefaultStandby is how long the loop idles per iteration while the external
// stop marker is present.
const DefaultStandby = 600 * time.Second

// Gate decides, each iteration, whether to suspend normal operation.
//
// Two independent suspend conditions exist: "no policy for this hour"
// (sleep until the top of the next hour) and "external stop requested"
// (sleep a fixed standby). The gate also owns the single "resumed" log line
// emitted on the first clean iteration after a suspension.
type Gate struct {
	stopFile string
	standby  time.Duration
	log      logx.Logger

	// stat is swappable for tests.
	stat func(string) (os.FileInfo, error)

	suspended bool
}

func NewGate(stopFile string, standby time.Duration, log logx.Logger) *Gate {
	if standby <= 0 {
		standby = DefaultStandby
	}
	return &Gate{
		stopFile: stopFile,
		standby:  standby,
		log:      log,
		stat:     os.Stat,
	}
}

// StopRequested polls the stop-signal marker. Presence of the path requests
// a graceful suspend; it never interrupts an in-flight capture.
func (g *Gate) StopRequested() bool {
	if g.stopFile == "" {
		return false
	}
	_, err := g.stat(g.stopFile)
	return err == nil
}

// SuspendNoPolicy marks the loop suspended because no capture policy applies
// to the current hour, and returns how long to sleep: until the top of the
// next hour.
func (g *Gate) SuspendNoPolicy(now time.Time, modeID, label string, hourOfDay int) time.Duration {
	g.suspended = true
	d := UntilNextHour(now)
	g.log.Warn("no capture policy for this hour; standing by",
		logx.String("mode", modeID),
		logx.String("label", label),
		logx.Int("hour", hourOfDay),
		logx.Duration("sleep", d),
	)
	return d
}

// SuspendExternalStop marks the loop suspended because the stop marker is
// present, and returns the fixed standby duration.
func (g *Gate) SuspendExternalStop(modeID, label string) time.Duration {
	g.suspended = true
	g.log.Warn("stop marker present; standing by",
		logx.String("mode", modeID),
		logx.String("label", label),
		logx.String("stop_file", g.stopFile),
		logx.Duration("sleep", g.standby),
	)
	return g.standby
}

// ClearSuspended emits the resume notice on the first iteration after a
// standby condition clears. Exactly one event per suspend->run transition.
func (g *Gate) ClearSuspended(modeID, label string) {
	if !g.suspended {
		return
	}
	g.suspended = false
	g.log.Info("standby cleared; resuming captures",
		logx.String("mode", modeID),
		logx.String("label", label),
	)
}

// Suspended reports whether the gate is currently in a standby cycle.
func (g *Gate) Suspended() bool { return g.suspended }

// UntilNextHour returns the time left to the top of the next hour, computed
// from the current minute and second.
func UntilNextHour(now time.Time) time.Duration {
	secs := 3600 - 60*now.Minute() - now.Second()
	return time.Duration(secs) * time.Second
}
