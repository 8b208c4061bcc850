package schedule

import (
	"context"
	"time"

	logx "lapsecam/pkg/logx"
)

// QualityMax asks the capture collaborator for its highest quality preset.
// Single-shot runs always capture at maximum quality.
const QualityMax = "max"

const (
	// minWait is the floor applied to the configured wait.
	minWait = 1.0 // seconds
	// readyMinWait is the relaxed floor used when the readiness probe
	// confirms the capture device is available.
	readyMinWait = 0.2 // seconds
)

// Capturer is the external capture collaborator.
//
// Capture must honor delay before producing the artifact, store it under a
// deterministic path derived from ts, update the "latest artifact" pointer,
// and return the wall-clock duration the whole invocation consumed.
type Capturer interface {
	Capture(ctx context.Context, ts time.Time, delay time.Duration, quality string) (time.Duration, error)
}

// Config is the scheduling policy, fixed for the lifetime of a Scheduler.
type Config struct {
	// TimezoneOffset is added to the UTC hour before window lookup.
	// It is deliberately not wrapped into 0-23: out-of-domain hours match
	// no window and degrade to a no-policy standby.
	TimezoneOffset int

	Windows []Window
	Modes   []Mode

	// Normal is the default policy bundle, used only by single-shot runs.
	Normal NormalPolicy

	// StopFile is the stop-signal marker path ("" disables the check).
	StopFile string
	// Standby is the per-iteration sleep while the marker is present.
	Standby time.Duration

	// CronBudget is the total seconds a bounded run may consume.
	CronBudget float64
}

// NormalPolicy is the default policy for single-shot runs.
type NormalPolicy struct {
	Frequency map[string]Frequency
	Quality   string
	// Standby is the warm-up delay (seconds) before the single capture.
	Standby float64
}

// SleepFunc blocks for d or until ctx is done. Injectable for tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Scheduler owns the control loop and all of its runtime state. State lives
// on the instance, never in package globals, so independent schedulers can
// run side by side (tests do).
type Scheduler struct {
	cfg      Config
	capturer Capturer
	log      logx.Logger
	gate     *Gate

	ready func(ctx context.Context) bool

	now   func() time.Time
	sleep SleepFunc

	// runtime state, mutated once per iteration
	prevModeID string
	prevLabel  string
	// timingOffset is the measured duration of the last capture; it
	// compensates the next wait so captures start, not end, wait seconds
	// apart. Always >= 0; 0 before the first capture.
	timingOffset float64
}

type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithClock overrides the wall clock and sleep primitive (tests).
func WithClock(now func() time.Time, sleep SleepFunc) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithReadyProbe installs the capture-device readiness probe that relaxes
// the minimum wait floor.
func WithReadyProbe(fn func(ctx context.Context) bool) Option {
	return func(s *Scheduler) { s.ready = fn }
}

func New(cfg Config, capturer Capturer, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		capturer: capturer,
		log:      logx.Nop(),
		now:      time.Now,
		sleep:    SleepContext,
	}
	for _, o := range opts {
		o(s)
	}
	s.gate = NewGate(cfg.StopFile, cfg.Standby, s.log)
	return s
}

// RunForever runs the loop without a time budget until ctx is cancelled or
// the capture collaborator fails.
func (s *Scheduler) RunForever(ctx context.Context) error {
	return s.run(ctx, Unbounded())
}

// RunCron runs the loop with the configured time budget; exhaustion is a
// normal return.
func (s *Scheduler) RunCron(ctx context.Context) error {
	return s.run(ctx, NewBudget(s.cfg.CronBudget))
}

// RunOnce bypasses the loop: wait the default policy's standby once, capture
// once at maximum quality, done.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	delay := secondsToDuration(s.cfg.Normal.Standby)
	s.log.Info("single-shot capture",
		logx.Duration("delay", delay),
		logx.String("quality", QualityMax),
	)
	_, err := s.capturer.Capture(ctx, s.now().UTC(), delay, QualityMax)
	return err
}

func (s *Scheduler) run(ctx context.Context, budget *Budget) error {
	if len(s.cfg.Modes) == 0 {
		return ErrNoModes
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := s.now().UTC()
		hourOfDay := now.Hour() + s.cfg.TimezoneOffset
		dateInt := DateInt(now.Year(), int(now.Month()), now.Day())

		mode, err := ResolveExecutionMode(s.cfg.Modes, dateInt)
		if err != nil {
			return err
		}
		label, labelOK := ResolveFrequencyLabel(s.cfg.Windows, hourOfDay)
		s.noteTransitions(mode.ID, label)

		// No policy: unknown hour, or the mode has no entry for the label.
		freq, freqOK := mode.Frequency[label]
		if !labelOK || !freqOK {
			d := s.gate.SuspendNoPolicy(now, mode.ID, label, hourOfDay)
			if err := s.sleep(ctx, d); err != nil {
				return err
			}
			continue
		}

		if s.gate.StopRequested() {
			d := s.gate.SuspendExternalStop(mode.ID, label)
			if err := s.sleep(ctx, d); err != nil {
				return err
			}
			continue
		}

		s.gate.ClearSuspended(mode.ID, label)

		wait := freq.Wait
		if wait < 1 {
			// Disabled period: park until the next hour, then fall through
			// and still take one capture with the floored wait. This odd
			// fall-through matches the long-standing production behavior;
			// do not "fix" it without a policy change.
			s.log.Warn("captures disabled for this period; sleeping to next hour",
				logx.String("mode", mode.ID),
				logx.String("label", label),
				logx.Float64("wait_s", wait),
			)
			if err := s.sleep(ctx, UntilNextHour(now)); err != nil {
				return err
			}
		}

		floor := minWait
		if s.ready != nil && s.ready(ctx) {
			floor = readyMinWait
		}
		if wait < floor {
			wait = floor
		}

		delay := wait - s.timingOffset
		if delay < 0 {
			delay = 0
		}

		if !budget.Consume(wait) {
			s.log.Info("execution budget exhausted; terminating",
				logx.String("mode", mode.ID),
				logx.String("label", label),
				logx.Float64("remaining_s", budget.Remaining()),
				logx.Float64("wait_s", wait),
			)
			return nil
		}

		elapsed, err := s.capturer.Capture(ctx, now, secondsToDuration(delay), mode.Quality)
		if err != nil {
			return err
		}
		if elapsed < 0 {
			elapsed = 0
		}
		s.timingOffset = elapsed.Seconds()
		s.log.Debug("capture complete",
			logx.String("mode", mode.ID),
			logx.String("label", label),
			logx.Float64("wait_s", wait),
			logx.Duration("took", elapsed),
		)
	}
}

// noteTransitions emits one event per changed dimension; a mode change and a
// label change on the same iteration each produce their own event.
func (s *Scheduler) noteTransitions(modeID, label string) {
	if modeID != s.prevModeID {
		s.log.Info("execution mode changed",
			logx.String("from", s.prevModeID),
			logx.String("mode", modeID),
		)
		s.prevModeID = modeID
	}
	if label != s.prevLabel {
		s.log.Info("frequency label changed",
			logx.String("from", s.prevLabel),
			logx.String("label", label),
		)
		s.prevLabel = label
	}
}

// SleepContext blocks for d, aborting early when ctx is cancelled. This is
// the only suspension primitive the loop uses; it blocks the calling
// goroutine so capture cadence never depends on event-loop scheduling.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
