package schedule

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "lapsecam/pkg/logx"
)

// fakeEnv is a deterministic clock plus capture collaborator. Sleeps and
// captures advance the clock instead of blocking, and the env cancels the
// run context after maxSteps loop actions so tests always terminate.
type fakeEnv struct {
	now    time.Time
	cancel context.CancelFunc

	sleeps   []time.Duration
	captures []captureCall

	// grab is the simulated acquisition time on top of the honored delay.
	grab       time.Duration
	captureErr error

	maxSteps int
	steps    int

	// afterSleep, when set, runs after each recorded sleep.
	afterSleep func(n int)
}

type captureCall struct {
	ts      time.Time
	delay   time.Duration
	quality string
}

func newFakeEnv(start time.Time, maxSteps int) *fakeEnv {
	return &fakeEnv{now: start.UTC(), maxSteps: maxSteps}
}

func (e *fakeEnv) Now() time.Time { return e.now }

func (e *fakeEnv) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.sleeps = append(e.sleeps, d)
	e.now = e.now.Add(d)
	e.step()
	if e.afterSleep != nil {
		e.afterSleep(len(e.sleeps))
	}
	return nil
}

func (e *fakeEnv) Capture(ctx context.Context, ts time.Time, delay time.Duration, quality string) (time.Duration, error) {
	if e.captureErr != nil {
		return 0, e.captureErr
	}
	e.captures = append(e.captures, captureCall{ts: ts, delay: delay, quality: quality})
	took := delay + e.grab
	e.now = e.now.Add(took)
	e.step()
	return took, nil
}

func (e *fakeEnv) step() {
	e.steps++
	if e.maxSteps > 0 && e.steps >= e.maxSteps && e.cancel != nil {
		e.cancel()
	}
}

func dayNightConfig(wait float64) Config {
	return Config{
		Windows: []Window{
			{Label: "day", Start: 6, End: 18},
			{Label: "night", Start: 18, End: 24},
		},
		Modes: []Mode{{
			ID:        "m1",
			Periods:   [][2]int{{20240101, 20241231}},
			Frequency: map[string]Frequency{"day": {Wait: wait}},
			Quality:   "720p",
		}},
	}
}

func newTestScheduler(cfg Config, env *fakeEnv, log logx.Logger) (*Scheduler, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	s := New(cfg, env,
		WithLogger(log),
		WithClock(env.Now, env.Sleep),
	)
	return s, ctx
}

func TestRunCronBudgetTermination(t *testing.T) {
	t.Parallel()
	cfg := dayNightConfig(300)
	cfg.CronBudget = 500
	env := newFakeEnv(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), 0)
	env.grab = 5 * time.Second
	s, ctx := newTestScheduler(cfg, env, logx.Nop())

	if err := s.RunCron(ctx); err != nil {
		t.Fatalf("RunCron: %v", err)
	}
	// 500s budget fits one 300s wait; the second is refused before capture.
	if len(env.captures) != 1 {
		t.Fatalf("captures = %d, want 1", len(env.captures))
	}
	if env.captures[0].delay != 300*time.Second {
		t.Fatalf("first delay = %v, want 300s", env.captures[0].delay)
	}
	if env.captures[0].quality != "720p" {
		t.Fatalf("quality = %q, want 720p", env.captures[0].quality)
	}
}

func TestDelayCompensation(t *testing.T) {
	t.Parallel()
	cfg := dayNightConfig(300)
	cfg.CronBudget = 900
	env := newFakeEnv(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), 0)
	env.grab = 7 * time.Second
	s, ctx := newTestScheduler(cfg, env, logx.Nop())

	if err := s.RunCron(ctx); err != nil {
		t.Fatalf("RunCron: %v", err)
	}
	if len(env.captures) != 3 {
		t.Fatalf("captures = %d, want 3", len(env.captures))
	}
	// First capture consumed 307s, over the 300s wait, so the next delay
	// clamps at 0. The one after compensates the 7s measured consumption.
	want := []time.Duration{300 * time.Second, 0, 293 * time.Second}
	for i, w := range want {
		if env.captures[i].delay != w {
			t.Fatalf("delay[%d] = %v, want %v", i, env.captures[i].delay, w)
		}
	}
}

func TestNoPolicyHourStandsByUntilNextHour(t *testing.T) {
	t.Parallel()
	cfg := dayNightConfig(300) // m1 has no "night" policy
	env := newFakeEnv(time.Date(2024, 6, 15, 20, 15, 30, 0, time.UTC), 1)
	s, ctx := newTestScheduler(cfg, env, logx.Nop())

	err := s.RunForever(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunForever = %v, want context.Canceled", err)
	}
	if len(env.captures) != 0 {
		t.Fatalf("captured during standby: %d", len(env.captures))
	}
	if len(env.sleeps) != 1 || env.sleeps[0] != 2670*time.Second {
		t.Fatalf("sleeps = %v, want [44m30s]", env.sleeps)
	}
}

func TestTimezoneHourNotNormalized(t *testing.T) {
	t.Parallel()
	// UTC hour 20 with +9 gives hour-of-day 29. A full 0-24 window would
	// match any wrapped hour, so standby here proves there is no wrap.
	cfg := Config{
		TimezoneOffset: 9,
		Windows:        []Window{{Label: "all", Start: 0, End: 24}},
		Modes: []Mode{{
			ID:        "m1",
			Periods:   [][2]int{{20240101, 20241231}},
			Frequency: map[string]Frequency{"all": {Wait: 60}},
		}},
	}
	env := newFakeEnv(time.Date(2024, 6, 15, 20, 0, 0, 0, time.UTC), 1)
	s, ctx := newTestScheduler(cfg, env, logx.Nop())

	err := s.RunForever(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunForever = %v, want context.Canceled", err)
	}
	if len(env.captures) != 0 {
		t.Fatal("out-of-domain hour must not capture")
	}
}

func TestStopMarkerStandbyAndSingleResume(t *testing.T) {
	t.Parallel()
	marker := filepath.Join(t.TempDir(), "stop")
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := dayNightConfig(300)
	cfg.StopFile = marker
	cfg.Standby = 600 * time.Second
	cfg.CronBudget = 300
	env := newFakeEnv(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), 0)
	env.afterSleep = func(n int) {
		if n == 2 {
			if err := os.Remove(marker); err != nil {
				t.Errorf("remove marker: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	s, ctx := newTestScheduler(cfg, env, logx.NewWriter(&buf, "info"))

	if err := s.RunCron(ctx); err != nil {
		t.Fatalf("RunCron: %v", err)
	}
	if got := env.sleeps[:2]; got[0] != 600*time.Second || got[1] != 600*time.Second {
		t.Fatalf("standby sleeps = %v, want two of 600s", got)
	}
	if len(env.captures) != 1 {
		t.Fatalf("captures = %d, want 1 after marker removal", len(env.captures))
	}
	if n := strings.Count(buf.String(), "standby cleared; resuming captures"); n != 1 {
		t.Fatalf("resume event emitted %d times, want exactly 1", n)
	}
}

func TestDisabledPeriodFallThrough(t *testing.T) {
	t.Parallel()
	cfg := dayNightConfig(0.5)
	cfg.CronBudget = 1.5
	env := newFakeEnv(time.Date(2024, 6, 15, 10, 20, 0, 0, time.UTC), 0)
	var buf bytes.Buffer
	s, ctx := newTestScheduler(cfg, env, logx.NewWriter(&buf, "warn"))

	if err := s.RunCron(ctx); err != nil {
		t.Fatalf("RunCron: %v", err)
	}
	// The sub-second wait parks until the next hour, then still captures
	// once with the floored 1s wait.
	if len(env.sleeps) == 0 || env.sleeps[0] != 40*time.Minute {
		t.Fatalf("sleeps = %v, want leading 40m park", env.sleeps)
	}
	if len(env.captures) != 1 {
		t.Fatalf("captures = %d, want 1", len(env.captures))
	}
	if env.captures[0].delay != time.Second {
		t.Fatalf("delay = %v, want floored 1s", env.captures[0].delay)
	}
	if !strings.Contains(buf.String(), "captures disabled for this period") {
		t.Fatal("missing disabled-period warning")
	}
}

func TestReadyProbeRelaxesFloor(t *testing.T) {
	t.Parallel()
	cfg := dayNightConfig(0.5)
	cfg.CronBudget = 0.5
	env := newFakeEnv(time.Date(2024, 6, 15, 10, 20, 0, 0, time.UTC), 0)
	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	s := New(cfg, env,
		WithClock(env.Now, env.Sleep),
		WithReadyProbe(func(context.Context) bool { return true }),
	)

	if err := s.RunCron(ctx); err != nil {
		t.Fatalf("RunCron: %v", err)
	}
	if len(env.captures) != 1 {
		t.Fatalf("captures = %d, want 1", len(env.captures))
	}
	if env.captures[0].delay != 500*time.Millisecond {
		t.Fatalf("delay = %v, want 500ms under the relaxed floor", env.captures[0].delay)
	}
}

func TestTransitionEvents(t *testing.T) {
	t.Parallel()
	cfg := dayNightConfig(300)
	cfg.Modes[0].Frequency["night"] = Frequency{Wait: 300}
	cfg.CronBudget = 900
	env := newFakeEnv(time.Date(2024, 6, 15, 17, 50, 0, 0, time.UTC), 0)
	var buf bytes.Buffer
	s, ctx := newTestScheduler(cfg, env, logx.NewWriter(&buf, "info"))

	if err := s.RunCron(ctx); err != nil {
		t.Fatalf("RunCron: %v", err)
	}
	out := buf.String()
	if n := strings.Count(out, "execution mode changed"); n != 1 {
		t.Fatalf("mode change events = %d, want 1\nlog: %s", n, out)
	}
	// Initial ""->day, then crossing 18:00 day->night.
	if n := strings.Count(out, "frequency label changed"); n != 2 {
		t.Fatalf("label change events = %d, want 2\nlog: %s", n, out)
	}
}

func TestRunWithNoModes(t *testing.T) {
	t.Parallel()
	env := newFakeEnv(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), 0)
	s, ctx := newTestScheduler(Config{Windows: testWindows()}, env, logx.Nop())
	if err := s.RunForever(ctx); !errors.Is(err, ErrNoModes) {
		t.Fatalf("RunForever = %v, want ErrNoModes", err)
	}
}

func TestCaptureErrorPropagates(t *testing.T) {
	t.Parallel()
	cfg := dayNightConfig(300)
	env := newFakeEnv(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), 0)
	env.captureErr = errors.New("device busy")
	s, ctx := newTestScheduler(cfg, env, logx.Nop())
	if err := s.RunForever(ctx); err == nil || !strings.Contains(err.Error(), "device busy") {
		t.Fatalf("RunForever = %v, want capture error", err)
	}
}

func TestRunOnce(t *testing.T) {
	t.Parallel()
	cfg := dayNightConfig(300)
	cfg.Normal = NormalPolicy{Standby: 3, Quality: "1080p"}
	env := newFakeEnv(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), 0)
	s, ctx := newTestScheduler(cfg, env, logx.Nop())

	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(env.captures) != 1 {
		t.Fatalf("captures = %d, want 1", len(env.captures))
	}
	got := env.captures[0]
	if got.delay != 3*time.Second {
		t.Fatalf("delay = %v, want the default policy standby of 3s", got.delay)
	}
	if got.quality != QualityMax {
		t.Fatalf("quality = %q, want %q", got.quality, QualityMax)
	}
}

func TestSleepContext(t *testing.T) {
	t.Parallel()
	if err := SleepContext(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled sleep = %v, want context.Canceled", err)
	}
	start := time.Now()
	if err := SleepContext(context.Background(), 5*time.Millisecond); err != nil {
		t.Fatalf("short sleep: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatal("sleep returned early")
	}
}
