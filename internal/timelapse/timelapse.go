// Package timelapse assembles the day's stored frames into an mp4.
package timelapse

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "lapsecam/pkg/logx"
)

type Config struct {
	Enabled   bool
	Spec      string // cron spec; default "5 0 * * *" (just past midnight)
	SourceDir string // the camera output dir (frames under 2006/01/02/)
	OutputDir string
	FPS       int
}

func (c *Config) withDefaults() Config {
	out := *c
	if strings.TrimSpace(out.Spec) == "" {
		out.Spec = "5 0 * * *"
	}
	if strings.TrimSpace(out.OutputDir) == "" {
		out.OutputDir = filepath.Join(out.SourceDir, "timelapse")
	}
	if out.FPS <= 0 {
		out.FPS = 24
	}
	return out
}

// Service runs the daily assembly job on a cron schedule.
type Service struct {
	cfg Config
	log logx.Logger

	mu sync.Mutex
	c  *cron.Cron

	// runFFmpeg is swappable for tests.
	runFFmpeg func(ctx context.Context, args []string) error
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg.withDefaults(),
		log: log,
		runFFmpeg: func(ctx context.Context, args []string) error {
			cmd := exec.CommandContext(ctx, "ffmpeg", args...)
			out, err := cmd.CombinedOutput()
			if err != nil {
				return fmt.Errorf("ffmpeg: %w (output: %s)", err, strings.TrimSpace(string(out)))
			}
			return nil
		},
	}
}

// Start registers the daily job. No-op when disabled.
func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(s.cfg.Spec, func() {
		// Assemble yesterday: the job fires shortly after midnight.
		day := time.Now().AddDate(0, 0, -1)
		if err := s.AssembleDay(ctx, day); err != nil {
			s.log.Error("timelapse assembly failed",
				logx.String("day", day.Format("2006-01-02")), logx.Err(err))
		}
	})
	if err != nil {
		return fmt.Errorf("timelapse: bad cron spec %q: %w", s.cfg.Spec, err)
	}
	c.Start()

	s.mu.Lock()
	s.c = c
	s.mu.Unlock()

	s.log.Info("timelapse assembly scheduled",
		logx.String("spec", s.cfg.Spec),
		logx.String("output", s.cfg.OutputDir),
	)
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}

// AssembleDay builds <out>/timelapse_YYYY-MM-DD.mp4 from the frames captured
// on the given day. Days without frames are skipped silently.
func (s *Service) AssembleDay(ctx context.Context, day time.Time) error {
	srcDir := filepath.Join(s.cfg.SourceDir, day.Format("2006/01/02"))
	frames, err := countFrames(srcDir)
	if err != nil {
		return err
	}
	if frames == 0 {
		s.log.Debug("no frames for day; skipping timelapse",
			logx.String("dir", srcDir))
		return nil
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return err
	}
	out := filepath.Join(s.cfg.OutputDir,
		fmt.Sprintf("timelapse_%s.mp4", day.Format("2006-01-02")))

	args := s.ffmpegArgs(srcDir, out)
	s.log.Info("assembling timelapse",
		logx.String("day", day.Format("2006-01-02")),
		logx.Int("frames", frames),
		logx.String("out", out),
	)
	return s.runFFmpeg(ctx, args)
}

func (s *Service) ffmpegArgs(srcDir, out string) []string {
	return []string{
		"-y",
		"-framerate", strconv.Itoa(s.cfg.FPS),
		"-pattern_type", "glob",
		"-i", filepath.Join(srcDir, "*.jpg"),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		out,
	}
}

func countFrames(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".jpg") {
			n++
		}
	}
	return n, nil
}
