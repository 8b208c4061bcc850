package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "lapsecam/pkg/logx"

	"lapsecam/internal/storage"
)

// Preset is a named capture quality.
type Preset struct {
	Name   string
	Width  int
	Height int
	// JPEGQ is the ffmpeg -q:v value (2 best .. 31 worst).
	JPEGQ int
}

// Presets in ascending quality. "max" and unknown labels resolve to the
// highest preset.
var presets = []Preset{
	{Name: "480p", Width: 640, Height: 480, JPEGQ: 5},
	{Name: "720p", Width: 1280, Height: 720, JPEGQ: 3},
	{Name: "1080p", Width: 1920, Height: 1080, JPEGQ: 2},
}

type Config struct {
	Backend   string // "v4l2" (default) or "stub"
	Device    string // default /dev/video0
	OutputDir string // default ./snapshots
	Latest    string // default <OutputDir>/latest.jpg
}

func (c *Config) withDefaults() Config {
	out := *c
	if strings.TrimSpace(out.Backend) == "" {
		out.Backend = "v4l2"
	}
	if strings.TrimSpace(out.Device) == "" {
		out.Device = "/dev/video0"
	}
	if strings.TrimSpace(out.OutputDir) == "" {
		out.OutputDir = "./snapshots"
	}
	if strings.TrimSpace(out.Latest) == "" {
		out.Latest = filepath.Join(out.OutputDir, "latest.jpg")
	}
	return out
}

// Service drives one physical capture resource. Invocations are strictly
// sequential (the scheduler guarantees it); Service keeps no loop state.
type Service struct {
	cfg     Config
	log     logx.Logger
	backend Backend
	store   storage.Store // may be nil
}

// New builds the capture service. store may be nil (index disabled).
func New(cfg Config, store storage.Store, log logx.Logger) (*Service, error) {
	cfg = cfg.withDefaults()

	var backend Backend
	switch strings.ToLower(cfg.Backend) {
	case "v4l2":
		backend = newV4L2Backend(cfg.Device)
	case "stub":
		backend = stubBackend{}
	default:
		return nil, fmt.Errorf("camera: unknown backend %q", cfg.Backend)
	}

	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log, backend: backend, store: store}, nil
}

// Ready reports whether the capture device is available right now. The
// scheduler uses this to relax its minimum wait floor.
func (s *Service) Ready(ctx context.Context) bool {
	return s.backend.Available(ctx)
}

// ArtifactPath derives the deterministic storage path for a capture taken
// at ts.
func (s *Service) ArtifactPath(ts time.Time) string {
	return filepath.Join(s.cfg.OutputDir, ts.Format("2006/01/02"), ts.Format("150405")+".jpg")
}

// Capture implements the scheduler's capture contract.
func (s *Service) Capture(ctx context.Context, ts time.Time, delay time.Duration, quality string) (time.Duration, error) {
	start := time.Now()

	if err := sleepContext(ctx, delay); err != nil {
		return time.Since(start), err
	}

	preset := s.resolvePreset(quality)
	frame, err := s.backend.Grab(ctx, preset)
	if err != nil {
		return time.Since(start), fmt.Errorf("camera: grab failed: %w", err)
	}

	path := s.ArtifactPath(ts)
	if err := writeAtomic(path, frame); err != nil {
		return time.Since(start), fmt.Errorf("camera: store artifact: %w", err)
	}
	if err := writeAtomic(s.cfg.Latest, frame); err != nil {
		// The artifact itself is safe; a stale latest pointer is not fatal.
		s.log.Warn("latest pointer update failed", logx.String("path", s.cfg.Latest), logx.Err(err))
	}

	elapsed := time.Since(start)
	s.index(ctx, storage.CaptureRecord{
		At:      ts,
		Path:    path,
		Bytes:   int64(len(frame)),
		Quality: preset.Name,
		TookMS:  elapsed.Milliseconds(),
	})

	s.log.Debug("frame stored",
		logx.String("path", path),
		logx.Int("bytes", len(frame)),
		logx.String("quality", preset.Name),
		logx.Duration("took", elapsed),
	)
	return elapsed, nil
}

// index appends to the capture index, best-effort: a broken index must not
// stop the capture cadence.
func (s *Service) index(ctx context.Context, r storage.CaptureRecord) {
	if s.store == nil {
		return
	}
	ictx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.store.AppendCapture(ictx, r); err != nil {
		s.log.Warn("capture index append failed", logx.String("path", r.Path), logx.Err(err))
	}
}

// resolvePreset maps a quality label to a preset. "" and "max" mean the
// highest preset; unknown labels warn once per call and also use the
// highest, so a config typo degrades to better pictures, not worse.
func (s *Service) resolvePreset(quality string) Preset {
	q := strings.ToLower(strings.TrimSpace(quality))
	if q == "" || q == "max" {
		return presets[len(presets)-1]
	}
	for _, p := range presets {
		if p.Name == q {
			return p
		}
	}
	s.log.Warn("unknown quality label; using maximum preset", logx.String("quality", quality))
	return presets[len(presets)-1]
}

// writeAtomic writes b to path via a temp file + rename so readers (the
// latest pointer especially) never observe a partial JPEG.
func writeAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
