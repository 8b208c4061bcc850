package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
)

// Backend grabs a single JPEG frame from a capture source.
type Backend interface {
	Grab(ctx context.Context, preset Preset) ([]byte, error)
	Available(ctx context.Context) bool
}

// v4l2Backend shells out to ffmpeg for a one-frame grab from a V4L2 device.
type v4l2Backend struct {
	device string
}

func newV4L2Backend(device string) *v4l2Backend {
	return &v4l2Backend{device: device}
}

func (b *v4l2Backend) Grab(ctx context.Context, preset Preset) ([]byte, error) {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", preset.Width, preset.Height),
		"-i", b.device,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", fmt.Sprintf("%d", preset.JPEGQ),
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w (stderr: %s)", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame (stderr: %s)", stderr.String())
	}
	return stdout.Bytes(), nil
}

// Available probes the device with v4l2-ctl; if the tool is missing it falls
// back to a stat of the device node.
func (b *v4l2Backend) Available(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", b.device, "--info")
	if err := cmd.Run(); err == nil {
		return true
	} else if _, isExec := err.(*exec.ExitError); isExec {
		return false
	}
	_, err := os.Stat(b.device)
	return err == nil
}

// stubBackend synthesizes a flat gray frame. Used by tests and for running
// the daemon on hosts without a camera.
type stubBackend struct{}

func (stubBackend) Grab(_ context.Context, preset Preset) ([]byte, error) {
	// Keep the synthetic frame small; geometry matters, fidelity doesn't.
	w, h := preset.Width/16, preset.Height/16
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	gray := color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, gray)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (stubBackend) Available(context.Context) bool { return true }
