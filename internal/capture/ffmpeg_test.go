package capture

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testDevice(goos string) *FFmpegDevice {
	return &FFmpegDevice{
		Index:      2,
		goos:       goos,
		lookPath:   func(string) (string, error) { return "/usr/bin/ffmpeg", nil },
		statDevice: func(string) error { return nil },
	}
}

func TestFFmpegDevice_Args(t *testing.T) {
	d := testDevice("linux")
	args, err := d.args()
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f v4l2") || !strings.Contains(joined, "/dev/video2") || !strings.HasSuffix(joined, " -") {
		t.Fatalf("unexpected linux args: %s", joined)
	}

	d = testDevice("darwin")
	args, _ = d.args()
	if joined := strings.Join(args, " "); !strings.Contains(joined, "avfoundation") {
		t.Fatalf("unexpected darwin args: %s", joined)
	}

	if _, err := testDevice("plan9").args(); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}

func TestFFmpegDevice_OpenErrors(t *testing.T) {
	d := testDevice("linux")
	d.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	if _, err := d.Open(context.Background(), FacingRear); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("missing binary: %v", err)
	}

	d = testDevice("linux")
	d.statDevice = func(string) error { return fs.ErrNotExist }
	if _, err := d.Open(context.Background(), FacingRear); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("missing device: %v", err)
	}

	d = testDevice("linux")
	d.statDevice = func(string) error { return fs.ErrPermission }
	if _, err := d.Open(context.Background(), FacingRear); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("denied device: %v", err)
	}
}

func TestFFmpegDevice_FrameThroughCamera(t *testing.T) {
	d := testDevice("linux")
	d.run = func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
		if name != "/usr/bin/ffmpeg" {
			t.Errorf("ran %q", name)
		}
		return jpegBytes, nil, nil
	}
	cam := NewCamera(d, zerolog.Nop())
	ctx := context.Background()
	if err := cam.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	if caps := cam.Capabilities(); caps.Torch || caps.Zoom != nil {
		t.Fatalf("ffmpeg reports no controls, got %+v", caps)
	}
	img, err := cam.Capture(ctx)
	if err != nil || img.MIMEType != "image/jpeg" {
		t.Fatalf("capture: (%q, %v)", img.MIMEType, err)
	}
}

func TestFFmpegStream_FrameErrors(t *testing.T) {
	s := &ffmpegStream{bin: "ffmpeg", run: func(context.Context, string, ...string) ([]byte, []byte, error) {
		return nil, []byte("/dev/video0: Permission denied"), errors.New("exit status 1")
	}}
	if _, err := s.Frame(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	s.run = func(context.Context, string, ...string) ([]byte, []byte, error) {
		return []byte("garbage"), nil, nil
	}
	if _, err := s.Frame(context.Background()); !errors.Is(err, ErrCamera) {
		t.Fatalf("expected ErrCamera for non-image output, got %v", err)
	}

	_ = s.Close()
	if _, err := s.Frame(context.Background()); !errors.Is(err, ErrCamera) {
		t.Fatalf("expected ErrCamera after close, got %v", err)
	}
}
