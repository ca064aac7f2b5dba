package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// FFmpegDevice grabs stills with the ffmpeg binary: v4l2 on Linux,
// avfoundation on macOS. It reports neither torch nor zoom.
type FFmpegDevice struct {
	// Binary is the ffmpeg executable; defaults to "ffmpeg" on PATH.
	Binary string
	// Index selects the camera (/dev/videoN on Linux).
	Index int
	// Size is the requested frame size; defaults to 1280x720.
	Size string

	goos       string
	lookPath   func(string) (string, error)
	statDevice func(string) error
	run        func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// NewFFmpegDevice returns a device for camera index on the current OS.
func NewFFmpegDevice(index int) *FFmpegDevice {
	return &FFmpegDevice{Index: index}
}

func (d *FFmpegDevice) binary() string {
	if d.Binary != "" {
		return d.Binary
	}
	return "ffmpeg"
}

func (d *FFmpegDevice) targetOS() string {
	if d.goos != "" {
		return d.goos
	}
	return runtime.GOOS
}

// Open checks that ffmpeg and the camera are present and readable. Frames
// are grabbed on demand, so nothing is held open between calls.
func (d *FFmpegDevice) Open(ctx context.Context, facing Facing) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lookPath := d.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	bin, err := lookPath(d.binary())
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrNotSupported, d.binary())
	}

	args, err := d.args()
	if err != nil {
		return nil, err
	}

	if d.targetOS() == "linux" {
		stat := d.statDevice
		if stat == nil {
			stat = func(p string) error {
				f, err := os.Open(p)
				if err != nil {
					return err
				}
				return f.Close()
			}
		}
		dev := "/dev/video" + strconv.Itoa(d.Index)
		if err := stat(dev); err != nil {
			switch {
			case errors.Is(err, fs.ErrNotExist):
				return nil, fmt.Errorf("%w: %s", ErrNotSupported, dev)
			case errors.Is(err, fs.ErrPermission):
				return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, dev)
			default:
				return nil, fmt.Errorf("%w: %v", ErrCamera, err)
			}
		}
	}

	run := d.run
	if run == nil {
		run = execRun
	}
	return &ffmpegStream{bin: bin, args: args, run: run}, nil
}

func (d *FFmpegDevice) args() ([]string, error) {
	size := d.Size
	if size == "" {
		size = "1280x720"
	}
	var in []string
	switch d.targetOS() {
	case "linux":
		in = []string{"-f", "v4l2", "-video_size", size, "-i", "/dev/video" + strconv.Itoa(d.Index)}
	case "darwin":
		in = []string{"-f", "avfoundation", "-video_size", size, "-framerate", "30", "-i", strconv.Itoa(d.Index)}
	default:
		return nil, fmt.Errorf("%w: no ffmpeg input for %s", ErrNotSupported, d.targetOS())
	}
	out := []string{"-loglevel", "error", "-vframes", "1", "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "2", "-"}
	return append(append([]string{"-hide_banner"}, in...), out...), nil
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

type ffmpegStream struct {
	bin  string
	args []string
	run  func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

	mu     sync.Mutex
	closed bool
}

func (s *ffmpegStream) Capabilities() Capabilities { return Capabilities{} }

func (s *ffmpegStream) SetTorch(bool) error { return ErrCapabilityUnsupported }

func (s *ffmpegStream) SetZoom(float64) error { return ErrCapabilityUnsupported }

func (s *ffmpegStream) Frame(ctx context.Context) (Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return Image{}, fmt.Errorf("%w: stream closed", ErrCamera)
	}

	out, stderr, err := s.run(ctx, s.bin, s.args...)
	if err != nil {
		if ctx.Err() != nil {
			return Image{}, ctx.Err()
		}
		msg := strings.TrimSpace(string(stderr))
		if strings.Contains(strings.ToLower(msg), "permission denied") {
			return Image{}, fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
		}
		return Image{}, fmt.Errorf("%w: ffmpeg: %v: %s", ErrCamera, err, msg)
	}
	img, err := FromBytes(out)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrCamera, err)
	}
	return img, nil
}

func (s *ffmpegStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
