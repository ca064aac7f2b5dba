package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrNotSupported means there is no usable camera on this machine.
	ErrNotSupported = errors.New("capture: camera not supported")
	// ErrPermissionDenied means a camera exists but access was refused.
	ErrPermissionDenied = errors.New("capture: camera permission denied")
	// ErrCamera wraps every other camera failure.
	ErrCamera = errors.New("capture: camera error")
	// ErrCapabilityUnsupported is returned when torch or zoom is requested
	// on a stream that does not report it.
	ErrCapabilityUnsupported = errors.New("capture: capability not supported")
	// ErrInvalidState is returned when an operation does not fit the
	// camera's current state, e.g. Confirm before Capture.
	ErrInvalidState = errors.New("capture: invalid camera state")
)

// Facing selects which camera to open.
type Facing int

const (
	FacingRear Facing = iota
	FacingFront
)

// ZoomRange is the zoom interval a stream reports.
type ZoomRange struct {
	Min, Max, Step float64
}

// Capabilities lists the optional controls of an open stream. A control is
// present only when the hardware reports it.
type Capabilities struct {
	Torch bool
	Zoom  *ZoomRange
}

// Device opens camera streams. Implementations return errors wrapping
// ErrNotSupported or ErrPermissionDenied when they can tell; anything else
// is reported as ErrCamera.
type Device interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// Stream is an open camera. Only one is held at a time per Camera.
type Stream interface {
	Capabilities() Capabilities
	SetTorch(on bool) error
	SetZoom(level float64) error
	// Frame grabs a single still.
	Frame(ctx context.Context) (Image, error)
	Close() error
}

// State is where a Camera is in its capture flow.
type State int

const (
	StateClosed State = iota
	StatePreviewing
	StateCaptured
)

func (s State) String() string {
	switch s {
	case StatePreviewing:
		return "previewing"
	case StateCaptured:
		return "captured"
	default:
		return "closed"
	}
}

// Camera drives one capture session:
//
//	Closed --Open--> Previewing --Capture--> Captured
//	Captured --Retake--> Previewing
//	Captured --Confirm--> Closed (frame returned)
//	any --Close--> Closed
//
// The stream is released as soon as a frame is captured, and on confirm,
// close, or a new Open. Release errors are logged and never returned.
type Camera struct {
	dev Device
	log zerolog.Logger

	mu     sync.Mutex
	state  State
	stream Stream
	caps   Capabilities
	frame  Image
	zoom   float64
	torch  bool
}

// NewCamera returns a closed Camera over dev.
func NewCamera(dev Device, log zerolog.Logger) *Camera {
	return &Camera{dev: dev, log: log}
}

// State reports the current state.
func (c *Camera) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open starts a rear-facing preview, releasing any stream held before.
func (c *Camera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = Image{}
	return c.openLocked(ctx)
}

func (c *Camera) openLocked(ctx context.Context) error {
	c.releaseLocked()

	s, err := c.dev.Open(ctx, FacingRear)
	if err != nil {
		c.state = StateClosed
		return classify(err)
	}
	c.stream = s
	c.caps = s.Capabilities()
	c.torch = false
	c.zoom = 0
	if c.caps.Zoom != nil {
		c.zoom = c.caps.Zoom.Min
	}
	c.state = StatePreviewing
	return nil
}

// Capabilities returns the controls of the open stream, or none when closed.
func (c *Camera) Capabilities() Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePreviewing {
		return Capabilities{}
	}
	return c.caps
}

// SetTorch switches the torch. Hardware failures are logged and ignored.
func (c *Camera) SetTorch(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePreviewing {
		return ErrInvalidState
	}
	if !c.caps.Torch {
		return ErrCapabilityUnsupported
	}
	if err := c.stream.SetTorch(on); err != nil {
		c.log.Warn().Err(err).Bool("on", on).Msg("torch change failed")
		return nil
	}
	c.torch = on
	return nil
}

// SetZoom clamps level to the reported range, snaps it to the step, and
// applies it. It returns the level asked of the hardware. Hardware failures
// are logged and ignored.
func (c *Camera) SetZoom(level float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePreviewing {
		return 0, ErrInvalidState
	}
	if c.caps.Zoom == nil {
		return 0, ErrCapabilityUnsupported
	}
	z := snapZoom(level, *c.caps.Zoom)
	if err := c.stream.SetZoom(z); err != nil {
		c.log.Warn().Err(err).Float64("zoom", z).Msg("zoom change failed")
		return z, nil
	}
	c.zoom = z
	return z, nil
}

// Capture freezes one frame and releases the stream.
func (c *Camera) Capture(ctx context.Context) (Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePreviewing {
		return Image{}, ErrInvalidState
	}
	img, err := c.stream.Frame(ctx)
	if err != nil {
		return Image{}, classify(err)
	}
	c.frame = img
	c.releaseLocked()
	c.state = StateCaptured
	return img, nil
}

// Retake discards the captured frame and reopens the preview.
func (c *Camera) Retake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCaptured {
		return ErrInvalidState
	}
	c.frame = Image{}
	return c.openLocked(ctx)
}

// Confirm ends the session and returns the captured frame.
func (c *Camera) Confirm() (Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCaptured {
		return Image{}, ErrInvalidState
	}
	img := c.frame
	c.frame = Image{}
	c.releaseLocked()
	c.state = StateClosed
	return img, nil
}

// Close releases the camera and drops any captured frame. It is safe to call
// in any state.
func (c *Camera) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.frame = Image{}
	c.state = StateClosed
}

func (c *Camera) releaseLocked() {
	if c.stream == nil {
		return
	}
	if c.torch {
		if err := c.stream.SetTorch(false); err != nil {
			c.log.Debug().Err(err).Msg("torch off on release failed")
		}
	}
	if err := c.stream.Close(); err != nil {
		c.log.Warn().Err(err).Msg("camera release failed")
	}
	c.stream = nil
	c.caps = Capabilities{}
	c.torch = false
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrNotSupported), errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrCamera):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrCamera, err)
	}
}

// snapZoom clamps level into r and rounds it to the nearest step from Min.
func snapZoom(level float64, r ZoomRange) float64 {
	if level < r.Min {
		level = r.Min
	}
	if level > r.Max {
		level = r.Max
	}
	if r.Step > 0 {
		n := math.Round((level - r.Min) / r.Step)
		level = r.Min + n*r.Step
		if level > r.Max {
			level -= r.Step
		}
	}
	return level
}
