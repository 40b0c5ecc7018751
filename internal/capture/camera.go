// Package capture reads frames from a webcam or a video file and gates
// recognition on motion.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Capture defaults.
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a closed camera.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEndOfStream is returned when a file source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Camera is a source of BGR frames.
type Camera interface {
	Open() error
	Close() error
	// Read returns the next frame. The caller must Close it.
	Read() (*gocv.Mat, error)
	IsOpen() bool
}

// Options configures a VideoCamera.
type Options struct {
	// Source is a device index ("0") or a video file path.
	Source string
	// Mirror flips frames horizontally so the preview behaves like a mirror.
	Mirror bool
	FPS    int
	Width  int
	Height int
}

// VideoCamera reads frames through gocv.VideoCapture.
type VideoCamera struct {
	opts Options

	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// NewCamera returns an unopened camera for device id.
func NewCamera(id int) *VideoCamera {
	return NewVideoCamera(Options{Source: strconv.Itoa(id), Mirror: true})
}

// NewVideoCamera returns an unopened camera. Zero options take the defaults.
func NewVideoCamera(opts Options) *VideoCamera {
	if opts.Source == "" {
		opts.Source = "0"
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	return &VideoCamera{opts: opts}
}

// isDevice reports whether the source names a camera index.
func (o Options) isDevice() (int, bool) {
	id, err := strconv.Atoi(o.Source)
	return id, err == nil
}

// Open starts capturing. Opening an open camera is a no-op.
func (c *VideoCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, ok := c.opts.isDevice(); ok {
		vc, err = gocv.OpenVideoCapture(id)
	} else {
		vc, err = gocv.VideoCaptureFile(c.opts.Source)
	}
	if err != nil {
		return fmt.Errorf("open camera %s: %w", c.opts.Source, err)
	}

	if _, ok := c.opts.isDevice(); ok {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
		vc.Set(gocv.VideoCaptureFPS, float64(c.opts.FPS))
	}
	c.capture = vc
	return nil
}

// Close releases the device.
func (c *VideoCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

// Read grabs the next frame, mirrored when configured.
func (c *VideoCamera) Read() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	img := gocv.NewMat()
	if ok := c.capture.Read(&img); !ok || img.Empty() {
		img.Close()
		if _, dev := c.opts.isDevice(); !dev {
			return nil, ErrEndOfStream
		}
		return nil, errors.New("failed to read frame from camera")
	}

	if c.opts.Mirror {
		gocv.Flip(img, &img, 1)
	}
	return &img, nil
}

// IsOpen reports whether the camera is capturing.
func (c *VideoCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}

// FPS returns the requested capture rate.
func (c *VideoCamera) FPS() int {
	return c.opts.FPS
}
