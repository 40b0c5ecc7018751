package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// ReplayCamera plays back in-memory frames. It is used by tests and by the
// console when recognizing a fixed set of images.
type ReplayCamera struct {
	mu     sync.Mutex
	frames []gocv.Mat
	next   int
	loop   bool
	open   bool
}

// NewReplayCamera returns a camera over frames. The camera does not take
// ownership of frames; Read returns clones.
func NewReplayCamera(frames []gocv.Mat, loop bool) *ReplayCamera {
	return &ReplayCamera{frames: frames, loop: loop}
}

func (c *ReplayCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.next = 0
	return nil
}

func (c *ReplayCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *ReplayCamera) Read() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrCameraNotOpen
	}
	if c.next >= len(c.frames) {
		if !c.loop || len(c.frames) == 0 {
			return nil, ErrEndOfStream
		}
		c.next = 0
	}
	img := c.frames[c.next].Clone()
	c.next++
	return &img, nil
}

func (c *ReplayCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
