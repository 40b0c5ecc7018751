package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Gate defaults.
const (
	DefaultIdle   = 3 * time.Second
	DefaultMotion = 0.02
)

const (
	blurKernel   = 21
	pixelDiffMin = 25
)

// MotionGate decides whether a frame is worth running the detector on. It
// compares each frame to the previous one and stays open for an idle window
// after the last motion, so a hand held still keeps being recognized.
type MotionGate struct {
	mu        sync.Mutex
	threshold float64 // fraction of changed pixels, 0..1
	idle      time.Duration
	prev      gocv.Mat
	hasPrev   bool
	lastMove  time.Time
	now       func() time.Time
}

// NewMotionGate returns a gate that opens when more than threshold of the
// pixels change and closes idle after the last such frame.
func NewMotionGate(threshold float64, idle time.Duration) *MotionGate {
	if threshold <= 0 {
		threshold = DefaultMotion
	}
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &MotionGate{
		threshold: threshold,
		idle:      idle,
		prev:      gocv.NewMat(),
		now:       time.Now,
	}
}

// Change returns the fraction of pixels that differ from the previous
// frame. The first frame reports 1 so recognition starts immediately.
func (g *MotionGate) Change(frame *gocv.Mat) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.change(frame)
}

func (g *MotionGate) change(frame *gocv.Mat) float64 {
	if frame == nil || frame.Empty() {
		return 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)

	defer gray.CopyTo(&g.prev)
	if !g.hasPrev || g.prev.Rows() != gray.Rows() || g.prev.Cols() != gray.Cols() {
		g.hasPrev = true
		return 1
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, g.prev, &diff)
	gocv.Threshold(diff, &diff, pixelDiffMin, 255, gocv.ThresholdBinary)

	return float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols())
}

// Allow feeds frame to the gate and reports whether it should be
// recognized.
func (g *MotionGate) Allow(frame *gocv.Mat) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.change(frame) > g.threshold {
		g.lastMove = now
	}
	return !g.lastMove.IsZero() && now.Sub(g.lastMove) <= g.idle
}

// Active reports whether the gate is open without feeding a frame.
func (g *MotionGate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.lastMove.IsZero() && g.now().Sub(g.lastMove) <= g.idle
}

// Reset forgets the previous frame and closes the gate.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasPrev = false
	g.lastMove = time.Time{}
}

// Close releases the stored frame.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prev.Close()
	g.hasPrev = false
}
