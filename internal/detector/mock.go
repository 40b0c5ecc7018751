package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hand  *HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance that reports no hand.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHand sets the hand returned by Detect. Nil means no hand.
func (m *MockDetector) SetHand(hand *HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hand = hand
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hand or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.hand == nil {
		return nil, nil
	}
	h := *m.hand
	return &h, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Finger poses used by the sign fixtures. Offsets are relative to the
// finger's MCP joint, image y grows downward.
type fingerPose [3]Point3D

var (
	extended = fingerPose{{X: 0, Y: -0.12, Z: 0}, {X: 0, Y: -0.22, Z: 0}, {X: 0, Y: -0.30, Z: 0}}
	curled   = fingerPose{{X: 0, Y: -0.06, Z: -0.04}, {X: 0, Y: -0.02, Z: -0.07}, {X: 0, Y: 0.02, Z: -0.05}}
	clawed   = fingerPose{{X: 0, Y: -0.07, Z: -0.02}, {X: 0, Y: -0.06, Z: -0.06}, {X: 0, Y: -0.03, Z: -0.08}}
	rounded  = fingerPose{{X: 0.03, Y: -0.09, Z: -0.03}, {X: 0.06, Y: -0.13, Z: -0.07}, {X: 0.07, Y: -0.14, Z: -0.11}}
	pinched  = fingerPose{{X: 0.01, Y: -0.08, Z: -0.03}, {X: 0.02, Y: -0.09, Z: -0.06}, {X: 0.02, Y: -0.08, Z: -0.07}}
)

var fingerMCPs = [4]Point3D{
	{X: 0.55, Y: 0.68, Z: 0},
	{X: 0.50, Y: 0.66, Z: 0},
	{X: 0.45, Y: 0.68, Z: 0},
	{X: 0.40, Y: 0.70, Z: 0},
}

// buildHand assembles a right hand from an absolute thumb chain
// (CMC, MCP, IP, tip) and one pose per finger, index to pinky.
func buildHand(thumb [4]Point3D, fingers [4]fingerPose) HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}
	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0}
	copy(h.Points[ThumbCMC:ThumbTip+1], thumb[:])
	for f, pose := range fingers {
		base := IndexMCP + 4*f
		mcp := fingerMCPs[f]
		h.Points[base] = mcp
		for j, off := range pose {
			h.Points[base+1+j] = Point3D{X: mcp.X + off.X, Y: mcp.Y + off.Y, Z: mcp.Z + off.Z}
		}
	}
	return h
}

// SignLetters lists the letters SignLandmarks has presets for.
var SignLetters = []string{"A", "B", "C", "D", "E", "F"}

// SignLandmarks returns a preset right-hand pose approximating the ASL
// letter, or false for letters without a preset.
func SignLandmarks(letter string) (HandLandmarks, bool) {
	switch letter {
	case "A":
		// Fist with the thumb resting alongside the index finger.
		return buildHand([4]Point3D{
			{X: 0.55, Y: 0.76, Z: 0}, {X: 0.59, Y: 0.70, Z: 0}, {X: 0.61, Y: 0.64, Z: 0}, {X: 0.62, Y: 0.59, Z: 0},
		}, [4]fingerPose{curled, curled, curled, curled}), true
	case "B":
		// Flat hand, fingers up, thumb folded across the palm.
		return buildHand([4]Point3D{
			{X: 0.55, Y: 0.76, Z: 0}, {X: 0.58, Y: 0.72, Z: -0.02}, {X: 0.54, Y: 0.70, Z: -0.05}, {X: 0.50, Y: 0.70, Z: -0.06},
		}, [4]fingerPose{extended, extended, extended, extended}), true
	case "C":
		return buildHand([4]Point3D{
			{X: 0.56, Y: 0.76, Z: 0}, {X: 0.62, Y: 0.72, Z: -0.02}, {X: 0.66, Y: 0.68, Z: -0.05}, {X: 0.67, Y: 0.64, Z: -0.09},
		}, [4]fingerPose{rounded, rounded, rounded, rounded}), true
	case "D":
		// Index up, thumb tip meeting the curled middle finger.
		return buildHand([4]Point3D{
			{X: 0.55, Y: 0.76, Z: 0}, {X: 0.58, Y: 0.71, Z: -0.02}, {X: 0.55, Y: 0.67, Z: -0.05}, {X: 0.52, Y: 0.66, Z: -0.06},
		}, [4]fingerPose{extended, curled, curled, curled}), true
	case "E":
		return buildHand([4]Point3D{
			{X: 0.55, Y: 0.77, Z: 0}, {X: 0.57, Y: 0.74, Z: -0.03}, {X: 0.52, Y: 0.74, Z: -0.05}, {X: 0.48, Y: 0.74, Z: -0.05},
		}, [4]fingerPose{clawed, clawed, clawed, clawed}), true
	case "F":
		// Thumb and index pinched, remaining fingers up.
		return buildHand([4]Point3D{
			{X: 0.56, Y: 0.76, Z: 0}, {X: 0.60, Y: 0.70, Z: -0.02}, {X: 0.59, Y: 0.65, Z: -0.04}, {X: 0.57, Y: 0.60, Z: -0.06},
		}, [4]fingerPose{pinched, extended, extended, extended}), true
	}
	return HandLandmarks{}, false
}

// OpenPalmLandmarks returns a relaxed open hand with the thumb spread out.
func OpenPalmLandmarks() HandLandmarks {
	return buildHand([4]Point3D{
		{X: 0.55, Y: 0.75, Z: 0.02}, {X: 0.62, Y: 0.70, Z: 0.03}, {X: 0.68, Y: 0.65, Z: 0.03}, {X: 0.73, Y: 0.60, Z: 0.03},
	}, [4]fingerPose{extended, extended, extended, extended})
}
