// Package detector turns camera frames and still images into hand landmarks
// and landmarks into the feature vectors the sign classifier consumes.
package detector

import (
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// FeatureSize is the length of a flattened landmark set (21 points x 3 coords).
const FeatureSize = NumLandmarks * 3

// HandConnections are the bones of the MediaPipe hand skeleton as pairs of
// landmark indices: palm outline, then each finger from its base.
var HandConnections = [][2]int{
	{Wrist, ThumbCMC}, {Wrist, IndexMCP}, {IndexMCP, MiddleMCP},
	{MiddleMCP, RingMCP}, {RingMCP, PinkyMCP}, {Wrist, PinkyMCP},
	{ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}

// Point3D is one landmark in normalized image coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks holds the 21 landmarks of a single detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// FeatureVector is a normalized, flattened landmark set of length FeatureSize.
// Layout is x0,y0,z0,x1,y1,z1,...
type FeatureVector []float64

// MalformedInputError reports landmark or feature data of the wrong shape.
type MalformedInputError struct {
	What string
	Got  string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.What, e.Got)
}

// FromMatrix builds HandLandmarks from a 21x3 matrix of raw coordinates.
// A nil matrix means no hand and yields (nil, nil).
func FromMatrix(m [][]float64) (*HandLandmarks, error) {
	if m == nil {
		return nil, nil
	}
	if len(m) != NumLandmarks {
		return nil, &MalformedInputError{What: "landmarks", Got: fmt.Sprintf("%d rows, want %d", len(m), NumLandmarks)}
	}
	h := &HandLandmarks{}
	for i, row := range m {
		if len(row) != 3 {
			return nil, &MalformedInputError{What: "landmarks", Got: fmt.Sprintf("row %d has %d columns, want 3", i, len(row))}
		}
		h.Points[i] = Point3D{X: row[0], Y: row[1], Z: row[2]}
	}
	return h, nil
}

// Normalize converts landmarks into a translation- and scale-invariant
// feature vector: every point is taken relative to the wrist and divided by
// the wrist-to-middle-MCP distance. A zero distance skips the scaling step.
// Nil landmarks (no hand) give a nil vector.
func Normalize(h *HandLandmarks) FeatureVector {
	n := h.Normalize()
	if n == nil {
		return nil
	}
	fv := make(FeatureVector, 0, FeatureSize)
	for _, p := range n.Points {
		fv = append(fv, p.X, p.Y, p.Z)
	}
	return fv
}

// Normalize returns a copy of the landmarks with the wrist at the origin and
// the wrist-to-middle-MCP distance scaled to 1.0. Normalize (the function)
// flattens this form for the classifier; overlays draw the raw points.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i] = Point3D{
			X: h.Points[i].X - wrist.X,
			Y: h.Points[i].Y - wrist.Y,
			Z: h.Points[i].Z - wrist.Z,
		}
	}

	scale := norm(normalized.Points[MiddleMCP])
	if scale == 0 {
		return normalized
	}

	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i].X /= scale
		normalized.Points[i].Y /= scale
		normalized.Points[i].Z /= scale
	}

	return normalized
}

// Matrix returns the landmarks as a 21x3 matrix, the inverse of FromMatrix.
func (h *HandLandmarks) Matrix() [][]float64 {
	if h == nil {
		return nil
	}
	m := make([][]float64, NumLandmarks)
	for i, p := range h.Points {
		m[i] = []float64{p.X, p.Y, p.Z}
	}
	return m
}

func norm(p Point3D) float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}
