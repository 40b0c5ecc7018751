package detector

import "gocv.io/x/gocv"

// Detector finds a single hand in an image.
type Detector interface {
	// Detect analyzes a frame and returns the landmarks of the most confident
	// hand, or nil when no hand is visible.
	Detect(frame *gocv.Mat) (*HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	// Ignored in static image mode.
	MinTrackingConf float64

	// StaticImageMode treats every frame as unrelated, which is what dataset
	// extraction and single-image prediction want. Live video leaves it off so
	// MediaPipe can track between frames.
	StaticImageMode bool

	// ScriptPath overrides the mediapipe service script location.
	ScriptPath string

	// PythonPath overrides the interpreter used to run the script.
	PythonPath string
}

// DefaultConfig returns a Config suited for still-image detection.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		StaticImageMode: true,
	}
}
