// Package recognizer turns images and frames into sign predictions.
package recognizer

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/labels"
	"github.com/ahmedibraahiim/asl/internal/metrics"
)

// Reserved signs that are not class names.
const (
	NoHandSign = "no_hand"
	ErrorSign  = "error"
)

// ErrNoModel is returned when no classifier has been installed.
var ErrNoModel = errors.New("no model loaded")

// Landmark is one raw detector point with its index.
type Landmark struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Index int     `json:"index"`
}

// Response is the result of one recognition.
type Response struct {
	Sign       string     `json:"sign"`
	Confidence float64    `json:"confidence"`
	Landmarks  []Landmark `json:"landmarks"`
	HasHand    bool       `json:"has_hand"`
	IsAtoF     bool       `json:"is_a_to_f"`
}

// NoHand is the response for an image without a detected hand.
func NoHand() Response {
	return Response{Sign: NoHandSign, Landmarks: []Landmark{}}
}

// Degraded is the response served when the classifier fails on a detected
// hand.
func Degraded() Response {
	return Response{Sign: ErrorSign, Landmarks: []Landmark{}, HasHand: true}
}

// Recognizer runs detection then classification. The classifier can be
// replaced while predictions are in flight.
type Recognizer struct {
	det  detector.Detector
	slot *atomic.Pointer[model]
}

type model struct {
	clf *classifier.Classifier
	id  string
}

// New returns a recognizer. clf may be nil until a model is loaded.
func New(det detector.Detector, clf *classifier.Classifier) *Recognizer {
	r := &Recognizer{det: det, slot: new(atomic.Pointer[model])}
	r.Swap(clf)
	return r
}

// WithDetector returns a recognizer that runs det but shares the model of
// r: a swap on either one is seen by both.
func (r *Recognizer) WithDetector(det detector.Detector) *Recognizer {
	return &Recognizer{det: det, slot: r.slot}
}

// Swap installs clf for subsequent predictions and returns the previous one.
func (r *Recognizer) Swap(clf *classifier.Classifier) *classifier.Classifier {
	return r.SwapModel(clf, "")
}

// SwapModel is Swap with the registry id of the model, reported by ModelID.
func (r *Recognizer) SwapModel(clf *classifier.Classifier, id string) *classifier.Classifier {
	metrics.SetModelLoaded(clf != nil && clf.Trained())
	old := r.slot.Swap(&model{clf: clf, id: id})
	if old == nil {
		return nil
	}
	return old.clf
}

// Classifier returns the installed classifier, or nil.
func (r *Recognizer) Classifier() *classifier.Classifier {
	return r.slot.Load().clf
}

// ModelID returns the registry id given to SwapModel.
func (r *Recognizer) ModelID() string {
	return r.slot.Load().id
}

// Ready reports whether a trained classifier is installed.
func (r *Recognizer) Ready() bool {
	clf := r.Classifier()
	return clf != nil && clf.Trained()
}

// RecognizeImage decodes encoded image bytes and recognizes them. Decode
// failures wrap detector.ErrInvalidImage.
func (r *Recognizer) RecognizeImage(data []byte) (Response, error) {
	img, err := detector.DecodeImage(data)
	if err != nil {
		metrics.Errors.WithLabelValues(metrics.KindDecode).Inc()
		return Response{}, err
	}
	defer img.Close()
	return r.RecognizeFrame(&img)
}

// RecognizeFrame recognizes a BGR frame.
func (r *Recognizer) RecognizeFrame(frame *gocv.Mat) (Response, error) {
	start := time.Now()
	hand, err := r.det.Detect(frame)
	metrics.ObserveStage("detect", start)
	if err != nil {
		metrics.Errors.WithLabelValues(metrics.KindDetect).Inc()
		return Response{}, fmt.Errorf("detect hand: %w", err)
	}
	return r.RecognizeLandmarks(hand)
}

// RecognizeLandmarks classifies detected landmarks. A nil hand yields the
// NoHand response. When classification fails the returned response still
// carries the landmarks.
func (r *Recognizer) RecognizeLandmarks(hand *detector.HandLandmarks) (Response, error) {
	if hand == nil {
		metrics.Predictions.WithLabelValues(NoHandSign).Inc()
		return NoHand(), nil
	}

	resp := Response{HasHand: true, Landmarks: toLandmarks(hand)}

	clf := r.Classifier()
	if clf == nil {
		metrics.Errors.WithLabelValues(metrics.KindClassifier).Inc()
		return resp, ErrNoModel
	}

	start := time.Now()
	pred, err := clf.Predict(detector.Normalize(hand))
	metrics.ObserveStage("classify", start)
	if err != nil {
		metrics.Errors.WithLabelValues(metrics.KindClassifier).Inc()
		return resp, fmt.Errorf("classify: %w", err)
	}

	resp.Sign = pred.Label
	resp.Confidence = pred.Confidence
	resp.IsAtoF = labels.IsAtoF(resp.Sign)
	metrics.Predictions.WithLabelValues(resp.Sign).Inc()
	return resp, nil
}

func toLandmarks(h *detector.HandLandmarks) []Landmark {
	out := make([]Landmark, detector.NumLandmarks)
	for i, p := range h.Points {
		out[i] = Landmark{X: p.X, Y: p.Y, Z: p.Z, Index: i}
	}
	return out
}
