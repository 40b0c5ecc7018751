package recognizer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/forest"
	"github.com/ahmedibraahiim/asl/internal/labels"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
	"github.com/ahmedibraahiim/asl/testdata"
)

func init() {
	monitoring.SetLogger(nil)
}

func trainedClassifier(t *testing.T, letters ...string) *classifier.Classifier {
	t.Helper()
	features, y, mapping := testdata.SignDataset(letters, 12, 7)
	clf := classifier.New(classifier.WithParams(forest.Params{Trees: 20, MinSamplesSplit: 2, Seed: 42}))
	_, err := clf.Train(features, y, mapping, false)
	require.NoError(t, err)
	return clf
}

func presetHand(t *testing.T, letter string) *detector.HandLandmarks {
	t.Helper()
	h, ok := detector.SignLandmarks(letter)
	require.True(t, ok)
	return &h
}

func TestRecognizeLandmarks(t *testing.T) {
	r := New(detector.NewMockDetector(), trainedClassifier(t, detector.SignLetters...))

	for _, letter := range detector.SignLetters {
		resp, err := r.RecognizeLandmarks(presetHand(t, letter))
		require.NoError(t, err)
		assert.Equal(t, letter, resp.Sign)
		assert.True(t, resp.HasHand)
		assert.True(t, resp.IsAtoF)
		assert.Greater(t, resp.Confidence, 0.0)
		assert.LessOrEqual(t, resp.Confidence, 1.0)
		require.Len(t, resp.Landmarks, detector.NumLandmarks)
		assert.Equal(t, 20, resp.Landmarks[20].Index)
	}
}

func TestRecognizeLandmarksNoHand(t *testing.T) {
	r := New(detector.NewMockDetector(), nil)

	resp, err := r.RecognizeLandmarks(nil)
	require.NoError(t, err)
	assert.Equal(t, NoHand(), resp)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sign":"no_hand","confidence":0,"landmarks":[],"has_hand":false,"is_a_to_f":false}`, string(data))
}

func TestRecognizeWithoutModel(t *testing.T) {
	r := New(detector.NewMockDetector(), nil)
	assert.False(t, r.Ready())

	resp, err := r.RecognizeLandmarks(presetHand(t, "A"))
	assert.ErrorIs(t, err, ErrNoModel)
	assert.True(t, resp.HasHand)
	assert.Len(t, resp.Landmarks, detector.NumLandmarks)

	_, err = New(detector.NewMockDetector(), classifier.New()).RecognizeLandmarks(presetHand(t, "A"))
	assert.ErrorIs(t, err, classifier.ErrNotTrained)
}

func TestRecognizeImage(t *testing.T) {
	mock := detector.NewMockDetector()
	r := New(mock, trainedClassifier(t, detector.SignLetters...))

	data, err := testdata.EncodedFrame(gocv.JPEGFileExt)
	require.NoError(t, err)

	resp, err := r.RecognizeImage(data)
	require.NoError(t, err)
	assert.Equal(t, NoHandSign, resp.Sign)

	mock.SetHand(presetHand(t, "E"))
	resp, err = r.RecognizeImage(data)
	require.NoError(t, err)
	assert.Equal(t, "E", resp.Sign)
	assert.Equal(t, 2, mock.Calls())
}

func TestRecognizeImageErrors(t *testing.T) {
	mock := detector.NewMockDetector()
	r := New(mock, nil)

	_, err := r.RecognizeImage([]byte("not an image"))
	assert.ErrorIs(t, err, detector.ErrInvalidImage)
	assert.Equal(t, 0, mock.Calls())

	frame := testdata.Frame()
	defer frame.Close()
	boom := errors.New("detector crashed")
	mock.SetError(boom)
	_, err = r.RecognizeFrame(&frame)
	assert.ErrorIs(t, err, boom)
}

func TestIsAtoFFlag(t *testing.T) {
	features, y, _ := testdata.SignDataset([]string{"A", "B"}, 12, 7)
	mapping, err := labels.New([]string{"g", "space"})
	require.NoError(t, err)
	clf := classifier.New(classifier.WithParams(forest.Params{Trees: 20, MinSamplesSplit: 2, Seed: 42}))
	_, err = clf.Train(features, y, mapping, false)
	require.NoError(t, err)

	r := New(detector.NewMockDetector(), clf)
	resp, err := r.RecognizeLandmarks(presetHand(t, "B"))
	require.NoError(t, err)
	assert.Equal(t, "space", resp.Sign)
	assert.False(t, resp.IsAtoF)
}

func TestSwap(t *testing.T) {
	r := New(detector.NewMockDetector(), nil)
	assert.Nil(t, r.Classifier())

	first := trainedClassifier(t, "A", "B")
	assert.Nil(t, r.Swap(first))
	assert.True(t, r.Ready())
	assert.Same(t, first, r.Classifier())

	second := trainedClassifier(t, "C", "D")
	assert.Same(t, first, r.Swap(second))

	resp, err := r.RecognizeLandmarks(presetHand(t, "D"))
	require.NoError(t, err)
	assert.Equal(t, "D", resp.Sign)
	assert.Empty(t, r.ModelID())

	assert.Same(t, second, r.SwapModel(first, "model-1"))
	assert.Equal(t, "model-1", r.ModelID())
}

func TestWithDetectorSharesModel(t *testing.T) {
	still := detector.NewMockDetector()
	r := New(still, nil)

	live := detector.NewMockDetector()
	other := r.WithDetector(live)
	assert.False(t, other.Ready())

	clf := trainedClassifier(t, "A", "B")
	other.SwapModel(clf, "model-2")
	assert.Same(t, clf, r.Classifier())
	assert.Equal(t, "model-2", r.ModelID())

	hand := presetHand(t, "B")
	live.SetHand(hand)
	frame := testdata.Frame()
	defer frame.Close()

	resp, err := other.RecognizeFrame(&frame)
	require.NoError(t, err)
	assert.Equal(t, "B", resp.Sign)
	assert.Equal(t, 1, live.Calls())
	assert.Zero(t, still.Calls(), "each recognizer keeps its own detector")
}

func TestDegraded(t *testing.T) {
	data, err := json.Marshal(Degraded())
	require.NoError(t, err)
	assert.JSONEq(t, `{"sign":"error","confidence":0,"landmarks":[],"has_hand":true,"is_a_to_f":false}`, string(data))
}
