package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/forest"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
	"github.com/ahmedibraahiim/asl/internal/store"
	"github.com/ahmedibraahiim/asl/testdata"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// newTestStore creates a Store with a temporary database.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func trainClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	features, y, mapping := testdata.SignDataset(detector.SignLetters, 10, 9)
	clf := classifier.New(classifier.WithParams(forest.Params{Trees: 15, MinSamplesSplit: 2, Seed: 42}))
	_, err := clf.Train(features, y, mapping, false)
	require.NoError(t, err)
	return clf
}

func jpeg(t *testing.T) []byte {
	t.Helper()
	data, err := testdata.EncodedFrame(gocv.JPEGFileExt)
	require.NoError(t, err)
	return data
}

func multipartRequest(t *testing.T, field, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="upload"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) recognizer.Response {
	t.Helper()
	var resp recognizer.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestPredictUpload(t *testing.T) {
	mock := detector.NewMockDetector()
	st := newTestStore(t)
	h := NewPredictHandler(recognizer.New(mock, trainClassifier(t)), st)

	t.Run("no hand", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Upload(rec, multipartRequest(t, "file", "image/jpeg", jpeg(t)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"sign":"no_hand","confidence":0,"landmarks":[],"has_hand":false,"is_a_to_f":false}`, rec.Body.String())
	})

	t.Run("sign", func(t *testing.T) {
		hand, _ := detector.SignLandmarks("D")
		mock.SetHand(&hand)
		defer mock.SetHand(nil)

		rec := httptest.NewRecorder()
		h.Upload(rec, multipartRequest(t, "file", "image/png", jpeg(t)))
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, "D", resp.Sign)
		assert.True(t, resp.IsAtoF)
		assert.Len(t, resp.Landmarks, detector.NumLandmarks)
	})

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name string
			req  *http.Request
		}{
			{"not an image", multipartRequest(t, "file", "text/plain", []byte("hello"))},
			{"undecodable", multipartRequest(t, "file", "image/jpeg", []byte("not really a jpeg"))},
			{"wrong field", multipartRequest(t, "image", "image/jpeg", jpeg(t))},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := httptest.NewRecorder()
				h.Upload(rec, tt.req)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Contains(t, rec.Body.String(), `"error"`)
			})
		}
	})

	recent, err := st.Predictions().Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2, "only answered predictions are logged")
	assert.Equal(t, "upload", recent[0].Source)
}

func TestPredictBase64(t *testing.T) {
	mock := detector.NewMockDetector()
	hand, _ := detector.SignLandmarks("A")
	mock.SetHand(&hand)
	h := NewPredictHandler(recognizer.New(mock, trainClassifier(t)), nil)

	encoded := base64.StdEncoding.EncodeToString(jpeg(t))
	for _, image := range []string{encoded, "data:image/jpeg;base64," + encoded} {
		body, _ := json.Marshal(base64Request{Image: image})
		rec := httptest.NewRecorder()
		h.Base64(rec, httptest.NewRequest(http.MethodPost, "/predict/base64", bytes.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "A", decode(t, rec).Sign)
	}

	for name, body := range map[string]string{
		"bad json":    `{"image":`,
		"bad base64":  `{"image":"%%%"}`,
		"truncated":   `{"image":"QUJDR"}`,
		"not image":   `{"image":"` + base64.StdEncoding.EncodeToString([]byte("text")) + `"}`,
		"empty image": `{"image":""}`,
	} {
		rec := httptest.NewRecorder()
		h.Base64(rec, httptest.NewRequest(http.MethodPost, "/predict/base64", bytes.NewBufferString(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestDecodeBase64(t *testing.T) {
	want := []byte("landmarks!")
	std := base64.StdEncoding.EncodeToString(want)

	for name, in := range map[string]string{
		"padded":   std,
		"unpadded": strings.TrimRight(std, "="),
		"wrapped":  std[:4] + "\r\n" + std[4:8] + "\n " + std[8:],
	} {
		got, err := decodeBase64(in)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := decodeBase64("QUJDR")
	assert.Error(t, err)
}

func TestPredictBase64Wrapped(t *testing.T) {
	mock := detector.NewMockDetector()
	hand, _ := detector.SignLandmarks("B")
	mock.SetHand(&hand)
	h := NewPredictHandler(recognizer.New(mock, trainClassifier(t)), nil)

	encoded := base64.StdEncoding.EncodeToString(jpeg(t))
	var wrapped strings.Builder
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		wrapped.WriteString(encoded[i:end])
		wrapped.WriteString("\n")
	}

	body, _ := json.Marshal(base64Request{Image: strings.TrimRight(wrapped.String(), "=\n")})
	rec := httptest.NewRecorder()
	h.Base64(rec, httptest.NewRequest(http.MethodPost, "/predict/base64", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "B", decode(t, rec).Sign)
}

func TestPredictDegraded(t *testing.T) {
	mock := detector.NewMockDetector()
	hand, _ := detector.SignLandmarks("A")
	mock.SetHand(&hand)

	for name, clf := range map[string]*classifier.Classifier{
		"no model":    nil,
		"not trained": classifier.New(),
	} {
		h := NewPredictHandler(recognizer.New(mock, clf), nil)
		rec := httptest.NewRecorder()
		h.Upload(rec, multipartRequest(t, "file", "image/jpeg", jpeg(t)))
		require.Equal(t, http.StatusOK, rec.Code, name)
		assert.JSONEq(t, `{"sign":"error","confidence":0,"landmarks":[],"has_hand":true,"is_a_to_f":false}`, rec.Body.String(), name)
	}
}

func TestPredictDetectorFailure(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetError(errors.New("mediapipe crashed"))
	h := NewPredictHandler(recognizer.New(mock, trainClassifier(t)), nil)

	rec := httptest.NewRecorder()
	h.Upload(rec, multipartRequest(t, "file", "image/jpeg", jpeg(t)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
