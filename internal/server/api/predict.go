package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
	"github.com/ahmedibraahiim/asl/internal/store"
)

// MaxUploadSize bounds image uploads.
const MaxUploadSize = 10 << 20

// PredictHandler serves single-image predictions.
type PredictHandler struct {
	rec   *recognizer.Recognizer
	store *store.Store
}

// NewPredictHandler returns a handler over rec. st may be nil, in which case
// predictions are not recorded.
func NewPredictHandler(rec *recognizer.Recognizer, st *store.Store) *PredictHandler {
	return &PredictHandler{rec: rec, store: st}
}

type base64Request struct {
	Image string `json:"image"`
}

// Upload handles POST /predict with a multipart "file" field.
func (h *PredictHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		writeError(w, http.StatusBadRequest, "File must be an image")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	h.predict(w, data, "upload")
}

// Base64 handles POST /predict/base64 with a JSON {"image": "..."} body.
// Data URLs are accepted.
func (h *PredictHandler) Base64(w http.ResponseWriter, r *http.Request) {
	var req base64Request
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxUploadSize*2)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	payload := req.Image
	if i := strings.Index(payload, ","); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}
	data, err := decodeBase64(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid base64 image")
		return
	}
	h.predict(w, data, "base64")
}

// decodeBase64 decodes standard base64 leniently: bytes outside the
// alphabet (line breaks, spaces) are skipped and padding is optional.
func decodeBase64(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/':
			return r
		}
		return -1
	}, s)
	return base64.RawStdEncoding.DecodeString(clean)
}

func (h *PredictHandler) predict(w http.ResponseWriter, data []byte, source string) {
	resp, err := h.rec.RecognizeImage(data)
	switch {
	case errors.Is(err, detector.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, "Invalid image format")
		return
	case err != nil && !resp.HasHand:
		monitoring.Logf("predict %s: %v", source, err)
		writeError(w, http.StatusInternalServerError, "Error processing image")
		return
	case err != nil:
		monitoring.Logf("predict %s: classifier unavailable: %v", source, err)
		resp = recognizer.Degraded()
	}

	h.record(resp, source)
	writeJSON(w, http.StatusOK, resp)
}

func (h *PredictHandler) record(resp recognizer.Response, source string) {
	if h.store == nil {
		return
	}
	err := h.store.Predictions().Create(&store.Prediction{
		ModelID:    h.rec.ModelID(),
		Sign:       resp.Sign,
		Confidence: resp.Confidence,
		HasHand:    resp.HasHand,
		Source:     source,
	})
	if err != nil {
		monitoring.Logf("record prediction: %v", err)
	}
}
