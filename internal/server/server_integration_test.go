package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/app"
	"github.com/ahmedibraahiim/asl/internal/capture"
	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
	"github.com/ahmedibraahiim/asl/internal/store"
	"github.com/ahmedibraahiim/asl/testdata"
)

func uploadBody(t *testing.T, data []byte, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="hand.jpg"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(data)
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestAPI_PredictAndReloadWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "asl.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	modelPath := filepath.Join(dir, "asl_a_to_f_model.json")
	mock := detector.NewMockDetector()
	rec := recognizer.New(mock, nil)
	ts := httptest.NewServer(New(Config{Store: st, Recognizer: rec, ModelPath: modelPath}))
	defer ts.Close()
	client := ts.Client()

	img, err := testdata.EncodedFrame(gocv.JPEGFileExt)
	if err != nil {
		t.Fatal(err)
	}
	hand, _ := detector.SignLandmarks("F")
	mock.SetHand(&hand)

	predict := func() recognizer.Response {
		t.Helper()
		body, ct := uploadBody(t, img, "image/jpeg")
		resp, err := client.Post(ts.URL+"/predict", ct, body)
		if err != nil {
			t.Fatalf("POST /predict error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST /predict status = %d", resp.StatusCode)
		}
		var out recognizer.Response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out
	}

	// 1. No model yet: degraded response.
	if got := predict(); got.Sign != recognizer.ErrorSign || !got.HasHand {
		t.Errorf("expected degraded response, got %+v", got)
	}

	// 2. Reload without a file.
	resp, _ := client.Post(ts.URL+"/api/models/reload", "application/json", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("reload without file status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()

	// 3. Train, save, register and reload.
	clf := trainClassifier(t)
	if err := clf.Save(modelPath); err != nil {
		t.Fatalf("save: %v", err)
	}
	entry := &store.Model{Path: modelPath, Letters: "a-f"}
	if err := st.Models().Create(entry); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err = client.Post(ts.URL+"/api/models/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	var reloaded struct {
		Loaded  bool     `json:"loaded"`
		ModelID string   `json:"model_id"`
		Labels  []string `json:"labels"`
	}
	json.NewDecoder(resp.Body).Decode(&reloaded)
	resp.Body.Close()
	if !reloaded.Loaded || reloaded.ModelID != entry.ID || len(reloaded.Labels) != 6 {
		t.Fatalf("unexpected reload response %+v", reloaded)
	}

	// 4. Predict with the model.
	got := predict()
	if got.Sign != "F" || !got.IsAtoF || len(got.Landmarks) != detector.NumLandmarks {
		t.Errorf("unexpected prediction %+v", got)
	}

	// 5. Predictions were logged with the model id.
	recent, err := st.Predictions().Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].ModelID != entry.ID || recent[1].Sign != recognizer.ErrorSign {
		t.Errorf("unexpected prediction log %+v", recent)
	}

	// 6. Health reports the model.
	resp, _ = client.Get(ts.URL + "/health")
	var health healthResponse
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if !health.ModelLoaded || health.ModelID != entry.ID {
		t.Errorf("unexpected health %+v", health)
	}
}

func newLiveServer(t *testing.T, letter string) (*httptest.Server, *app.App) {
	t.Helper()
	mock := detector.NewMockDetector()
	hand, _ := detector.SignLandmarks(letter)
	mock.SetHand(&hand)

	frame := testdata.Frame()
	t.Cleanup(func() { frame.Close() })

	live := app.New(app.Config{
		Camera:     capture.NewReplayCamera([]gocv.Mat{frame}, true),
		Recognizer: recognizer.New(mock, trainClassifier(t)),
	})
	if err := live.Start(); err != nil {
		t.Fatalf("start live: %v", err)
	}
	t.Cleanup(live.Close)

	ts := httptest.NewServer(New(Config{Recognizer: recognizer.New(mock, nil), Live: live}))
	t.Cleanup(ts.Close)
	return ts, live
}

func TestLive_WebSocket(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ts, _ := newLiveServer(t, "B")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var res app.Result
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Sign != "B" || res.Timestamp == 0 {
		t.Errorf("unexpected live result %+v", res)
	}
}

func TestLive_Stream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ts, _ := newLiveServer(t, "A")

	resp, err := ts.Client().Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("unexpected content type %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(line) != "--frame" {
		t.Errorf("expected frame boundary, got %q", line)
	}
	line, _ = r.ReadString('\n')
	if strings.TrimSpace(line) != "Content-Type: image/jpeg" {
		t.Errorf("expected jpeg part, got %q", line)
	}
}

func TestLive_ReloadReachesCameraLoop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	modelPath := filepath.Join(t.TempDir(), "asl_model.json")
	if err := trainClassifier(t).Save(modelPath); err != nil {
		t.Fatalf("save: %v", err)
	}

	still := detector.NewMockDetector()
	tracking := detector.NewMockDetector()
	hand, _ := detector.SignLandmarks("C")
	tracking.SetHand(&hand)

	rec := recognizer.New(still, nil)
	frame := testdata.Frame()
	t.Cleanup(func() { frame.Close() })
	live := app.New(app.Config{
		Camera:     capture.NewReplayCamera([]gocv.Mat{frame}, true),
		Recognizer: rec.WithDetector(tracking),
	})
	results, cancel := live.Subscribe()
	defer cancel()
	if err := live.Start(); err != nil {
		t.Fatalf("start live: %v", err)
	}
	t.Cleanup(live.Close)

	ts := httptest.NewServer(New(Config{Recognizer: rec, ModelPath: modelPath, Live: live}))
	t.Cleanup(ts.Close)

	resp, err := ts.Client().Post(ts.URL+"/api/models/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reload status = %d", resp.StatusCode)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case res := <-results:
			if res.Sign == "C" {
				if still.Calls() != 0 {
					t.Errorf("camera frames went through the upload detector")
				}
				return
			}
		case <-deadline:
			t.Fatal("camera loop never used the reloaded model")
		}
	}
}
