package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/app"
)

const streamInterval = 66 * time.Millisecond // ~15 FPS

// StreamHandler serves the live camera preview as MJPEG with the hand
// skeleton and current sign drawn on it.
type StreamHandler struct {
	live *app.App
}

// NewStreamHandler returns a preview handler over live.
func NewStreamHandler(live *app.App) *StreamHandler {
	return &StreamHandler{live: live}
}

// ServeHTTP streams frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame, err := h.live.LatestFrame()
		if err != nil {
			continue
		}
		if last, ok := h.live.Last(); ok {
			app.DrawLandmarks(frame, last.Response)
			app.DrawOverlay(frame, last.Response)
		}

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
		frame.Close()
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		_, werr := w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()
		if werr != nil {
			return
		}

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
