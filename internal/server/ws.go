package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ahmedibraahiim/asl/internal/app"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the middleware
	},
}

// LiveHandler pushes live recognition results over a WebSocket.
type LiveHandler struct {
	live *app.App
}

// NewLiveHandler returns a handler streaming results of live.
func NewLiveHandler(live *app.App) *LiveHandler {
	return &LiveHandler{live: live}
}

// ServeHTTP upgrades the connection and writes one JSON message per result
// until the client goes away.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	results, cancel := h.live.Subscribe()
	defer cancel()

	// The read loop notices client close frames.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if last, ok := h.live.Last(); ok {
		if err := h.write(conn, last); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			if err := h.write(conn, res); err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) write(conn *websocket.Conn, res app.Result) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(res)
}
