// Package app runs the live recognition loop: camera frames go through the
// motion gate and the recognizer, and results fan out to subscribers.
package app

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/capture"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
	"github.com/ahmedibraahiim/asl/internal/store"
)

// Loop rates.
const (
	// IdleFPS is the frame rate while the motion gate is closed.
	IdleFPS = 5
	// ActiveFPS is the frame rate while recognizing.
	ActiveFPS = 15
)

// ErrNoFrame is returned by LatestFrame before the first frame is read.
var ErrNoFrame = errors.New("no frame captured yet")

// Config wires the loop together. Gate and Store are optional.
type Config struct {
	Camera     capture.Camera
	Recognizer *recognizer.Recognizer
	Gate       *capture.MotionGate
	Store      *store.Store
}

// Result is one live recognition.
type Result struct {
	recognizer.Response
	Timestamp int64 `json:"timestamp"` // unix milliseconds
}

// App is the live recognizer.
type App struct {
	config Config

	mu       sync.RWMutex
	enabled  bool
	stopCh   chan struct{}
	done     chan struct{}
	last     *Result
	frame    gocv.Mat
	hasFrame bool
	subs     map[int]chan Result
	nextSub  int
}

// New returns a stopped, enabled app.
func New(config Config) *App {
	return &App{
		config:  config,
		enabled: true,
		frame:   gocv.NewMat(),
		subs:    make(map[int]chan Result),
	}
}

// SetEnabled pauses or resumes recognition. Frames are still captured
// while paused so previews keep working.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled reports whether recognition runs.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the camera and runs the loop until Stop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if err := a.config.Camera.Open(); err != nil {
		return err
	}
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(a.stopCh, a.done)

	monitoring.Logf("live recognition started")
	return nil
}

// Stop halts the loop and closes the camera. Subscribers are not closed.
func (a *App) Stop() {
	a.mu.Lock()
	stop, done := a.stopCh, a.done
	a.stopCh, a.done = nil, nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	if err := a.config.Camera.Close(); err != nil {
		monitoring.Logf("close camera: %v", err)
	}
	monitoring.Logf("live recognition stopped")
}

// Close stops the loop and releases the frame buffers.
func (a *App) Close() {
	a.Stop()
	if a.config.Gate != nil {
		a.config.Gate.Close()
	}
	a.mu.Lock()
	a.frame.Close()
	a.hasFrame = false
	a.mu.Unlock()
}

func (a *App) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	active := false
	ticker := time.NewTicker(time.Second / IdleFPS)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		frame, err := a.config.Camera.Read()
		if errors.Is(err, capture.ErrEndOfStream) {
			monitoring.Logf("camera stream ended")
			return
		}
		if err != nil {
			monitoring.Logf("read frame: %v", err)
			continue
		}

		_, recognized := a.ProcessFrame(frame)
		frame.Close()

		if recognized != active {
			active = recognized
			fps := IdleFPS
			if active {
				fps = ActiveFPS
			}
			ticker.Reset(time.Second / time.Duration(fps))
		}
	}
}

// ProcessFrame keeps a copy of frame for LatestFrame, then recognizes it if
// the app is enabled and the motion gate is open. The bool reports whether
// recognition ran.
func (a *App) ProcessFrame(frame *gocv.Mat) (Result, bool) {
	a.mu.Lock()
	frame.CopyTo(&a.frame)
	a.hasFrame = true
	enabled := a.enabled
	a.mu.Unlock()

	if !enabled {
		return Result{}, false
	}
	if a.config.Gate != nil && !a.config.Gate.Allow(frame) {
		return Result{}, false
	}

	resp, err := a.config.Recognizer.RecognizeFrame(frame)
	if err != nil {
		if !resp.HasHand {
			monitoring.Logf("recognize frame: %v", err)
			return Result{}, false
		}
		monitoring.Logf("classify frame: %v", err)
		resp = recognizer.Degraded()
	}

	res := Result{Response: resp, Timestamp: time.Now().UnixMilli()}
	a.publish(res)
	return res, true
}

func (a *App) publish(res Result) {
	a.mu.Lock()
	prev := a.last
	a.last = &res
	for _, ch := range a.subs {
		select {
		case ch <- res:
		default:
		}
	}
	a.mu.Unlock()

	if prev != nil && prev.Sign == res.Sign {
		return
	}
	a.record(res)
}

// record logs sign changes to the prediction table.
func (a *App) record(res Result) {
	if a.config.Store == nil || !res.HasHand {
		return
	}
	err := a.config.Store.Predictions().Create(&store.Prediction{
		ModelID:    a.config.Recognizer.ModelID(),
		Sign:       res.Sign,
		Confidence: res.Confidence,
		HasHand:    res.HasHand,
		Source:     "live",
	})
	if err != nil {
		monitoring.Logf("record live prediction: %v", err)
	}
}

// Last returns the most recent result.
func (a *App) Last() (Result, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return Result{}, false
	}
	return *a.last, true
}

// LatestFrame returns a copy of the last captured frame. The caller must
// Close it.
func (a *App) LatestFrame() (*gocv.Mat, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.hasFrame {
		return nil, ErrNoFrame
	}
	img := a.frame.Clone()
	return &img, nil
}

// Subscribe returns a channel of results and a function that ends the
// subscription. Slow subscribers miss results instead of blocking the loop.
func (a *App) Subscribe() (<-chan Result, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan Result, 8)
	a.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			a.mu.Unlock()
			close(ch)
		})
	}
}
