package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"time"

	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/app"
	"github.com/ahmedibraahiim/asl/internal/capture"
	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/config"
	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
	"github.com/ahmedibraahiim/asl/internal/tray"
)

func main() {
	configPath := flag.String("config", "asl.yaml", "path to the YAML config file")
	modelPath := flag.String("model", "", "model file (default from config)")
	camera := flag.String("camera", "", "camera index or video file (default from config)")
	useTray := flag.Bool("tray", false, "run in the system tray instead of a window")
	dashboard := flag.String("dashboard", "http://localhost:8000/", "URL opened from the tray menu")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}

	det, err := detector.NewMediaPipeDetector(cfg.Detector(false))
	if err != nil {
		log.Fatalf("Failed to start hand detector: %v", err)
	}
	defer det.Close()

	rec := recognizer.New(det, nil)
	if err := reload(rec, cfg.ModelPath); err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}

	opts := capture.Options{Source: fmt.Sprint(cfg.CameraID), Mirror: true}
	if *camera != "" {
		opts.Source = *camera
	}

	cam := capture.NewVideoCamera(opts)
	live := app.New(app.Config{
		Camera:     cam,
		Recognizer: rec,
		Gate:       capture.NewMotionGate(cfg.MotionThresh, capture.DefaultIdle),
	})
	defer live.Close()

	if *useTray {
		runTray(live, rec, cfg.ModelPath, *dashboard)
		return
	}
	if err := runWindow(live, cam); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}
}

func reload(rec *recognizer.Recognizer, path string) error {
	clf, err := classifier.Open(path)
	if err != nil {
		return err
	}
	rec.Swap(clf)
	log.Printf("Loaded model %s (%s)", path, clf.Mapping())
	return nil
}

// runWindow shows the camera with the recognized sign until 'q' is pressed.
// It drives the app frame by frame instead of starting its loop.
func runWindow(live *app.App, cam capture.Camera) error {
	if err := cam.Open(); err != nil {
		return err
	}
	defer cam.Close()

	window := gocv.NewWindow("ASL Recognition")
	defer window.Close()

	var last app.Result
	var fps float64
	prev := time.Now()

	for {
		frame, err := cam.Read()
		if errors.Is(err, capture.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return err
		}

		if res, ok := live.ProcessFrame(frame); ok {
			last = res
		}

		now := time.Now()
		if dt := now.Sub(prev).Seconds(); dt > 0 {
			fps = 0.9*fps + 0.1/dt
		}
		prev = now

		app.DrawLandmarks(frame, last.Response)
		app.DrawOverlay(frame, last.Response)
		app.DrawFPS(frame, fps)
		window.IMShow(*frame)
		frame.Close()

		if window.WaitKey(1) == 'q' {
			return nil
		}
	}
}

func runTray(live *app.App, rec *recognizer.Recognizer, modelPath, dashboard string) {
	t := tray.New()
	t.OnToggle(live.SetEnabled)
	t.OnReload(func() {
		if err := reload(rec, modelPath); err != nil {
			log.Printf("Reload failed: %v", err)
		}
	})
	t.OnOpen(func() {
		if err := openURL(dashboard); err != nil {
			log.Printf("Open %s: %v", dashboard, err)
		}
	})
	t.OnQuit(live.Stop)

	results, cancel := live.Subscribe()
	defer cancel()
	go t.Follow(results)

	if err := live.Start(); err != nil {
		log.Fatalf("Failed to start camera: %v", err)
	}
	t.Run()
}

func openURL(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
