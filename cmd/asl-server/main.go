package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/ahmedibraahiim/asl/internal/app"
	"github.com/ahmedibraahiim/asl/internal/capture"
	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/config"
	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
	"github.com/ahmedibraahiim/asl/internal/server"
	"github.com/ahmedibraahiim/asl/internal/store"
)

func main() {
	configPath := flag.String("config", "asl.yaml", "path to the YAML config file")
	live := flag.Bool("live", false, "run the camera loop and serve /api/live and /api/stream")
	flag.Parse()

	fmt.Println("ASL - Sign Recognition Service")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	det, liveDet, err := openDetectors(cfg, *live)
	if err != nil {
		log.Fatalf("Failed to start hand detector: %v", err)
	}
	defer det.Close()

	rec := recognizer.New(det, nil)
	loadModel(rec, st, cfg.ModelPath)

	var liveApp *app.App
	if *live {
		defer liveDet.Close()

		liveApp = app.New(app.Config{
			Camera:     capture.NewCamera(cfg.CameraID),
			Recognizer: rec.WithDetector(liveDet),
			Gate:       capture.NewMotionGate(cfg.MotionThresh, capture.DefaultIdle),
			Store:      st,
		})
		if err := liveApp.Start(); err != nil {
			log.Fatalf("Failed to start camera %d: %v", cfg.CameraID, err)
		}
		defer liveApp.Close()
	}

	webDir := cfg.StaticDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:   webDir,
		Store:       st,
		Recognizer:  rec,
		ModelPath:   cfg.ModelPath,
		Live:        liveApp,
		CORSOrigins: cfg.CORSOrigins,
	})

	fmt.Printf("Starting server on %s\n", cfg.HTTPAddr)
	if err := srv.ListenAndServe(cfg.HTTPAddr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// openDetectors starts the MediaPipe bridges: a static one for uploads,
// which are unrelated stills, and with live set a tracking one for the
// camera loop. Without MediaPipe every image would look handless, so a
// missing bridge is an error rather than a fallback.
func openDetectors(cfg config.Config, live bool) (still, tracking detector.Detector, err error) {
	still, err = detector.NewMediaPipeDetector(cfg.Detector(true))
	if err != nil {
		return nil, nil, err
	}
	if !live {
		return still, nil, nil
	}
	tracking, err = detector.NewMediaPipeDetector(cfg.Detector(false))
	if err != nil {
		still.Close()
		return nil, nil, err
	}
	return still, tracking, nil
}

// loadModel installs the model at path. A missing or broken file leaves
// the recognizer empty; predictions then degrade instead of failing.
func loadModel(rec *recognizer.Recognizer, st *store.Store, path string) {
	clf, err := classifier.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("No model at %s, train one with asl-train", path)
		return
	case err != nil:
		log.Printf("Failed to load model %s: %v", path, err)
		return
	}

	var id string
	if m, err := st.Models().Latest(path); err == nil {
		id = m.ID
	}
	rec.SwapModel(clf, id)
	fmt.Printf("Loaded model %s (%d classes)\n", path, clf.Mapping().Len())
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.asl/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".asl", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
