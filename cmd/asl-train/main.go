package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/ahmedibraahiim/asl/internal/config"
	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/store"
	"github.com/ahmedibraahiim/asl/internal/training"
)

func main() {
	configPath := flag.String("config", "asl.yaml", "path to the YAML config file")
	trainDir := flag.String("train-dir", "data/asl_alphabet_train", "training images, one directory per class")
	testDir := flag.String("test-dir", "", "test images, one directory per class")
	outputDir := flag.String("output-dir", "models", "directory for the model file and reports")
	extract := flag.Bool("extract-landmarks", false, "extract landmarks from the images instead of reusing stored datasets")
	tune := flag.Bool("tune-hyperparams", false, "grid search the forest parameters")
	letters := flag.String("letters", "", "letter set to train: all or a-f (default from config)")
	dbPath := flag.String("db", "", "database path (default from config)")
	writeReport := flag.Bool("report", true, "write confusion matrix, importances and HTML report")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *letters != "" {
		cfg.Letters = *letters
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	tr := &training.Trainer{Store: st}
	if *extract {
		det, err := detector.NewMediaPipeDetector(cfg.Detector(true))
		if err != nil {
			log.Fatalf("Landmark extraction needs MediaPipe: %v", err)
		}
		defer det.Close()
		tr.Detector = det
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := tr.Run(ctx, training.Options{
		TrainDir:  *trainDir,
		TestDir:   *testDir,
		OutputDir: *outputDir,
		Extract:   *extract,
		Tune:      *tune,
		Letters:   cfg.Letters,
		Report:    *writeReport,
	})
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}

	p := res.Train.Params
	fmt.Printf("Trained in %s on %d samples (%d held out)\n", res.Train.Duration.Round(time.Millisecond), res.Train.TrainSize, res.Train.ValidationSize)
	fmt.Printf("Parameters: trees=%d max_depth=%d min_samples_split=%d\n", p.Trees, p.MaxDepth, p.MinSamplesSplit)
	if res.Train.Tuned {
		fmt.Printf("Cross-validation accuracy: %.4f\n", res.Train.CVAccuracy)
	}
	if v := res.Train.Validation; v != nil {
		fmt.Printf("\nValidation\n%s", v)
	}
	if res.Test != nil {
		fmt.Printf("\nTest\n%s", res.Test)
	}
	fmt.Printf("\nModel %s saved to %s\n", res.Model.ID, res.ModelPath)
	for _, a := range res.Artifacts {
		fmt.Printf("Report: %s\n", a)
	}
}
