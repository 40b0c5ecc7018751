package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ahmedibraahiim/asl/internal/app"
	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/config"
	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
)

const help = `Enter an image path to recognize it.
  :json    toggle JSON output
  :reload  load the model file again
  :quit    exit`

func main() {
	err := mainImpl()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainImpl() error {
	cfg, err := config.Load("asl.yaml")
	if err != nil {
		return err
	}
	monitoring.SetLogger(nil)

	det, err := detector.NewMediaPipeDetector(cfg.Detector(true))
	if err != nil {
		return err
	}
	defer func() {
		_ = det.Close()
	}()

	rec := recognizer.New(det, nil)
	if err := load(rec, cfg.ModelPath); err != nil {
		return err
	}

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	fmt.Println(help)
	asJSON := false
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case ":quit":
			return nil
		case ":json":
			asJSON = !asJSON
			continue
		case ":reload":
			if err := load(rec, cfg.ModelPath); err != nil {
				fmt.Println(err)
			}
			continue
		}

		resp, err := recognize(rec, line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if asJSON {
			out, _ := json.Marshal(resp)
			fmt.Println(string(out))
		} else {
			fmt.Println(app.OverlayText(resp))
		}
	}
	return nil
}

func load(rec *recognizer.Recognizer, path string) error {
	clf, err := classifier.Open(path)
	if err != nil {
		return err
	}
	rec.Swap(clf)
	fmt.Printf("model %s: %s\n", path, clf.Mapping())
	return nil
}

func recognize(rec *recognizer.Recognizer, path string) (recognizer.Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return recognizer.Response{}, err
	}
	resp, err := rec.RecognizeImage(data)
	if err != nil && resp.HasHand {
		return recognizer.Degraded(), nil
	}
	return resp, err
}
