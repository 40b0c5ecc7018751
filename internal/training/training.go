// Package training runs a complete training session: landmark extraction
// or dataset reload, forest training, evaluation on the test split, model
// file output, registry entry and report artifacts.
package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/config"
	"github.com/ahmedibraahiim/asl/internal/dataset"
	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/labels"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
	"github.com/ahmedibraahiim/asl/internal/report"
	"github.com/ahmedibraahiim/asl/internal/store"
)

// Stored dataset names.
const (
	TrainSet = "train"
	TestSet  = "test"
)

// Options selects what a session does.
type Options struct {
	TrainDir  string
	TestDir   string // optional
	OutputDir string
	Extract   bool   // rebuild datasets from images instead of loading them from the store
	Tune      bool   // grid search the forest parameters
	Letters   string // config.LettersAll or config.LettersAtoF
	Report    bool   // write PNG and HTML artifacts next to the model
}

// Result describes a finished session.
type Result struct {
	ModelPath  string
	Model      *store.Model
	Train      *classifier.TrainReport
	Test       *classifier.Evaluation // nil without a test set
	Classifier *classifier.Classifier
	Artifacts  []string
}

// Trainer runs sessions against a store. Detector is needed only when
// extracting landmarks.
type Trainer struct {
	Store    *store.Store
	Detector detector.Detector

	// ReadImage overrides how dataset images are loaded.
	ReadImage func(path string) (gocv.Mat, error)

	// ClassifierOptions configure every new classifier.
	ClassifierOptions []classifier.Option
}

// ModelFileName returns the model file written for a letter set.
func ModelFileName(letters string) string {
	return config.ModelFileName(letters)
}

// Run executes one session.
func (t *Trainer) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Letters == "" {
		opts.Letters = config.LettersAll
	}
	if opts.Letters != config.LettersAll && opts.Letters != config.LettersAtoF {
		return nil, fmt.Errorf("unknown letter set %q", opts.Letters)
	}

	train, trainMeta, test, err := t.datasets(ctx, opts)
	if err != nil {
		return nil, err
	}

	if opts.Letters == config.LettersAtoF {
		if train, err = train.Restrict(labels.AtoF()); err != nil {
			return nil, fmt.Errorf("restrict training set: %w", err)
		}
	}
	monitoring.Logf("training on %d samples of %s", train.Len(), train.Mapping)

	clf := classifier.New(t.ClassifierOptions...)
	tr, err := clf.Train(train.Features, train.Labels, train.Mapping, opts.Tune)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ModelPath:  filepath.Join(opts.OutputDir, ModelFileName(opts.Letters)),
		Train:      tr,
		Classifier: clf,
	}

	if test != nil {
		res.Test, err = t.evaluateTest(clf, test, train.Mapping)
		if err != nil {
			return nil, err
		}
	}

	if err := clf.Save(res.ModelPath); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	monitoring.Logf("model saved to %s", res.ModelPath)

	if res.Model, err = t.register(res, opts, trainMeta); err != nil {
		return nil, err
	}

	if opts.Report {
		if res.Artifacts, err = writeArtifacts(res, opts); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (t *Trainer) datasets(ctx context.Context, opts Options) (train *dataset.Dataset, meta *store.Dataset, test *dataset.Dataset, err error) {
	if !opts.Extract {
		train, meta, err = dataset.Load(t.Store, TrainSet)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w (run with landmark extraction first)", err)
		}
		test, _, err = dataset.Load(t.Store, TestSet)
		if errors.Is(err, store.ErrNotFound) {
			return train, meta, nil, nil
		}
		if err != nil {
			return nil, nil, nil, err
		}
		return train, meta, test, nil
	}

	if t.Detector == nil {
		return nil, nil, nil, errors.New("landmark extraction needs a hand detector")
	}
	b := &dataset.Builder{Detector: t.Detector, ReadImage: t.ReadImage}

	train, meta, err = t.extract(ctx, b, TrainSet, opts.TrainDir)
	if err != nil {
		return nil, nil, nil, err
	}
	if opts.TestDir != "" {
		test, _, err = t.extract(ctx, b, TestSet, opts.TestDir)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return train, meta, test, nil
}

func (t *Trainer) extract(ctx context.Context, b *dataset.Builder, name, dir string) (*dataset.Dataset, *store.Dataset, error) {
	if dir == "" {
		return nil, nil, fmt.Errorf("no image directory for the %s set", name)
	}
	ds, failed, err := b.Build(ctx, dir, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("extract %s set: %w", name, err)
	}
	for _, f := range failed {
		monitoring.Logf("%s: skipped %s: %s", name, f.Path, f.Reason)
	}
	meta, err := ds.Save(t.Store, name, dir, len(failed))
	if err != nil {
		return nil, nil, err
	}
	return ds, meta, nil
}

// evaluateTest scores clf on the test samples of the trained classes.
func (t *Trainer) evaluateTest(clf *classifier.Classifier, test *dataset.Dataset, mapping *labels.Mapping) (*classifier.Evaluation, error) {
	sub, err := test.Restrict(mapping)
	if err != nil {
		monitoring.Logf("test set has no samples of %s, skipping evaluation", mapping)
		return nil, nil
	}
	ev, err := clf.Evaluate(sub.Features, sub.Labels)
	if err != nil {
		return nil, fmt.Errorf("evaluate test set: %w", err)
	}
	monitoring.Logf("test accuracy: %.4f", ev.Accuracy)
	return ev, nil
}

func (t *Trainer) register(res *Result, opts Options, meta *store.Dataset) (*store.Model, error) {
	params, err := json.Marshal(res.Train.Params)
	if err != nil {
		return nil, err
	}

	m := &store.Model{
		Path:       res.ModelPath,
		Letters:    opts.Letters,
		Params:     params,
		Tuned:      res.Train.Tuned,
		CVAccuracy: res.Train.CVAccuracy,
	}
	if meta != nil {
		m.DatasetID = meta.ID
	}
	if v := res.Train.Validation; v != nil {
		m.ValidationAccuracy = v.Accuracy
		if m.Report, err = json.Marshal(v); err != nil {
			return nil, err
		}
	}
	if err := t.Store.Models().Create(m); err != nil {
		return nil, fmt.Errorf("register model: %w", err)
	}

	if res.Test != nil {
		data, err := json.Marshal(res.Test)
		if err != nil {
			return nil, err
		}
		if err := t.Store.Models().SetTestResult(m.ID, res.Test.Accuracy, data); err != nil {
			return nil, fmt.Errorf("record test result: %w", err)
		}
		m.TestAccuracy = res.Test.Accuracy
		m.Report = data
	}
	return m, nil
}

// writeArtifacts renders the test evaluation, or the validation one when
// there is no test set.
func writeArtifacts(res *Result, opts Options) ([]string, error) {
	ev := res.Test
	split := "test"
	if ev == nil {
		ev, split = res.Train.Validation, "validation"
	}
	if ev == nil {
		monitoring.Logf("no evaluation to report")
		return nil, nil
	}

	prefix := ""
	if opts.Letters == config.LettersAtoF {
		prefix = "a_to_f_"
	}
	name := func(s string) string { return filepath.Join(opts.OutputDir, prefix+s) }

	importances, err := res.Classifier.FeatureImportances()
	if err != nil {
		return nil, err
	}

	var out []string
	confusion := name("confusion_matrix.png")
	if err := report.ConfusionPNG(ev, confusion); err != nil {
		return nil, fmt.Errorf("confusion plot: %w", err)
	}
	out = append(out, confusion)

	imp := name("feature_importances.png")
	if err := report.ImportancesPNG(importances, imp); err != nil {
		return nil, fmt.Errorf("importance plot: %w", err)
	}
	out = append(out, imp)

	html := name("report.html")
	f, err := os.Create(html)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	page := report.Page{
		Title:       "ASL model " + res.Model.ID,
		Subtitle:    fmt.Sprintf("%s accuracy %.4f", split, ev.Accuracy),
		Evaluation:  ev,
		Importances: importances,
	}
	if err := report.WriteHTML(f, page); err != nil {
		return nil, fmt.Errorf("html report: %w", err)
	}
	out = append(out, html)

	for _, p := range out {
		monitoring.Logf("wrote %s", p)
	}
	return out, nil
}
