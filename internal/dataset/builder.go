package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/labels"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Failure records an image that produced no sample.
type Failure struct {
	Path   string
	Reason string
}

// Builder extracts landmarks from images laid out as <dir>/<class>/<image>.
type Builder struct {
	Detector detector.Detector

	// ReadImage loads an image; nil uses detector.ReadImage.
	ReadImage func(path string) (gocv.Mat, error)
}

// Build walks dir and returns one sample per image in which a hand was
// found. With a nil mapping the classes are the sorted subdirectory names;
// otherwise subdirectories outside mapping are skipped.
func (b *Builder) Build(ctx context.Context, dir string, mapping *labels.Mapping) (*Dataset, []Failure, error) {
	if mapping == nil {
		m, err := labels.FromDirectories(dir)
		if err != nil {
			return nil, nil, err
		}
		mapping = m
	}

	read := b.ReadImage
	if read == nil {
		read = detector.ReadImage
	}

	d := &Dataset{Mapping: mapping}
	var failed []Failure

	for idx, class := range mapping.Names() {
		classDir := filepath.Join(dir, class)
		images, err := listImages(classDir)
		if os.IsNotExist(err) {
			monitoring.Logf("dataset: no directory for class %s", class)
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		monitoring.Logf("dataset: processing class %s (%d images)", class, len(images))
		for _, path := range images {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			fv, reason := b.extract(read, path)
			if fv == nil {
				failed = append(failed, Failure{Path: path, Reason: reason})
				continue
			}
			d.Features = append(d.Features, fv)
			d.Labels = append(d.Labels, idx)
			d.Sources = append(d.Sources, filepath.Join(class, filepath.Base(path)))
		}
	}

	if d.Len() == 0 {
		return nil, failed, fmt.Errorf("no hands found in %s", dir)
	}
	monitoring.Logf("dataset: %d samples, %d failed images", d.Len(), len(failed))
	return d, failed, nil
}

func (b *Builder) extract(read func(string) (gocv.Mat, error), path string) (detector.FeatureVector, string) {
	img, err := read(path)
	if err != nil {
		return nil, err.Error()
	}
	defer img.Close()

	hand, err := b.Detector.Detect(&img)
	if err != nil {
		return nil, err.Error()
	}
	if hand == nil {
		return nil, "no hand detected"
	}
	return detector.Normalize(hand), ""
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
