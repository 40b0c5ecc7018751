// Package dataset builds labeled landmark datasets from class-per-directory
// image trees and moves them in and out of the store.
package dataset

import (
	"errors"
	"fmt"

	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/labels"
	"github.com/ahmedibraahiim/asl/internal/store"
)

// Dataset is a set of normalized feature vectors with class indices into Mapping.
type Dataset struct {
	Features []detector.FeatureVector
	Labels   []int
	Sources  []string // image path per sample, may be empty
	Mapping  *labels.Mapping
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Features)
}

// Counts returns the number of samples per class name.
func (d *Dataset) Counts() map[string]int {
	out := make(map[string]int)
	for _, l := range d.Labels {
		name, err := d.Mapping.ToName(l)
		if err != nil {
			continue
		}
		out[name]++
	}
	return out
}

// Restrict keeps the samples whose class name exists in target and
// re-indexes them into target. Classes of target with no samples are
// allowed; the result always uses target as its mapping.
func (d *Dataset) Restrict(target *labels.Mapping) (*Dataset, error) {
	out := &Dataset{Mapping: target}
	for i, l := range d.Labels {
		name, err := d.Mapping.ToName(l)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		idx, err := target.ToIndex(name)
		if errors.Is(err, labels.ErrUnknownKey) {
			continue
		}
		out.Features = append(out.Features, d.Features[i])
		out.Labels = append(out.Labels, idx)
		if i < len(d.Sources) {
			out.Sources = append(out.Sources, d.Sources[i])
		}
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("no samples for classes %s", target)
	}
	return out, nil
}

// Save stores the dataset under name, replacing an older one. failed is the
// number of images that produced no sample.
func (d *Dataset) Save(st *store.Store, name, sourceDir string, failed int) (*store.Dataset, error) {
	samples := make([]store.Sample, d.Len())
	for i := range d.Features {
		samples[i] = store.Sample{Label: d.Labels[i], Features: d.Features[i]}
		if i < len(d.Sources) {
			samples[i].Source = d.Sources[i]
		}
	}
	rec := &store.Dataset{
		Name:      name,
		Labels:    d.Mapping.Names(),
		SourceDir: sourceDir,
		Failed:    failed,
	}
	if err := st.Datasets().Save(rec, samples); err != nil {
		return nil, fmt.Errorf("save dataset %s: %w", name, err)
	}
	return rec, nil
}

// Load reads the dataset stored under name.
func Load(st *store.Store, name string) (*Dataset, *store.Dataset, error) {
	rec, err := st.Datasets().GetByName(name)
	if err != nil {
		return nil, nil, fmt.Errorf("load dataset %s: %w", name, err)
	}
	mapping, err := labels.New(rec.Labels)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset %s labels: %w", name, err)
	}
	samples, err := st.Datasets().Samples(rec.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load samples of %s: %w", name, err)
	}

	d := &Dataset{Mapping: mapping}
	for _, s := range samples {
		if len(s.Features) != detector.FeatureSize {
			return nil, nil, &detector.MalformedInputError{
				What: "stored sample",
				Got:  fmt.Sprintf("%s sample %d has %d features", name, s.Index, len(s.Features)),
			}
		}
		if !mapping.Contains(s.Label) {
			return nil, nil, fmt.Errorf("%s sample %d: %w", name, s.Index, &labels.UnknownKeyError{Key: fmt.Sprint(s.Label)})
		}
		d.Features = append(d.Features, s.Features)
		d.Labels = append(d.Labels, s.Label)
		d.Sources = append(d.Sources, s.Source)
	}
	return d, rec, nil
}
