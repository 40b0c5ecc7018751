package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/forest"
	"github.com/ahmedibraahiim/asl/internal/labels"
)

const modelVersion = 1

// modelFile is the on-disk record. Mapping and Forest are required.
type modelFile struct {
	Version   int             `json:"version"`
	TrainedAt time.Time       `json:"trained_at"`
	Mapping   *labels.Mapping `json:"label_mapping"`
	Forest    *forest.Forest  `json:"model"`
}

// Save writes the trained model and its label mapping to path. The file is
// written to a temporary sibling and renamed into place.
func (c *Classifier) Save(path string) error {
	c.mu.RLock()
	if c.model == nil {
		c.mu.RUnlock()
		return ErrNotTrained
	}
	data, err := json.Marshal(modelFile{
		Version:   modelVersion,
		TrainedAt: c.trainedAt,
		Mapping:   c.mapping,
		Forest:    c.model,
	})
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp model: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename model: %w", err)
	}
	return nil
}

// Load replaces the classifier state with the model stored at path.
// On any error the previous state is kept.
func (c *Classifier) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return &CorruptModelError{Path: path, Reason: "undecodable payload", Err: err}
	}
	if mf.Version != modelVersion {
		return &CorruptModelError{Path: path, Reason: fmt.Sprintf("unsupported version %d", mf.Version)}
	}
	if mf.Forest == nil {
		return &CorruptModelError{Path: path, Reason: "missing model"}
	}
	if mf.Mapping == nil {
		return &CorruptModelError{Path: path, Reason: "missing label mapping"}
	}
	if err := mf.Forest.Validate(); err != nil {
		return &CorruptModelError{Path: path, Reason: "invalid forest", Err: err}
	}
	if mf.Forest.Classes != mf.Mapping.Len() {
		return &CorruptModelError{
			Path:   path,
			Reason: fmt.Sprintf("forest has %d classes but mapping has %d", mf.Forest.Classes, mf.Mapping.Len()),
		}
	}
	if mf.Forest.Features != detector.FeatureSize {
		return &CorruptModelError{
			Path:   path,
			Reason: fmt.Sprintf("forest expects %d features, want %d", mf.Forest.Features, detector.FeatureSize),
		}
	}

	c.mu.Lock()
	c.model = mf.Forest
	c.mapping = mf.Mapping
	c.trainedAt = mf.TrainedAt
	c.mu.Unlock()
	return nil
}

// Open loads a classifier from path.
func Open(path string, opts ...Option) (*Classifier, error) {
	c := New(opts...)
	if err := c.Load(path); err != nil {
		return nil, err
	}
	return c, nil
}
