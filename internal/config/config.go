// Package config loads the service and demo settings from a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahmedibraahiim/asl/internal/detector"
)

// Letter sets a model can be trained on.
const (
	LettersAll  = "all"
	LettersAtoF = "a-f"
)

// Config holds every tunable of the binaries.
type Config struct {
	HTTPAddr       string   `yaml:"http_addr"`
	ModelPath      string   `yaml:"model_path"`
	DBPath         string   `yaml:"db_path"`
	StaticDir      string   `yaml:"static_dir"`
	Letters        string   `yaml:"letters"`
	CameraID       int      `yaml:"camera_id"`
	MinConfidence  float64  `yaml:"min_detection_confidence"`
	DetectorScript string   `yaml:"detector_script"`
	PythonPath     string   `yaml:"python_path"`
	MotionThresh   float64  `yaml:"motion_threshold"`
	CORSOrigins    []string `yaml:"cors_origins"`
}

// Default returns the built-in configuration. ModelPath is left empty;
// Load fills it from Letters.
func Default() Config {
	return Config{
		HTTPAddr:      ":8000",
		DBPath:        filepath.Join("~", ".asl", "asl.db"),
		Letters:       LettersAll,
		MinConfidence: 0.5,
		MotionThresh:  0.02,
		CORSOrigins:   []string{"*"},
	}
}

// Load reads path over the defaults, then applies ASL_* environment
// overrides. A missing file is not an error; an empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.HTTPAddr = getEnv("ASL_HTTP_ADDR", cfg.HTTPAddr)
	cfg.ModelPath = getEnv("ASL_MODEL_PATH", cfg.ModelPath)
	cfg.DBPath = getEnv("ASL_DB_PATH", cfg.DBPath)
	cfg.DetectorScript = getEnv("ASL_DETECTOR_SCRIPT", cfg.DetectorScript)

	cfg.Letters = strings.ToLower(cfg.Letters)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if cfg.ModelPath == "" {
		cfg.ModelPath = filepath.Join("models", ModelFileName(cfg.Letters))
	}
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.ModelPath = expandHome(cfg.ModelPath)
	return cfg, nil
}

// ModelFileName returns the model file trained for a letter set.
func ModelFileName(letters string) string {
	if letters == LettersAtoF {
		return "asl_a_to_f_model.json"
	}
	return "asl_model.json"
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Letters != LettersAll && c.Letters != LettersAtoF {
		return fmt.Errorf("letters must be %q or %q, got %q", LettersAll, LettersAtoF, c.Letters)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_detection_confidence must be in [0,1], got %v", c.MinConfidence)
	}
	if c.MotionThresh < 0 || c.MotionThresh > 1 {
		return fmt.Errorf("motion_threshold must be in [0,1], got %v", c.MotionThresh)
	}
	if c.CameraID < 0 {
		return fmt.Errorf("camera_id must not be negative, got %d", c.CameraID)
	}
	return nil
}

// Detector returns the hand detector settings. Still images (dataset
// extraction, uploads) use static mode; the camera loop tracks between frames.
func (c Config) Detector(static bool) detector.Config {
	d := detector.DefaultConfig()
	d.MinConfidence = c.MinConfidence
	d.StaticImageMode = static
	d.ScriptPath = c.DetectorScript
	d.PythonPath = c.PythonPath
	return d
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
