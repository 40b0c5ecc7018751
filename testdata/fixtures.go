// Package testdata generates synthetic hands, datasets and images for tests.
package testdata

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/labels"
)

// Jitter returns a copy of h with every coordinate moved by uniform noise in
// [-amount, amount], then shifted and scaled as a whole the way a hand moves
// around the frame.
func Jitter(h detector.HandLandmarks, rng *rand.Rand, amount float64) detector.HandLandmarks {
	out := h
	dx := (rng.Float64() - 0.5) * 0.2
	dy := (rng.Float64() - 0.5) * 0.2
	scale := 0.8 + rng.Float64()*0.4
	for i, p := range h.Points {
		out.Points[i] = detector.Point3D{
			X: (p.X+noise(rng, amount))*scale + dx,
			Y: (p.Y+noise(rng, amount))*scale + dy,
			Z: (p.Z + noise(rng, amount)) * scale,
		}
	}
	return out
}

func noise(rng *rand.Rand, amount float64) float64 {
	return (rng.Float64()*2 - 1) * amount
}

// SignHand returns a jittered preset hand for letter. It panics for letters
// without a preset.
func SignHand(letter string, rng *rand.Rand) detector.HandLandmarks {
	h, ok := detector.SignLandmarks(letter)
	if !ok {
		panic(fmt.Sprintf("testdata: no preset for %q", letter))
	}
	return Jitter(h, rng, 0.008)
}

// SignDataset builds perClass normalized samples for each letter, labeled by
// letter position.
func SignDataset(letters []string, perClass int, seed int64) ([]detector.FeatureVector, []int, *labels.Mapping) {
	mapping, err := labels.New(letters)
	if err != nil {
		panic(err)
	}
	rng := rand.New(rand.NewSource(seed))
	var features []detector.FeatureVector
	var y []int
	for i, letter := range letters {
		for j := 0; j < perClass; j++ {
			h := SignHand(letter, rng)
			features = append(features, detector.Normalize(&h))
			y = append(y, i)
		}
	}
	return features, y, mapping
}

// Frame returns a blank 64x64 BGR frame. The caller must Close it.
func Frame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 80, 120, 0), 64, 64, gocv.MatTypeCV8UC3)
}

// EncodedFrame returns Frame encoded with the given extension (".jpg", ".png").
func EncodedFrame(ext gocv.FileExt) ([]byte, error) {
	img := Frame()
	defer img.Close()

	buf, err := gocv.IMEncode(ext, img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// WriteImageTree writes perClass images into dir/<class>/ for every class,
// the layout the dataset builder reads.
func WriteImageTree(dir string, classes []string, perClass int) error {
	img := Frame()
	defer img.Close()

	for _, class := range classes {
		classDir := filepath.Join(dir, class)
		if err := os.MkdirAll(classDir, 0o755); err != nil {
			return err
		}
		for i := 0; i < perClass; i++ {
			path := filepath.Join(classDir, fmt.Sprintf("%s%d.jpg", class, i))
			if ok := gocv.IMWrite(path, img); !ok {
				return fmt.Errorf("write %s", path)
			}
		}
	}
	return nil
}
