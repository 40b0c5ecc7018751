package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrInvalidImage is returned when image bytes cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

// DecodeImage decodes encoded image bytes (JPEG, PNG, ...) into a BGR Mat.
// The caller must Close the returned Mat unless an error is returned.
func DecodeImage(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, ErrInvalidImage
	}
	return img, nil
}

// ReadImage loads an image file from disk into a BGR Mat.
// The caller must Close the returned Mat unless an error is returned.
func ReadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%w: %s", ErrInvalidImage, path)
	}
	return img, nil
}

// DetectImage decodes data and runs the detector on it.
func DetectImage(d Detector, data []byte) (*HandLandmarks, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return d.Detect(&img)
}
