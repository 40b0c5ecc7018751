package app

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
)

var (
	signColor  = color.RGBA{0, 255, 0, 0}
	warnColor  = color.RGBA{0, 0, 255, 0}
	infoColor  = color.RGBA{255, 255, 255, 0}
	boneColor  = color.RGBA{255, 255, 255, 0}
	jointColor = color.RGBA{0, 0, 255, 0}
)

// OverlayText is the caption drawn for resp.
func OverlayText(resp recognizer.Response) string {
	switch {
	case resp.Sign == recognizer.ErrorSign:
		return "Model unavailable"
	case resp.HasHand:
		return fmt.Sprintf("Sign: %s (%.2f)", resp.Sign, resp.Confidence)
	default:
		return "No hand"
	}
}

// DrawOverlay writes the caption of resp onto frame.
func DrawOverlay(frame *gocv.Mat, resp recognizer.Response) {
	c := warnColor
	if resp.HasHand && resp.Sign != recognizer.ErrorSign {
		c = signColor
	}
	gocv.PutText(frame, OverlayText(resp), image.Pt(10, 30), gocv.FontHersheySimplex, 1, c, 2)
}

// DrawFPS writes the frame rate under the caption.
func DrawFPS(frame *gocv.Mat, fps float64) {
	gocv.PutText(frame, fmt.Sprintf("FPS: %.1f", fps), image.Pt(10, 60), gocv.FontHersheySimplex, 0.7, infoColor, 2)
}

// DrawLandmarks draws the hand skeleton of resp onto frame. Landmarks are in
// normalized image coordinates of the same frame.
func DrawLandmarks(frame *gocv.Mat, resp recognizer.Response) {
	pts := landmarkPoints(resp.Landmarks, frame.Cols(), frame.Rows())
	if pts == nil {
		return
	}
	for _, c := range detector.HandConnections {
		gocv.Line(frame, pts[c[0]], pts[c[1]], boneColor, 2)
	}
	for _, p := range pts {
		gocv.Circle(frame, p, 4, jointColor, -1)
	}
}

// landmarkPoints maps landmarks to pixel positions indexed by landmark
// index. It returns nil unless all 21 landmarks are present.
func landmarkPoints(lms []recognizer.Landmark, width, height int) []image.Point {
	if len(lms) != detector.NumLandmarks {
		return nil
	}
	pts := make([]image.Point, detector.NumLandmarks)
	for _, l := range lms {
		if l.Index < 0 || l.Index >= detector.NumLandmarks {
			return nil
		}
		pts[l.Index] = image.Pt(int(l.X*float64(width)), int(l.Y*float64(height)))
	}
	return pts
}
