package vision

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"github.com/kibbyd/rps-adaptive/internal/move"
)

// #region heuristic
// Heuristic classifies a hand silhouette by counting the valleys between
// raised fingers. It keeps no state between frames.
type Heuristic struct {
	cfg Config
}

// NewHeuristic creates a Heuristic with cfg.
func NewHeuristic(cfg Config) *Heuristic {
	return &Heuristic{cfg: cfg}
}

// Analysis is the intermediate result of one frame, exposed for overlays and
// debugging.
type Analysis struct {
	HandFound bool    // largest contour exists and clears the noise floor
	Area      float64 // area of the largest contour
	Valleys   int     // convexity defects deeper than DefectDepth
	Fingers   int
	Inverted  bool // binary mask was flipped so the hand is the minority region
}

// Classify implements Classifier.
func (h *Heuristic) Classify(_ context.Context, frame gocv.Mat) (move.Move, bool) {
	a := h.Analyze(frame)
	if !a.HandFound {
		return 0, false
	}
	return GestureForFingers(a.Fingers)
}

// #endregion heuristic

// #region analyze
// Analyze runs the silhouette pipeline on frame: central crop, grayscale,
// blur, Otsu binarization, polarity fix, largest external contour, convex
// hull and convexity defects. Frames that are empty or not 8-bit 1/3/4
// channel images yield a zero Analysis.
func (h *Heuristic) Analyze(frame gocv.Mat) Analysis {
	var a Analysis
	roiRect, ok := h.roi(frame)
	if !ok {
		return a
	}
	roi := frame.Region(roiRect)
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	switch frame.Type() {
	case gocv.MatTypeCV8UC1:
		roi.CopyTo(&gray)
	case gocv.MatTypeCV8UC3:
		gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)
	case gocv.MatTypeCV8UC4:
		gocv.CvtColor(roi, &gray, gocv.ColorBGRAToGray)
	default:
		return a
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(h.cfg.BlurKernel, h.cfg.BlurKernel), 0, 0, gocv.BorderDefault)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(blurred, &mask, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return a
	}
	if float64(gocv.CountNonZero(mask))/float64(total) > 0.5 {
		gocv.BitwiseNot(mask, &mask)
		a.Inverted = true
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return a
	}

	largest := -1
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); largest < 0 || area > a.Area {
			largest, a.Area = i, area
		}
	}
	if a.Area < h.cfg.MinArea {
		return a
	}
	contour := contours.At(largest)

	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(contour, &hull, false, false)
	if hull.Rows() < 3 {
		return a
	}
	a.HandFound = true

	defects := gocv.NewMat()
	defer defects.Close()
	gocv.ConvexityDefects(contour, hull, &defects)
	for i := 0; i < defects.Rows(); i++ {
		// each row is (start, end, farthest point, fixed-point depth)
		if float64(defects.GetIntAt(i, 3)) > h.cfg.DefectDepth {
			a.Valleys++
		}
	}
	a.Fingers = FingerCount(a.Valleys)
	return a
}

// roi returns the central region of interest, or false for frames with no
// usable geometry.
func (h *Heuristic) roi(frame gocv.Mat) (image.Rectangle, bool) {
	if frame.Empty() {
		return image.Rectangle{}, false
	}
	rows, cols := frame.Rows(), frame.Cols()
	if rows <= 0 || cols <= 0 {
		return image.Rectangle{}, false
	}
	margin := (1 - h.cfg.ROIFraction) / 2
	r := image.Rect(
		int(float64(cols)*margin), int(float64(rows)*margin),
		int(float64(cols)*(1-margin)), int(float64(rows)*(1-margin)),
	)
	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

// #endregion analyze
