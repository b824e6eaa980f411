package cv

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"pantilt-tracker/internal/vision"
)

// HaarDetector finds faces with an OpenCV Haar cascade
type HaarDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// NewHaarDetector loads the cascade XML at path
func NewHaarDetector(path string) (*HaarDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade %s", path)
	}
	return &HaarDetector{classifier: classifier}, nil
}

// Detect runs the cascade on a grayscale copy of f. Each upsample step
// doubles the image before detection; rectangles are returned in f's
// coordinates. OpenCV exceptions surface as errors.
func (d *HaarDetector) Detect(f vision.Frame, upsample int) (rects []image.Rectangle, err error) {
	m, err := matOf(f)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			rects, err = nil, fmt.Errorf("detector panic: %v", r)
		}
	}()

	gray := gocv.NewMat()
	defer func() { gray.Close() }()
	if m.Channels() == 1 {
		m.CopyTo(&gray)
	} else {
		gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	}

	factor := 1
	for i := 0; i < upsample; i++ {
		up := gocv.NewMat()
		gocv.PyrUp(gray, &up, image.Point{}, gocv.BorderDefault)
		gray.Close()
		gray = up
		factor *= 2
	}

	d.mu.Lock()
	found := d.classifier.DetectMultiScale(gray)
	d.mu.Unlock()

	if factor == 1 {
		return found, nil
	}
	for i, r := range found {
		found[i] = vision.ScaleRect(r, 1/float64(factor))
	}
	return found, nil
}

// Close releases the classifier
func (d *HaarDetector) Close() error {
	return d.classifier.Close()
}
