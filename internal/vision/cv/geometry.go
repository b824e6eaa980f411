package cv

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"pantilt-tracker/internal/vision"
)

// Geometry rotates and resizes frames
type Geometry struct{}

// Rotate180 compensates for a mount fitted upside down
func (Geometry) Rotate180(f vision.Frame) (vision.Frame, error) {
	m, err := matOf(f)
	if err != nil {
		return nil, err
	}
	dst := gocv.NewMat()
	gocv.Rotate(m, &dst, gocv.Rotate180Clockwise)
	return &Frame{Mat: dst}, nil
}

// Scale resizes by factor in both dimensions
func (Geometry) Scale(f vision.Frame, factor float64) (vision.Frame, error) {
	m, err := matOf(f)
	if err != nil {
		return nil, err
	}
	dst := gocv.NewMat()
	gocv.Resize(m, &dst, image.Point{}, factor, factor, gocv.InterpolationLinear)
	return &Frame{Mat: dst}, nil
}

var (
	boxColor     = color.RGBA{0, 255, 0, 0}
	reticleColor = color.RGBA{0, 0, 255, 0}
)

// Annotator draws detections and a center reticle and encodes the result as JPEG
type Annotator struct {
	Quality int // JPEG quality, 0 keeps the OpenCV default
}

// Encode returns the annotated frame as JPEG bytes. f is not modified.
func (a Annotator) Encode(f vision.Frame, detections []image.Rectangle) ([]byte, error) {
	m, err := matOf(f)
	if err != nil {
		return nil, err
	}
	canvas := m.Clone()
	defer canvas.Close()

	for _, r := range detections {
		gocv.Rectangle(&canvas, r, boxColor, 2)
	}

	w, h := canvas.Cols(), canvas.Rows()
	cx, cy := w/2, h/2
	gocv.Line(&canvas, image.Pt(cx-10, cy), image.Pt(cx+10, cy), reticleColor, 1)
	gocv.Line(&canvas, image.Pt(cx, cy-10), image.Pt(cx, cy+10), reticleColor, 1)

	var params []int
	if a.Quality > 0 {
		params = []int{int(gocv.IMWriteJpegQuality), a.Quality}
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, canvas, params)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
