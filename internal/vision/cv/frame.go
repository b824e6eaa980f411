// Package cv implements the vision collaborators with OpenCV through gocv.
package cv

import (
	"fmt"

	"gocv.io/x/gocv"

	"pantilt-tracker/internal/vision"
)

// Frame wraps a gocv.Mat.
type Frame struct {
	Mat gocv.Mat
}

func (f *Frame) Size() (int, int) { return f.Mat.Cols(), f.Mat.Rows() }

func (f *Frame) Clone() vision.Frame { return &Frame{Mat: f.Mat.Clone()} }

func (f *Frame) Close() error { return f.Mat.Close() }

func matOf(f vision.Frame) (gocv.Mat, error) {
	cf, ok := f.(*Frame)
	if !ok {
		return gocv.Mat{}, fmt.Errorf("cv: unsupported frame type %T", f)
	}
	if cf.Mat.Empty() {
		return gocv.Mat{}, fmt.Errorf("cv: empty frame")
	}
	return cf.Mat, nil
}
