// Package vision defines the frame, detector and geometry collaborators
// the tracker consumes. Implementations live in subpackages; cv wraps
// OpenCV through gocv.
package vision

import "image"

// Frame is one decoded image. Each processing pass owns its frames and
// must Close them.
type Frame interface {
	Size() (width, height int)
	Clone() Frame
	Close() error
}

// Source delivers frames, blocking until one is available.
type Source interface {
	Read() (Frame, error)
	Close() error
}

// Detector finds subjects in a frame. upsample 0 trades accuracy for speed.
type Detector interface {
	Detect(f Frame, upsample int) ([]image.Rectangle, error)
}

// Geometry produces new frames from existing ones. The input is left untouched.
type Geometry interface {
	Rotate180(f Frame) (Frame, error)
	Scale(f Frame, factor float64) (Frame, error)
}

// Center returns the midpoint of r.
func Center(r image.Rectangle) (x, y float64) {
	return float64(r.Min.X+r.Max.X) / 2, float64(r.Min.Y+r.Max.Y) / 2
}

// ScaleRect multiplies every coordinate of r by factor.
func ScaleRect(r image.Rectangle, factor float64) image.Rectangle {
	s := func(v int) int { return int(float64(v) * factor) }
	return image.Rect(s(r.Min.X), s(r.Min.Y), s(r.Max.X), s(r.Max.Y))
}
