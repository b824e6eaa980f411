package tracker

import (
	"context"
	"fmt"
	"image"
	"log"

	"pantilt-tracker/internal/ptz"
	"pantilt-tracker/internal/vision"
)

// ObjectPublisher is write access to the subject coordinate cells.
type ObjectPublisher interface {
	SetObject(axis ptz.Axis, v float64)
}

// FrameSink receives each processed frame for display. Offer must not
// block and must not keep f past the call.
type FrameSink interface {
	Offer(f vision.Frame, detections []image.Rectangle)
}

// Pipeline orients, downscales and runs detection on one frame.
type Pipeline struct {
	Geometry vision.Geometry
	Detector vision.Detector
	Scale    float64 // applied before detection, undone on the result
	Upsample int
	Sink     FrameSink // optional
}

// Locate returns the center of the first detection in full-resolution
// pixels. found is false when nothing was detected. A non-nil error is
// a per-frame fault; the caller decides whether to continue.
func (p *Pipeline) Locate(f vision.Frame) (center Point, found bool, err error) {
	oriented, err := p.Geometry.Rotate180(f)
	if err != nil {
		return Point{}, false, fmt.Errorf("failed to rotate frame: %w", err)
	}
	defer oriented.Close()

	small := oriented
	if p.Scale != 1 {
		small, err = p.Geometry.Scale(oriented, p.Scale)
		if err != nil {
			return Point{}, false, fmt.Errorf("failed to scale frame: %w", err)
		}
		defer small.Close()
	}

	detections, err := p.Detector.Detect(small, p.Upsample)
	if p.Sink != nil {
		p.Sink.Offer(small, detections)
	}
	if err != nil {
		return Point{}, false, fmt.Errorf("detection failed: %w", err)
	}
	if len(detections) == 0 {
		return Point{}, false, nil
	}

	x, y := vision.Center(detections[0])
	return Point{X: x / p.Scale, Y: y / p.Scale}, true, nil
}

// Locator publishes the subject position into the object cells, or the
// idle point when there is no subject.
type Locator struct {
	Source   vision.Source
	Pipeline *Pipeline
	Cells    ObjectPublisher
	Idle     Point
}

func (l *Locator) Name() string { return "locator" }

// Run loops until ctx is done or the frame source fails.
func (l *Locator) Run(ctx context.Context) error {
	log.Printf("Locator: Start capturing...")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Step(); err != nil {
			return err
		}
	}
}

// Step processes one frame. Only frame source failures are returned;
// detection faults publish the idle point.
func (l *Locator) Step() error {
	frame, err := l.Source.Read()
	if err != nil {
		return fmt.Errorf("failed to read frame: %w", err)
	}
	defer frame.Close()

	center, found, err := l.Pipeline.Locate(frame)
	if err != nil {
		log.Printf("Locator: %v", err)
	}
	if !found {
		center = l.Idle
	}

	l.Cells.SetObject(ptz.Pan, center.X)
	l.Cells.SetObject(ptz.Tilt, center.Y)
	return nil
}
