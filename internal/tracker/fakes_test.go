package tracker

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"pantilt-tracker/internal/vision"
)

var errCamera = errors.New("camera unplugged")

type fakeFrame struct {
	ops []string
}

func (f *fakeFrame) Size() (int, int) { return 640, 480 }
func (f *fakeFrame) Clone() vision.Frame {
	return &fakeFrame{ops: append([]string(nil), f.ops...)}
}
func (f *fakeFrame) Close() error { return nil }

func (f *fakeFrame) with(op string) *fakeFrame {
	return &fakeFrame{ops: append(append([]string(nil), f.ops...), op)}
}

// fakeSource hands out frames, failing with errCamera after limit reads
// when limit is positive.
type fakeSource struct {
	mu    sync.Mutex
	limit int
	reads int
	delay time.Duration
}

func (s *fakeSource) Read() (vision.Frame, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && s.reads >= s.limit {
		return nil, errCamera
	}
	s.reads++
	return &fakeFrame{}, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeGeometry struct {
	rotateErr error
}

func (g fakeGeometry) Rotate180(f vision.Frame) (vision.Frame, error) {
	if g.rotateErr != nil {
		return nil, g.rotateErr
	}
	return f.(*fakeFrame).with("rotate"), nil
}

func (g fakeGeometry) Scale(f vision.Frame, factor float64) (vision.Frame, error) {
	return f.(*fakeFrame).with(fmt.Sprintf("scale %g", factor)), nil
}

type detectorFunc func(f vision.Frame, upsample int) ([]image.Rectangle, error)

func (fn detectorFunc) Detect(f vision.Frame, upsample int) ([]image.Rectangle, error) {
	return fn(f, upsample)
}

// scripted returns each result in turn, then repeats the last one.
func scripted(results ...[]image.Rectangle) detectorFunc {
	var mu sync.Mutex
	i := 0
	return func(vision.Frame, int) ([]image.Rectangle, error) {
		mu.Lock()
		defer mu.Unlock()
		r := results[i]
		if i < len(results)-1 {
			i++
		}
		return r, nil
	}
}

func always(rects ...image.Rectangle) detectorFunc {
	return func(vision.Frame, int) ([]image.Rectangle, error) { return rects, nil }
}

type sinkRecorder struct {
	mu     sync.Mutex
	frames [][]string
	dets   [][]image.Rectangle
}

func (s *sinkRecorder) Offer(f vision.Frame, detections []image.Rectangle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f.(*fakeFrame).ops)
	s.dets = append(s.dets, detections)
}

// face is the detection used throughout: at scale 0.5 its center maps to
// (240, 200) in the full frame.
var face = image.Rect(100, 80, 140, 120)

func halfScale(d vision.Detector) *Pipeline {
	return &Pipeline{Geometry: fakeGeometry{}, Detector: d, Scale: 0.5}
}
