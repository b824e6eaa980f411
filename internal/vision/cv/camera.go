package cv

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"pantilt-tracker/internal/vision"
)

var errNoFrame = errors.New("camera returned no frame")

// CameraConfig selects and configures the capture device
type CameraConfig struct {
	Type   string // usb, pi, rtsp or file
	Device string // device index for usb/pi, URL or path otherwise
	Width  int
	Height int
	FPS    int
	Warmup time.Duration
}

// Camera reads frames from a capture device or stream
type Camera struct {
	capture *gocv.VideoCapture
}

// OpenCamera opens the device, waits out the warm-up delay and checks that
// a first frame can be read.
func OpenCamera(cfg CameraConfig) (*Camera, error) {
	var (
		capture *gocv.VideoCapture
		err     error
	)
	switch cfg.Type {
	case "usb", "pi":
		id, convErr := strconv.Atoi(cfg.Device)
		if convErr != nil {
			return nil, fmt.Errorf("camera device must be an index for %s cameras: %w", cfg.Type, convErr)
		}
		if cfg.Type == "pi" {
			capture, err = gocv.VideoCaptureDeviceWithAPI(id, gocv.VideoCaptureV4L2)
		} else {
			capture, err = gocv.VideoCaptureDevice(id)
		}
	case "rtsp", "file":
		capture, err = gocv.VideoCaptureFile(cfg.Device)
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", cfg.Device, err)
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		capture.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}

	if cfg.Type == "pi" {
		log.Printf("Camera: Warming up pi camera...")
	} else {
		log.Printf("Camera: Warming up camera...")
	}
	time.Sleep(cfg.Warmup)

	c := &Camera{capture: capture}
	first, err := c.Read()
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("failed to read first frame: %w", err)
	}
	w, h := first.Size()
	first.Close()
	log.Printf("Camera: Capturing %dx%d from %s", w, h, cfg.Device)

	return c, nil
}

// Read blocks until the next frame is decoded
func (c *Camera) Read() (vision.Frame, error) {
	m := gocv.NewMat()
	if ok := c.capture.Read(&m); !ok || m.Empty() {
		m.Close()
		return nil, errNoFrame
	}
	return &Frame{Mat: m}, nil
}

// Close releases the device
func (c *Camera) Close() error {
	return c.capture.Close()
}
