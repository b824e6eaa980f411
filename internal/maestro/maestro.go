// Package maestro drives pan/tilt servos on a Pololu Maestro controller
// using the compact serial protocol.
package maestro

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"go.bug.st/serial"

	"pantilt-tracker/internal/ptz"
)

const (
	cmdSetTarget   = 0x84
	cmdGetPosition = 0x90

	readTimeout = 100 * time.Millisecond
)

var errNoReply = errors.New("no reply from controller")

// Config for a Maestro controller
type Config struct {
	Port        string
	Baud        int
	PanChannel  uint8
	TiltChannel uint8
	MinPulseUs  int // pulse width at -90 degrees
	MaxPulseUs  int // pulse width at +90 degrees
}

// Controller drives two channels of a Maestro
type Controller struct {
	mu       sync.Mutex
	port     io.ReadWriter
	closer   io.Closer
	channels [2]uint8
	minUs    int
	maxUs    int

	// last non-zero target per axis, in quarter microseconds
	target [2]uint16
}

// Open opens the serial port and returns a controller on it
func Open(cfg Config) (*Controller, error) {
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	c := New(port, cfg)
	c.closer = port
	return c, nil
}

// New returns a controller speaking over port
func New(port io.ReadWriter, cfg Config) *Controller {
	return &Controller{
		port:     port,
		channels: [2]uint8{ptz.Pan: cfg.PanChannel, ptz.Tilt: cfg.TiltChannel},
		minUs:    cfg.MinPulseUs,
		maxUs:    cfg.MaxPulseUs,
	}
}

// Enable turns the channel's pulses off (target 0) or restores the last
// target. Enabling a channel that was never moved sends nothing.
func (c *Controller) Enable(axis ptz.Axis, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !on {
		return c.setTarget(axis, 0)
	}
	if t := c.target[axis]; t != 0 {
		return c.setTarget(axis, t)
	}
	return nil
}

func (c *Controller) SetPan(deg float64) error  { return c.move(ptz.Pan, deg) }
func (c *Controller) SetTilt(deg float64) error { return c.move(ptz.Tilt, deg) }

func (c *Controller) move(axis ptz.Axis, deg float64) error {
	if err := ptz.CheckRange(deg); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.degreesToTarget(deg)
	if err := c.setTarget(axis, t); err != nil {
		return err
	}
	c.target[axis] = t
	return nil
}

// setTarget sends 0x84, channel, target low 7 bits, target high 7 bits
func (c *Controller) setTarget(axis ptz.Axis, target uint16) error {
	cmd := []byte{cmdSetTarget, c.channels[axis], byte(target & 0x7f), byte((target >> 7) & 0x7f)}
	if _, err := c.port.Write(cmd); err != nil {
		return fmt.Errorf("failed to set %s target: %w", axis, err)
	}
	return nil
}

func (c *Controller) Pan() (float64, error)  { return c.position(ptz.Pan) }
func (c *Controller) Tilt() (float64, error) { return c.position(ptz.Tilt) }

// position asks the controller for the channel's current pulse width.
// A channel with pulses off reports 0 degrees.
func (c *Controller) position(axis ptz.Axis) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.port.Write([]byte{cmdGetPosition, c.channels[axis]}); err != nil {
		return 0, fmt.Errorf("failed to query %s position: %w", axis, err)
	}

	buf := make([]byte, 2)
	if err := readFull(c.port, buf); err != nil {
		return 0, fmt.Errorf("failed to read %s position: %w", axis, err)
	}

	pos := uint16(buf[0]) | uint16(buf[1])<<8
	if pos == 0 {
		return 0, nil
	}
	return c.targetToDegrees(pos), nil
}

func (c *Controller) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

func (c *Controller) degreesToTarget(deg float64) uint16 {
	us := float64(c.minUs) + float64(c.maxUs-c.minUs)*(deg+90)/180
	return uint16(math.Round(us * 4))
}

func (c *Controller) targetToDegrees(t uint16) float64 {
	us := float64(t) / 4
	deg := (us-float64(c.minUs))/float64(c.maxUs-c.minUs)*180 - 90
	return math.Max(ptz.MinAngle, math.Min(ptz.MaxAngle, deg))
}

// readFull is io.ReadFull for a port that returns (0, nil) on read timeout.
func readFull(r io.Reader, buf []byte) error {
	for n := 0; n < len(buf); {
		m, err := r.Read(buf[n:])
		if err != nil {
			return err
		}
		if m == 0 {
			return errNoReply
		}
		n += m
	}
	return nil
}
