package panasonic

import (
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"pantilt-tracker/internal/ptz"
)

const (
	minInterval = 130 * time.Millisecond // AW heads need >=130ms between commands

	// Absolute positions are 16-bit with 0x8000 at the optical center.
	centerUnits = 0x8000

	// DefaultUnitsPerDegree matches AW-HE heads (0x2D09..0xD2F5 over +-175 degrees)
	DefaultUnitsPerDegree = 121.35
)

// Controller manages HTTP CGI communication with a Panasonic PTZ camera
type Controller struct {
	baseURL string
	client  *http.Client
	mu      sync.Mutex
	stopCh  chan struct{}
	once    sync.Once

	unitsPerDegree float64

	// Absolute position in degrees, guarded by pos.mu. Lock order is
	// pos before mu.
	pos struct {
		sync.Mutex
		known         bool
		stopped       bool // set by Enable(false), cleared by the next target
		pending, sent struct{ pan, tilt float64 }
	}
	move *ptz.Throttle
}

// Config for Panasonic controller
type Config struct {
	Address        string  // Camera IP address or hostname (e.g., "192.168.1.100")
	UnitsPerDegree float64 // DefaultUnitsPerDegree when zero
}

// NewController creates a new Panasonic controller
func NewController(cfg Config) (*Controller, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("camera address is required")
	}
	upd := cfg.UnitsPerDegree
	if upd == 0 {
		upd = DefaultUnitsPerDegree
	}
	if upd < 0 {
		return nil, fmt.Errorf("units per degree must be positive")
	}

	c := &Controller{
		baseURL: fmt.Sprintf("http://%s/cgi-bin/aw_ptz", cfg.Address),
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
		stopCh:         make(chan struct{}),
		unitsPerDegree: upd,
	}
	c.move = ptz.NewThrottle(minInterval, c.stopCh, c.flushPosition)

	return c, nil
}

// Close closes the controller
func (c *Controller) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return nil
}

// Enable stops any motion when disabling and drops a queued target;
// enabling does nothing
func (c *Controller) Enable(axis ptz.Axis, on bool) error {
	if on {
		return nil
	}
	c.pos.Lock()
	defer c.pos.Unlock()
	c.pos.pending = c.pos.sent
	c.pos.stopped = true

	// Pan/tilt speed 50/50 is stop
	_, err := c.sendCommand("#PTS5050")
	return err
}

// SetPan queues an absolute pan target
func (c *Controller) SetPan(deg float64) error {
	return c.set(ptz.Pan, deg)
}

// SetTilt queues an absolute tilt target
func (c *Controller) SetTilt(deg float64) error {
	return c.set(ptz.Tilt, deg)
}

func (c *Controller) set(axis ptz.Axis, deg float64) error {
	if err := ptz.CheckRange(deg); err != nil {
		return err
	}

	c.pos.Lock()
	if !c.pos.known {
		if err := c.queryPosition(); err != nil {
			log.Printf("Panasonic: Position unknown, assuming home: %v", err)
			c.pos.known = true
		}
	}
	if axis == ptz.Pan {
		c.pos.pending.pan = deg
	} else {
		c.pos.pending.tilt = deg
	}
	c.pos.stopped = false
	changed := c.pos.pending != c.pos.sent
	c.pos.Unlock()

	if changed {
		c.move.Trigger()
	}
	return nil
}

// flushPosition runs under the throttle lock. It holds pos across the
// request so a stop cannot land between the check and the move.
func (c *Controller) flushPosition() {
	c.pos.Lock()
	defer c.pos.Unlock()

	target := c.pos.pending
	if c.pos.stopped || target == c.pos.sent {
		return
	}

	cmd := fmt.Sprintf("#APC%04X%04X", c.toUnits(target.pan), c.toUnits(target.tilt))
	if _, err := c.sendCommand(cmd); err != nil {
		log.Printf("Panasonic: %v", err)
		return
	}
	c.pos.sent = target
}

// Pan returns the last commanded pan angle, asking the camera only
// before the first command
func (c *Controller) Pan() (float64, error) {
	c.pos.Lock()
	defer c.pos.Unlock()
	if err := c.ensurePosition(); err != nil {
		return 0, err
	}
	return c.pos.pending.pan, nil
}

// Tilt returns the last commanded tilt angle, asking the camera only
// before the first command
func (c *Controller) Tilt() (float64, error) {
	c.pos.Lock()
	defer c.pos.Unlock()
	if err := c.ensurePosition(); err != nil {
		return 0, err
	}
	return c.pos.pending.tilt, nil
}

func (c *Controller) ensurePosition() error {
	if c.pos.known {
		return nil
	}
	return c.queryPosition()
}

// queryPosition sends #APC and parses "aPC<pan4><tilt4>". Caller holds pos.
func (c *Controller) queryPosition() error {
	body, err := c.sendCommand("#APC")
	if err != nil {
		return err
	}

	body = strings.TrimSpace(body)
	if len(body) != 11 || !strings.HasPrefix(body, "aPC") {
		return fmt.Errorf("unexpected position reply %q", body)
	}
	pan, err := strconv.ParseUint(body[3:7], 16, 16)
	if err != nil {
		return fmt.Errorf("bad pan in position reply %q: %w", body, err)
	}
	tilt, err := strconv.ParseUint(body[7:11], 16, 16)
	if err != nil {
		return fmt.Errorf("bad tilt in position reply %q: %w", body, err)
	}

	c.pos.pending.pan = c.toDegrees(uint16(pan))
	c.pos.pending.tilt = c.toDegrees(uint16(tilt))
	c.pos.sent = c.pos.pending
	c.pos.known = true
	return nil
}

// sendCommand sends a command to the camera via HTTP CGI and returns the reply body
func (c *Controller) sendCommand(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	url := fmt.Sprintf("%s?cmd=%s&res=1", c.baseURL, strings.ReplaceAll(cmd, "#", "%23"))

	resp, err := c.client.Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("camera returned %s for %s", resp.Status, cmd)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}
	return string(body), nil
}

func (c *Controller) toUnits(deg float64) uint16 {
	return uint16(centerUnits + int(math.Round(deg*c.unitsPerDegree)))
}

func (c *Controller) toDegrees(units uint16) float64 {
	deg := float64(int(units)-centerUnits) / c.unitsPerDegree
	return math.Max(ptz.MinAngle, math.Min(ptz.MaxAngle, deg))
}
