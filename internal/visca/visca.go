package visca

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"sync"
	"time"

	"pantilt-tracker/internal/ptz"
)

const (
	minInterval  = 50 * time.Millisecond // Max 20 position commands/sec
	replyTimeout = 500 * time.Millisecond

	maxPanSpeed  = 0x18
	maxTiltSpeed = 0x14
)

// DefaultUnitsPerDegree matches Sony EVI heads (0x0990 units at 170 degrees)
const DefaultUnitsPerDegree = 14.4

var errNoPosition = errors.New("no position reply")

// Controller drives a VISCA PTZ head to absolute pan/tilt positions
type Controller struct {
	conn     net.Conn
	reader   *bufio.Reader // TCP only
	mu       sync.Mutex
	addr     int    // Camera address (1-7), default 1
	seqNum   uint32 // Sequence number for VISCA over IP
	protocol string

	unitsPerDegree float64
	stopCh         chan struct{}
	closeOnce      sync.Once

	// Absolute position in degrees. The drive command always carries both
	// axes, so moving one axis repeats the other's last target.
	pos struct {
		known         bool
		stopped       bool // set by Enable(false), cleared by the next target
		pending, sent struct{ pan, tilt float64 }
	}
	move *ptz.Throttle
}

// Config for VISCA controller
type Config struct {
	// For UDP: address like "192.168.1.100:52381"
	// For TCP: address like "192.168.1.100:5678"
	Address  string
	Protocol string // "udp" or "tcp"

	// Position units per degree, DefaultUnitsPerDegree when zero
	UnitsPerDegree float64
}

// NewController dials the camera
func NewController(cfg Config) (*Controller, error) {
	protocol := cfg.Protocol
	if protocol == "" {
		protocol = "udp" // Default to UDP for VISCA over IP
	}
	if protocol != "udp" && protocol != "tcp" {
		return nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}
	upd := cfg.UnitsPerDegree
	if upd == 0 {
		upd = DefaultUnitsPerDegree
	}
	if upd < 0 {
		return nil, fmt.Errorf("units per degree must be positive")
	}

	conn, err := net.DialTimeout(protocol, cfg.Address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to VISCA over %s: %w", protocol, err)
	}

	c := &Controller{
		conn:           conn,
		addr:           1,
		protocol:       protocol,
		unitsPerDegree: upd,
		stopCh:         make(chan struct{}),
	}
	if protocol == "tcp" {
		c.reader = bufio.NewReader(conn)
	}
	c.move = ptz.NewThrottle(minInterval, c.stopCh, c.flushPosition)
	return c, nil
}

// Close closes the VISCA connection
func (c *Controller) Close() error {
	c.closeOnce.Do(func() { close(c.stopCh) })
	return c.conn.Close()
}

// buildVISCAPayload constructs a raw VISCA message (address + payload + terminator)
func (c *Controller) buildVISCAPayload(payload []byte) []byte {
	// Address byte: 0x80 | address (1-7)
	cmd := make([]byte, 0, len(payload)+2)
	cmd = append(cmd, byte(0x80|c.addr))
	cmd = append(cmd, payload...)
	cmd = append(cmd, 0xFF)
	return cmd
}

// buildVISCAOverIP wraps a VISCA message in VISCA-over-IP framing.
// Header: 2 bytes payload type, 2 bytes length, 4 bytes sequence number.
func (c *Controller) buildVISCAOverIP(msgType uint16, viscaPayload []byte) []byte {
	header := make([]byte, 8, 8+len(viscaPayload))
	binary.BigEndian.PutUint16(header[0:2], msgType)
	binary.BigEndian.PutUint16(header[2:4], uint16(len(viscaPayload)))
	binary.BigEndian.PutUint32(header[4:8], c.seqNum)
	c.seqNum++
	return append(header, viscaPayload...)
}

const (
	typeCommand = 0x0100
	typeInquiry = 0x0110
)

// write frames and sends one message. Caller holds c.mu.
func (c *Controller) write(msgType uint16, payload []byte) error {
	packet := c.buildVISCAPayload(payload)
	if c.protocol == "udp" {
		packet = c.buildVISCAOverIP(msgType, packet)
	}

	c.conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
	if _, err := c.conn.Write(packet); err != nil {
		return fmt.Errorf("failed to send VISCA message: %w", err)
	}
	return nil
}

// readMessage returns the next VISCA message from the camera, without framing.
// Caller holds c.mu.
func (c *Controller) readMessage(deadline time.Time) ([]byte, error) {
	c.conn.SetReadDeadline(deadline)

	if c.protocol == "tcp" {
		return c.reader.ReadBytes(0xFF)
	}

	buf := make([]byte, 64)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	if n < 8 {
		return nil, fmt.Errorf("short VISCA-over-IP packet (%d bytes)", n)
	}
	return buf[8:n], nil
}

// Enable has no servo equivalent on a PTZ head. Disabling stops any
// motion in progress and drops a queued target; enabling is accepted
// and does nothing.
func (c *Controller) Enable(axis ptz.Axis, on bool) error {
	if on {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos.pending = c.pos.sent
	c.pos.stopped = true
	// Pan-tilt drive stop: 01 06 01 VV WW 03 03
	return c.write(typeCommand, []byte{0x01, 0x06, 0x01, 0x01, 0x01, 0x03, 0x03})
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

	c.mu.Lock()
	if !c.pos.known {
		if err := c.inquire(); err != nil {
			log.Printf("VISCA: Position unknown, assuming home: %v", err)
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
	c.mu.Unlock()

	if changed {
		c.move.Trigger()
	}
	return nil
}

// flushPosition runs under the throttle lock
func (c *Controller) flushPosition() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pos.stopped || c.pos.pending == c.pos.sent {
		return
	}

	// Absolute position: 01 06 02 VV WW 0Y 0Y 0Y 0Y 0Z 0Z 0Z 0Z
	payload := []byte{0x01, 0x06, 0x02, maxPanSpeed, maxTiltSpeed}
	payload = appendNibbles(payload, c.toUnits(c.pos.pending.pan))
	payload = appendNibbles(payload, c.toUnits(c.pos.pending.tilt))

	if err := c.write(typeCommand, payload); err != nil {
		log.Printf("VISCA: %v", err)
		return
	}
	c.pos.sent = c.pos.pending
}

// Pan returns the last commanded pan angle, asking the camera only
// before the first command
func (c *Controller) Pan() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensurePosition(); err != nil {
		return 0, err
	}
	return c.pos.pending.pan, nil
}

// Tilt returns the last commanded tilt angle, asking the camera only
// before the first command
func (c *Controller) Tilt() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensurePosition(); err != nil {
		return 0, err
	}
	return c.pos.pending.tilt, nil
}

func (c *Controller) ensurePosition() error {
	if c.pos.known {
		return nil
	}
	return c.inquire()
}

// inquire sends the pan-tilt position inquiry (09 06 12) and waits for
// y0 50 0p 0p 0p 0p 0t 0t 0t 0t FF, skipping acks and completions of
// earlier commands. Caller holds c.mu.
func (c *Controller) inquire() error {
	if err := c.write(typeInquiry, []byte{0x09, 0x06, 0x12}); err != nil {
		return err
	}

	deadline := time.Now().Add(replyTimeout)
	for {
		msg, err := c.readMessage(deadline)
		if err != nil {
			return fmt.Errorf("%w: %v", errNoPosition, err)
		}
		if len(msg) == 11 && msg[1] == 0x50 {
			pan := c.toDegrees(parseNibbles(msg[2:6]))
			tilt := c.toDegrees(parseNibbles(msg[6:10]))
			c.pos.pending.pan, c.pos.pending.tilt = pan, tilt
			c.pos.sent = c.pos.pending
			c.pos.known = true
			return nil
		}
	}
}

func (c *Controller) toUnits(deg float64) int16 {
	return int16(math.Round(deg * c.unitsPerDegree))
}

func (c *Controller) toDegrees(units int16) float64 {
	deg := float64(units) / c.unitsPerDegree
	return math.Max(ptz.MinAngle, math.Min(ptz.MaxAngle, deg))
}

// appendNibbles encodes a signed 16-bit position as four 0n bytes, high first
func appendNibbles(b []byte, v int16) []byte {
	u := uint16(v)
	return append(b, byte(u>>12)&0x0F, byte(u>>8)&0x0F, byte(u>>4)&0x0F, byte(u)&0x0F)
}

func parseNibbles(b []byte) int16 {
	var u uint16
	for _, n := range b[:4] {
		u = u<<4 | uint16(n&0x0F)
	}
	return int16(u)
}
