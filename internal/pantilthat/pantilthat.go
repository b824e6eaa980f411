// Package pantilthat drives the Pimoroni Pan-Tilt HAT over i2c.
//
// The HAT's microcontroller exposes a config register (servo enable bits)
// and one 16-bit pulse-width register per servo. Servo 1 is pan, servo 2
// is tilt.
package pantilthat

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"pantilt-tracker/internal/ptz"
)

// DefaultAddress is the HAT's i2c address.
const DefaultAddress = 0x15

const (
	regConfig = 0x00
	regServo1 = 0x01
	regServo2 = 0x03

	servoMinUs = 575
	servoMaxUs = 2325
)

var servoReg = [...]byte{ptz.Pan: regServo1, ptz.Tilt: regServo2}

type txer interface {
	Tx(w, r []byte) error
}

// HAT is a Pan-Tilt HAT on one i2c bus.
type HAT struct {
	mu      sync.Mutex
	dev     txer
	bus     i2c.BusCloser
	enabled [2]bool
}

// Open initializes the host drivers and opens the HAT on the named bus
// ("1" on a Raspberry Pi).
func Open(busName string, addr uint16) (*HAT, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", busName, err)
	}

	h := New(&i2c.Dev{Bus: bus, Addr: addr})
	h.bus = bus
	return h, nil
}

// New returns a HAT talking through dev. Both servos start disabled.
func New(dev txer) *HAT {
	return &HAT{dev: dev}
}

// Enable switches a servo's pulse output on or off.
func (h *HAT) Enable(axis ptz.Axis, on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.setEnabled(axis, on)
}

func (h *HAT) setEnabled(axis ptz.Axis, on bool) error {
	next := h.enabled
	next[axis] = on

	var config byte
	if next[ptz.Pan] {
		config |= 1 << 0
	}
	if next[ptz.Tilt] {
		config |= 1 << 1
	}
	if err := h.dev.Tx([]byte{regConfig, config}, nil); err != nil {
		return fmt.Errorf("failed to write config register: %w", err)
	}
	h.enabled = next
	return nil
}

// SetPan moves servo 1, enabling it first if needed.
func (h *HAT) SetPan(deg float64) error {
	return h.set(ptz.Pan, deg)
}

// SetTilt moves servo 2, enabling it first if needed.
func (h *HAT) SetTilt(deg float64) error {
	return h.set(ptz.Tilt, deg)
}

func (h *HAT) set(axis ptz.Axis, deg float64) error {
	if err := ptz.CheckRange(deg); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.enabled[axis] {
		if err := h.setEnabled(axis, true); err != nil {
			return err
		}
	}

	w := make([]byte, 3)
	w[0] = servoReg[axis]
	binary.LittleEndian.PutUint16(w[1:], degreesToUs(deg))
	if err := h.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("failed to write %s servo: %w", axis, err)
	}
	return nil
}

// Pan reads servo 1's pulse width back as degrees.
func (h *HAT) Pan() (float64, error) {
	return h.get(ptz.Pan)
}

// Tilt reads servo 2's pulse width back as degrees.
func (h *HAT) Tilt() (float64, error) {
	return h.get(ptz.Tilt)
}

func (h *HAT) get(axis ptz.Axis) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := make([]byte, 2)
	if err := h.dev.Tx([]byte{servoReg[axis]}, r); err != nil {
		return 0, fmt.Errorf("failed to read %s servo: %w", axis, err)
	}
	return usToDegrees(binary.LittleEndian.Uint16(r)), nil
}

// Close releases the bus when the HAT was opened with Open.
func (h *HAT) Close() error {
	if h.bus != nil {
		return h.bus.Close()
	}
	return nil
}

func degreesToUs(deg float64) uint16 {
	span := float64(servoMaxUs - servoMinUs)
	return uint16(servoMinUs + span*(deg+90)/180)
}

// usToDegrees rounds to whole degrees, which is the resolution the
// HAT reports positions at.
func usToDegrees(us uint16) float64 {
	span := float64(servoMaxUs - servoMinUs)
	return math.Round(float64(int(us)-servoMinUs)/span*180) - 90
}
