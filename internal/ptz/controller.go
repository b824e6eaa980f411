package ptz

import (
	"errors"
	"fmt"
)

// Mechanical range of both axes, in degrees.
const (
	MinAngle = -90.0
	MaxAngle = 90.0
)

// ErrOutOfRange is returned by actuators asked to move past the mechanical range.
var ErrOutOfRange = errors.New("angle out of range")

// Axis identifies one rotation axis of the mount
type Axis int

const (
	Pan Axis = iota
	Tilt
)

func (a Axis) String() string {
	switch a {
	case Pan:
		return "pan"
	case Tilt:
		return "tilt"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Axes lists both axes in servo order.
var Axes = [...]Axis{Pan, Tilt}

// Actuator defines the interface for absolute-angle pan/tilt control
type Actuator interface {
	// Enable switches the servo for one axis on or off.
	// A disabled servo holds no position.
	Enable(axis Axis, on bool) error

	// SetPan moves the pan servo to deg, -90 (left) to 90 (right)
	SetPan(deg float64) error

	// SetTilt moves the tilt servo to deg, -90 (down) to 90 (up)
	SetTilt(deg float64) error

	// Pan reads back the current pan angle
	Pan() (float64, error)

	// Tilt reads back the current tilt angle
	Tilt() (float64, error)

	// Close releases the underlying bus or connection
	Close() error
}

// InRange reports whether deg lies within the mechanical range.
func InRange(deg float64) bool {
	return deg >= MinAngle && deg <= MaxAngle
}

// CheckRange returns ErrOutOfRange for angles outside the mechanical range.
func CheckRange(deg float64) error {
	if !InRange(deg) {
		return fmt.Errorf("%w: %.2f", ErrOutOfRange, deg)
	}
	return nil
}

// Set moves one axis.
func Set(a Actuator, axis Axis, deg float64) error {
	if axis == Pan {
		return a.SetPan(deg)
	}
	return a.SetTilt(deg)
}

// Get reads one axis.
func Get(a Actuator, axis Axis) (float64, error) {
	if axis == Pan {
		return a.Pan()
	}
	return a.Tilt()
}

// Disable switches off both servos. Both axes are always attempted.
func Disable(a Actuator) error {
	var errs []error
	for _, axis := range Axes {
		if err := a.Enable(axis, false); err != nil {
			errs = append(errs, fmt.Errorf("failed to disable %s: %w", axis, err))
		}
	}
	return errors.Join(errs...)
}
