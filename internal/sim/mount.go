// Package sim provides an in-memory pan/tilt mount for dry runs without
// servo hardware.
package sim

import (
	"fmt"
	"sync"

	"pantilt-tracker/internal/ptz"
)

// Command is one call recorded by the mount.
type Command struct {
	Axis   ptz.Axis
	Enable *bool    // set for Enable calls
	Angle  *float64 // set for moves
}

func (c Command) String() string {
	if c.Enable != nil {
		return fmt.Sprintf("%s enable=%t", c.Axis, *c.Enable)
	}
	return fmt.Sprintf("%s -> %.2f", c.Axis, *c.Angle)
}

// Mount holds two servo angles. A recording mount also keeps a log of
// every command it receives.
type Mount struct {
	mu       sync.Mutex
	angles   [2]float64
	enabled  [2]bool
	record   bool
	commands []Command
	closed   bool
}

// NewMount returns a mount at (pan, tilt) with both servos disabled.
// It keeps no command log.
func NewMount(pan, tilt float64) *Mount {
	return &Mount{angles: [2]float64{pan, tilt}}
}

// NewRecordingMount is NewMount with the command log switched on.
func NewRecordingMount(pan, tilt float64) *Mount {
	m := NewMount(pan, tilt)
	m.record = true
	return m
}

// log appends c when recording. Caller holds m.mu.
func (m *Mount) log(c Command) {
	if m.record {
		m.commands = append(m.commands, c)
	}
}

func (m *Mount) Enable(axis ptz.Axis, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled[axis] = on
	m.log(Command{Axis: axis, Enable: &on})
	return nil
}

func (m *Mount) SetPan(deg float64) error  { return m.move(ptz.Pan, deg) }
func (m *Mount) SetTilt(deg float64) error { return m.move(ptz.Tilt, deg) }

func (m *Mount) move(axis ptz.Axis, deg float64) error {
	if err := ptz.CheckRange(deg); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Like the Pan-Tilt HAT, moving a disabled servo switches it on.
	m.enabled[axis] = true
	m.angles[axis] = deg
	m.log(Command{Axis: axis, Angle: &deg})
	return nil
}

func (m *Mount) Pan() (float64, error)  { return m.angle(ptz.Pan), nil }
func (m *Mount) Tilt() (float64, error) { return m.angle(ptz.Tilt), nil }

func (m *Mount) angle(axis ptz.Axis) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.angles[axis]
}

func (m *Mount) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Enabled reports whether the servo of an axis is on.
func (m *Mount) Enabled(axis ptz.Axis) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[axis]
}

// Commands returns a copy of the command log.
func (m *Mount) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.commands...)
}

// Moves returns the recorded moves for one axis, oldest first.
func (m *Mount) Moves(axis ptz.Axis) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []float64
	for _, c := range m.commands {
		if c.Axis == axis && c.Angle != nil {
			out = append(out, *c.Angle)
		}
	}
	return out
}

// Reset clears the command log.
func (m *Mount) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}
