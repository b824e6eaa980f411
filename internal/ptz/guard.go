package ptz

import (
	"errors"
	"sync"
)

// ErrHalted is returned for motion requested after Halt.
var ErrHalted = errors.New("actuator halted")

// Guard serializes access to an Actuator and latches it off on Halt.
// After Halt no command can re-enable or move a servo, so a unit that is
// still mid-cycle during shutdown cannot undo the safe state.
type Guard struct {
	mu     sync.Mutex
	a      Actuator
	halted bool
}

// NewGuard wraps a.
func NewGuard(a Actuator) *Guard {
	return &Guard{a: a}
}

func (g *Guard) Enable(axis Axis, on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.halted && on {
		return ErrHalted
	}
	return g.a.Enable(axis, on)
}

func (g *Guard) SetPan(deg float64) error {
	return g.move(Pan, deg)
}

func (g *Guard) SetTilt(deg float64) error {
	return g.move(Tilt, deg)
}

func (g *Guard) move(axis Axis, deg float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.halted {
		return ErrHalted
	}
	if err := CheckRange(deg); err != nil {
		return err
	}
	return Set(g.a, axis, deg)
}

func (g *Guard) Pan() (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.a.Pan()
}

func (g *Guard) Tilt() (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.a.Tilt()
}

// Halt waits for any in-flight command, disables both servos and refuses
// motion from then on. It is safe to call more than once; every call
// disables again.
func (g *Guard) Halt() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.halted = true
	return Disable(g.a)
}

// Halted reports whether Halt has been called.
func (g *Guard) Halted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.halted
}

func (g *Guard) Close() error {
	return g.a.Close()
}
