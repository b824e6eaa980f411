// Package tracker keeps a detected subject centered by driving a pan/tilt
// mount.
//
// Two control paths are provided. The PID path runs four units that share
// nothing but the scalar cells of package state: a Locator publishing
// subject coordinates, one AxisController per axis publishing PID outputs,
// and a ServoDriver turning outputs into servo commands. The direct path
// runs a single Corrector that detects and corrects in one loop.
// Either path is started by a Supervisor, which also owns the safe-idle
// shutdown of the actuator.
package tracker

import (
	"context"
	"time"
)

// Unit is one perpetually running responsibility. Run returns only when
// ctx is done or the unit hits a fault it cannot continue past.
type Unit interface {
	Name() string
	Run(ctx context.Context) error
}

// Strategy is a complete control path.
type Strategy interface {
	Units() []Unit
}

// Point is a frame position in full-resolution pixels.
type Point struct {
	X, Y float64
}

// pause yields between busy-poll cycles. A zero interval only checks ctx.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
