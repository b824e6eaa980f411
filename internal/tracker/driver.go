package tracker

import (
	"context"
	"fmt"
	"time"

	"pantilt-tracker/internal/ptz"
)

// OutputReader is read access to the controller output cells.
type OutputReader interface {
	Output(axis ptz.Axis) float64
}

// ServoDriver is the only unit of the PID path that moves the mount.
type ServoDriver struct {
	Cells    OutputReader
	Actuator ptz.Actuator
	Poll     time.Duration

	sent [2]bool
	last [2]float64
}

func (d *ServoDriver) Name() string { return "servos" }

// Run enables both servos and spins until ctx is done or a command fails.
func (d *ServoDriver) Run(ctx context.Context) error {
	for _, axis := range ptz.Axes {
		if err := d.Actuator.Enable(axis, true); err != nil {
			return fmt.Errorf("failed to enable %s servo: %w", axis, err)
		}
	}
	for {
		if err := pause(ctx, d.Poll); err != nil {
			return err
		}
		if err := d.Step(); err != nil {
			return err
		}
	}
}

// Step commands each axis whose flipped output lies within the mechanical
// range. Out-of-range outputs are skipped for this cycle, per axis; the
// controller treats its output as an absolute target and comes back.
// An angle equal to the last one sent is not repeated.
func (d *ServoDriver) Step() error {
	for _, axis := range ptz.Axes {
		// Mount is inverted relative to the controller's sign convention.
		angle := -d.Cells.Output(axis)
		if !ptz.InRange(angle) {
			continue
		}
		if d.sent[axis] && d.last[axis] == angle {
			continue
		}
		if err := ptz.Set(d.Actuator, axis, angle); err != nil {
			return fmt.Errorf("failed to move %s servo: %w", axis, err)
		}
		d.sent[axis] = true
		d.last[axis] = angle
	}
	return nil
}
