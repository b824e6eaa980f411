package tracker

import (
	"context"
	"time"

	"pantilt-tracker/internal/pid"
	"pantilt-tracker/internal/ptz"
	"pantilt-tracker/internal/state"
)

// AxisCells is what one axis controller reads and writes.
type AxisCells interface {
	Object(axis ptz.Axis) float64
	Center(axis ptz.Axis) int64
	Gains(axis ptz.Axis) state.Gains
	SetOutput(axis ptz.Axis, v float64)
}

// AxisController runs a PID loop from the object and center cells of one
// axis to that axis' output cell. The output is an absolute angle target
// in the controller's sign convention; the servo driver flips it.
type AxisController struct {
	Axis  ptz.Axis
	Cells AxisCells
	Poll  time.Duration
	Now   func() time.Time // defaults to time.Now

	pid *pid.Controller
}

func (a *AxisController) Name() string { return a.Axis.String() + "-pid" }

// Run reads the gains once, then spins until ctx is done.
func (a *AxisController) Run(ctx context.Context) error {
	a.Start()
	for {
		if err := pause(ctx, a.Poll); err != nil {
			return err
		}
		a.Step()
	}
}

// Start creates the PID loop from the current gain cells.
func (a *AxisController) Start() {
	g := a.Cells.Gains(a.Axis)
	a.pid = &pid.Controller{Kp: g.P, Ki: g.I, Kd: g.D}
	a.pid.Initialize(a.now())
}

// Step runs one control cycle and returns the published output.
func (a *AxisController) Step() float64 {
	err := float64(a.Cells.Center(a.Axis)) - a.Cells.Object(a.Axis)
	out := a.pid.Update(err, a.now())
	a.Cells.SetOutput(a.Axis, out)
	return out
}

func (a *AxisController) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
