// Package state holds the scalar cells shared by the tracking units.
//
// Every cell is loaded and stored atomically on its own. Nothing ties two
// cells together: a reader may see the X coordinate of one detection and the
// Y coordinate of the next. Each cell has one writer role:
//
//	object X/Y    object locator
//	center X/Y    startup configuration
//	pan/tilt out  the axis controller for that axis
//	gains         startup configuration
package state

import (
	"go.uber.org/atomic"

	"pantilt-tracker/internal/ptz"
)

// Gains are the three PID constants of one axis.
type Gains struct {
	P float64 `json:"p"`
	I float64 `json:"i"`
	D float64 `json:"d"`
}

type gainCells struct {
	p, i, d atomic.Float64
}

type axisCells struct {
	object atomic.Float64
	center atomic.Int64
	output atomic.Float64
	gains  gainCells
}

// Cells is the shared state of one tracking session.
type Cells struct {
	axes [len(ptz.Axes)]axisCells
}

// New returns cells with the target center set and all other cells zeroed.
func New(centerX, centerY int64) *Cells {
	c := &Cells{}
	c.SetCenter(ptz.Pan, centerX)
	c.SetCenter(ptz.Tilt, centerY)
	return c
}

// Object returns the last published subject coordinate for an axis
// (X for pan, Y for tilt).
func (c *Cells) Object(axis ptz.Axis) float64 { return c.axes[axis].object.Load() }

// SetObject publishes a subject coordinate.
func (c *Cells) SetObject(axis ptz.Axis, v float64) { c.axes[axis].object.Store(v) }

// Center returns the target coordinate for an axis.
func (c *Cells) Center(axis ptz.Axis) int64 { return c.axes[axis].center.Load() }

// SetCenter sets the target coordinate for an axis.
func (c *Cells) SetCenter(axis ptz.Axis, v int64) { c.axes[axis].center.Store(v) }

// Output returns the last control output of an axis controller.
func (c *Cells) Output(axis ptz.Axis) float64 { return c.axes[axis].output.Load() }

// SetOutput publishes a control output.
func (c *Cells) SetOutput(axis ptz.Axis, v float64) { c.axes[axis].output.Store(v) }

// Gains loads the three gain cells of an axis. The three loads are
// independent of each other.
func (c *Cells) Gains(axis ptz.Axis) Gains {
	g := &c.axes[axis].gains
	return Gains{P: g.p.Load(), I: g.i.Load(), D: g.d.Load()}
}

// SetGains stores the three gain cells of an axis.
func (c *Cells) SetGains(axis ptz.Axis, v Gains) {
	g := &c.axes[axis].gains
	g.p.Store(v.P)
	g.i.Store(v.I)
	g.d.Store(v.D)
}

// Snapshot is a point-in-time copy of the coordinate and output cells,
// read one cell at a time.
type Snapshot struct {
	ObjectX    float64 `json:"object_x"`
	ObjectY    float64 `json:"object_y"`
	CenterX    int64   `json:"center_x"`
	CenterY    int64   `json:"center_y"`
	PanOutput  float64 `json:"pan_output"`
	TiltOutput float64 `json:"tilt_output"`
}

// Snapshot reads every coordinate and output cell.
func (c *Cells) Snapshot() Snapshot {
	return Snapshot{
		ObjectX:    c.Object(ptz.Pan),
		ObjectY:    c.Object(ptz.Tilt),
		CenterX:    c.Center(ptz.Pan),
		CenterY:    c.Center(ptz.Tilt),
		PanOutput:  c.Output(ptz.Pan),
		TiltOutput: c.Output(ptz.Tilt),
	}
}
