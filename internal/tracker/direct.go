package tracker

import (
	"context"
	"fmt"
	"log"
	"math"

	"pantilt-tracker/internal/ptz"
	"pantilt-tracker/internal/vision"
)

// CorrectionPolicy maps a pixel offset beyond the deadband to an angle
// step in degrees, with the sign of the offset.
type CorrectionPolicy interface {
	Step(offset float64) float64
}

// Proportional steps by a fixed fraction of the offset.
type Proportional struct {
	Factor float64
}

func (p Proportional) Step(offset float64) float64 { return offset * p.Factor }

// FixedStep steps by Res degrees whatever the offset.
type FixedStep struct {
	Res float64
}

func (p FixedStep) Step(offset float64) float64 {
	switch {
	case offset > 0:
		return p.Res
	case offset < 0:
		return -p.Res
	}
	return 0
}

// Saturate returns current+step, halving step until the result lies in
// the mechanical range. A current angle outside the range is clamped
// first; a step that is not finite leaves the angle unchanged.
func Saturate(current, step float64) float64 {
	current = math.Max(ptz.MinAngle, math.Min(ptz.MaxAngle, current))
	if math.IsNaN(current) {
		current = 0
	}
	if math.IsNaN(step) || math.IsInf(step, 0) {
		return current
	}

	candidate := current + step
	for !ptz.InRange(candidate) {
		step /= 2
		candidate = current + step
	}
	return candidate
}

// Corrector is the single-loop control path: every detection nudges the
// mount toward Reference without a PID stage.
type Corrector struct {
	Source    vision.Source
	Pipeline  *Pipeline
	Actuator  ptz.Actuator
	Reference Point
	Slack     float64 // deadband in pixels
	Policy    CorrectionPolicy
	Cells     ObjectPublisher // optional, for telemetry
}

func (c *Corrector) Name() string { return "corrector" }

// Run enables both servos and loops until ctx is done or a frame read or
// servo command fails.
func (c *Corrector) Run(ctx context.Context) error {
	for _, axis := range ptz.Axes {
		if err := c.Actuator.Enable(axis, true); err != nil {
			return fmt.Errorf("failed to enable %s servo: %w", axis, err)
		}
	}
	log.Printf("Corrector: Start capturing...")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
}

// Step processes one frame. Frames without a detection are skipped.
func (c *Corrector) Step() error {
	frame, err := c.Source.Read()
	if err != nil {
		return fmt.Errorf("failed to read frame: %w", err)
	}
	defer frame.Close()

	center, found, err := c.Pipeline.Locate(frame)
	if err != nil {
		log.Printf("Corrector: %v", err)
	}
	if !found {
		return nil
	}
	if c.Cells != nil {
		c.Cells.SetObject(ptz.Pan, center.X)
		c.Cells.SetObject(ptz.Tilt, center.Y)
	}

	if err := c.correct(ptz.Tilt, center.Y-c.Reference.Y); err != nil {
		return err
	}
	return c.correct(ptz.Pan, center.X-c.Reference.X)
}

func (c *Corrector) correct(axis ptz.Axis, offset float64) error {
	if math.Abs(offset) <= c.Slack {
		return nil
	}

	step := c.Policy.Step(offset)
	if axis == ptz.Pan {
		// Pan servo turns opposite to image X.
		step = -step
	}

	current, err := ptz.Get(c.Actuator, axis)
	if err != nil {
		return fmt.Errorf("failed to read %s angle: %w", axis, err)
	}
	if err := ptz.Set(c.Actuator, axis, Saturate(current, step)); err != nil {
		return fmt.Errorf("failed to move %s servo: %w", axis, err)
	}
	return nil
}
