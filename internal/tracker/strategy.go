package tracker

import (
	"time"

	"pantilt-tracker/internal/ptz"
	"pantilt-tracker/internal/state"
	"pantilt-tracker/internal/vision"
)

// PIDStrategy is the four-unit control path.
type PIDStrategy struct {
	Locator *Locator
	Pan     *AxisController
	Tilt    *AxisController
	Driver  *ServoDriver
}

// NewPIDStrategy wires the four units through cells. Gains and center
// must already be stored in cells.
func NewPIDStrategy(src vision.Source, p *Pipeline, cells *state.Cells, act ptz.Actuator, idle Point, poll time.Duration) *PIDStrategy {
	return &PIDStrategy{
		Locator: &Locator{Source: src, Pipeline: p, Cells: cells, Idle: idle},
		Pan:     &AxisController{Axis: ptz.Pan, Cells: cells, Poll: poll},
		Tilt:    &AxisController{Axis: ptz.Tilt, Cells: cells, Poll: poll},
		Driver:  &ServoDriver{Cells: cells, Actuator: act, Poll: poll},
	}
}

func (s *PIDStrategy) Units() []Unit {
	return []Unit{s.Locator, s.Pan, s.Tilt, s.Driver}
}

// DirectStrategy is the single-unit control path.
type DirectStrategy struct {
	Corrector *Corrector
}

func (s *DirectStrategy) Units() []Unit {
	return []Unit{s.Corrector}
}
