// Package pid implements a positional PID control law over a time-stamped
// error sequence.
//
// The integral term is unbounded. There is no windup guard: callers that
// saturate the output (see the servo driver) are expected to absorb it.
// Heavy integral gains on an axis that stays off-target for long will
// therefore accumulate without limit.
package pid

import "time"

// Terms are the contributions of the last update, before gains.
type Terms struct {
	Proportional float64 `json:"p"`
	Integral     float64 `json:"i"`
	Derivative   float64 `json:"d"`
}

// Controller holds gains and the error history of one control loop.
// It is not safe for concurrent use; each loop owns its own Controller.
type Controller struct {
	Kp, Ki, Kd float64

	integral  float64
	prevError float64
	prevTime  time.Time
	last      Terms
}

// New returns a controller initialized at the current time.
func New(kp, ki, kd float64) *Controller {
	c := &Controller{Kp: kp, Ki: ki, Kd: kd}
	c.Initialize(time.Now())
	return c
}

// Initialize clears the integral and error history and sets the reference time.
func (c *Controller) Initialize(now time.Time) {
	c.integral = 0
	c.prevError = 0
	c.prevTime = now
	c.last = Terms{}
}

// Update advances the controller with the time elapsed since the previous call.
func (c *Controller) Update(err float64, now time.Time) float64 {
	return c.update(err, now, now.Sub(c.prevTime))
}

// UpdateDelta advances the controller with a caller supplied time step.
func (c *Controller) UpdateDelta(err float64, now time.Time, dt time.Duration) float64 {
	return c.update(err, now, dt)
}

func (c *Controller) update(err float64, now time.Time, dt time.Duration) float64 {
	seconds := dt.Seconds()
	deltaErr := err - c.prevError

	c.integral += err * seconds

	var derivative float64
	if seconds > 0 {
		derivative = deltaErr / seconds
	}

	c.last = Terms{Proportional: err, Integral: c.integral, Derivative: derivative}
	c.prevError = err
	c.prevTime = now

	return c.Kp*err + c.Ki*c.integral + c.Kd*derivative
}

// Terms returns the contributions computed by the last update.
func (c *Controller) Terms() Terms {
	return c.last
}
