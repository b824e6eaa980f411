package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pantilt-tracker/internal/ptz"
)

// UnitState is the lifecycle state of one unit.
type UnitState string

const (
	StatePending UnitState = "pending"
	StateRunning UnitState = "running"
	StateStopped UnitState = "stopped"
	StateFailed  UnitState = "failed"
)

// Health is the supervisor's view for health checks.
type Health struct {
	Status string               `json:"status"` // "healthy", "degraded" or "stopped"
	Units  map[string]UnitState `json:"units"`
}

// DefaultGrace bounds how long Run waits for units after the servos are
// disabled. A unit blocked in a camera read may never return.
const DefaultGrace = 2 * time.Second

// Supervisor runs the units of a strategy and owns the safe shutdown of
// the actuator: whatever ends the run, both servos are disabled through
// the guard before Run returns, and no unit can move them afterwards.
type Supervisor struct {
	Guard *ptz.Guard
	Grace time.Duration

	mu     sync.Mutex
	states map[string]UnitState
	done   bool
}

type unitResult struct {
	name string
	err  error
}

// Run starts every unit and blocks until ctx is done or any unit
// returns. It returns nil on a requested shutdown and the first unit
// failure otherwise.
func (s *Supervisor) Run(ctx context.Context, units ...Unit) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.states = make(map[string]UnitState, len(units))
	for _, u := range units {
		s.states[u.Name()] = StatePending
	}
	s.done = false
	s.mu.Unlock()

	results := make(chan unitResult, len(units))
	for _, u := range units {
		s.setState(u.Name(), StateRunning)
		go func(u Unit) {
			results <- unitResult{name: u.Name(), err: runUnit(ctx, u)}
		}(u)
	}

	var failure error
	remaining := len(units)
	record := func(r unitResult) {
		remaining--
		switch {
		case r.err == nil || errors.Is(r.err, context.Canceled):
			s.setState(r.name, StateStopped)
			if ctx.Err() == nil && failure == nil {
				failure = fmt.Errorf("%s: unit exited", r.name)
			}
		case ctx.Err() != nil:
			// Collateral of the shutdown, such as a read on a closed camera.
			s.setState(r.name, StateStopped)
			log.Printf("Supervisor: Unit %s stopped: %v", r.name, r.err)
		default:
			s.setState(r.name, StateFailed)
			log.Printf("Supervisor: Unit %s failed: %v", r.name, r.err)
			if failure == nil {
				failure = fmt.Errorf("%s: %w", r.name, r.err)
			}
		}
	}

wait:
	for remaining > 0 {
		select {
		case r := <-results:
			record(r)
			break wait
		case <-ctx.Done():
			break wait
		}
	}
	cancel()

	if err := s.Guard.Halt(); err != nil {
		log.Printf("Supervisor: Failed to disable servos: %v", err)
	} else {
		log.Printf("Supervisor: Servos disabled")
	}

	grace := s.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
drain:
	for remaining > 0 {
		select {
		case r := <-results:
			record(r)
		case <-timer.C:
			log.Printf("Supervisor: %d unit(s) still running after %v", remaining, grace)
			break drain
		}
	}

	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	return failure
}

func runUnit(ctx context.Context, u Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return u.Run(ctx)
}

func (s *Supervisor) setState(name string, st UnitState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[name] = st
}

// Health reports "healthy" while every unit runs, "degraded" once any
// unit has stopped or failed and "stopped" after Run returned.
func (s *Supervisor) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := Health{Status: "healthy", Units: make(map[string]UnitState, len(s.states))}
	for name, st := range s.states {
		h.Units[name] = st
		if st != StateRunning {
			h.Status = "degraded"
		}
	}
	if s.done {
		h.Status = "stopped"
	}
	return h
}
