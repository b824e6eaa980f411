package ptz

import (
	"sync"
	"time"
)

// Throttle coalesces rapid updates, flushing immediately when possible
// and scheduling a trailing edge flush for updates during cooldown.
// The flush callback runs with the throttle lock held.
type Throttle struct {
	interval time.Duration
	stopCh   <-chan struct{}
	flush    func()

	mu           sync.Mutex
	lastSendTime time.Time
	timerRunning bool
}

// NewThrottle returns a throttle that calls flush at most once per interval.
// Pending trailing flushes are abandoned once stopCh closes.
func NewThrottle(interval time.Duration, stopCh <-chan struct{}, flush func()) *Throttle {
	return &Throttle{interval: interval, stopCh: stopCh, flush: flush}
}

// Trigger requests a flush.
func (t *Throttle) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.Sub(t.lastSendTime) >= t.interval {
		t.flush()
		t.lastSendTime = now
	} else if !t.timerRunning {
		t.timerRunning = true
		remaining := t.interval - now.Sub(t.lastSendTime)
		go func() {
			select {
			case <-time.After(remaining):
				t.mu.Lock()
				t.flush()
				t.lastSendTime = time.Now()
				t.timerRunning = false
				t.mu.Unlock()
			case <-t.stopCh:
			}
		}()
	}
}

// Now flushes immediately, bypassing the interval.
func (t *Throttle) Now() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flush()
	t.lastSendTime = time.Now()
}
