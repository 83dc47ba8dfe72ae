package sim

import (
	"context"
	"errors"
	"sync"
)

// ErrEnableRefused is returned by an Actuator configured to refuse enabling.
var ErrEnableRefused = errors.New("actuator refused to enable")

// Actuator tracks a simulated robot's enable state.
type Actuator struct {
	mu       sync.Mutex
	enabled  bool
	refuse   bool
	enables  int
	disables int
}

// NewActuator creates an actuator. If refuse is set, Enable always fails.
func NewActuator(refuse bool) *Actuator {
	return &Actuator{refuse: refuse}
}

// Enable powers the arm.
func (a *Actuator) Enable(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enables++
	if a.refuse {
		return ErrEnableRefused
	}
	a.enabled = true
	return nil
}

// Disable powers the arm down.
func (a *Actuator) Disable(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disables++
	a.enabled = false
	return nil
}

// Enabled reports the current state.
func (a *Actuator) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Counts returns how many times Enable and Disable were called.
func (a *Actuator) Counts() (enables, disables int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enables, a.disables
}
