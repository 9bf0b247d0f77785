package controller

import "sync/atomic"

// Toggles are the process-wide switches an operator can flip while runs
// are in flight.
type Toggles struct {
	active  atomic.Bool
	highRes atomic.Bool
}

// NewToggles returns toggles with scheduling enabled or disabled.
func NewToggles(active bool) *Toggles {
	t := &Toggles{}
	t.active.Store(active)
	return t
}

// Active reports whether scheduled patching is enabled.
func (t *Toggles) Active() bool { return t.active.Load() }

// SetActive enables or disables scheduled patching for runs started later.
func (t *Toggles) SetActive(v bool) { t.active.Store(v) }

// HighRes reports whether the sampler is in its high-resolution pass.
func (t *Toggles) HighRes() bool { return t.highRes.Load() }

// SetHighRes marks the start or end of the high-resolution pass.
func (t *Toggles) SetHighRes(v bool) { t.highRes.Store(v) }
