package model

import "sync"

// Snapshot is the pre-patch state of a model. Models are immutable, so a
// snapshot is a reference to the model it was taken from.
type Snapshot struct {
	model *Model
}

// Model returns the snapshotted model, or nil for a zero Snapshot.
func (s Snapshot) Model() *Model {
	return s.model
}

// Valid reports whether the snapshot holds a model.
func (s Snapshot) Valid() bool {
	return s.model != nil
}

// Host is the slot holding the model the sampler currently runs with.
type Host struct {
	mu      sync.Mutex
	current *Model
}

// NewHost returns a host serving m.
func NewHost(m *Model) *Host {
	return &Host{current: m}
}

// Current returns the installed model.
func (h *Host) Current() *Model {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Install replaces the served model.
func (h *Host) Install(m *Model) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = m
}

// Snapshot captures m so it can be restored later.
func (h *Host) Snapshot(m *Model) Snapshot {
	return Snapshot{model: m}
}

// Restore installs the snapshotted model. A zero Snapshot is ignored.
func (h *Host) Restore(s Snapshot) {
	if !s.Valid() {
		return
	}
	h.Install(s.model)
}
