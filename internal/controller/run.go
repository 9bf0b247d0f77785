package controller

import (
	"maps"
	"slices"

	"github.com/samcharles93/loractl/internal/lora"
	"github.com/samcharles93/loractl/internal/model"
	"github.com/samcharles93/loractl/internal/weights"
)

// State is the lifecycle position of a Run.
type State int

const (
	StateIdle State = iota
	StateActivated
	StateStepping
	// StatePassthrough marks a run activated while scheduling was switched
	// off. Step and Deactivate leave the model alone.
	StatePassthrough
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActivated:
		return "activated"
	case StateStepping:
		return "stepping"
	case StatePassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// CommentSink receives the user-visible end-of-run message.
type CommentSink interface {
	Comment(msg string)
}

// Run is the state of one generation run. Every cache lives here, so runs
// never see each other's schedules or payloads. A Run must be driven from
// one goroutine.
type Run struct {
	ID         string
	TotalSteps int

	sink  CommentSink
	state State
	step  int

	order     []string
	configs   map[string]weights.Config
	paths     map[string]string
	payloads  map[string]*lora.Payload
	strengths map[string]model.Strength
	failed    map[string]bool

	errs     map[string]error
	errOrder []string

	original model.Snapshot
}

func newRun(id string, totalSteps int, sink CommentSink) *Run {
	return &Run{
		ID:         id,
		TotalSteps: totalSteps,
		sink:       sink,
		configs:    make(map[string]weights.Config),
		paths:      make(map[string]string),
		payloads:   make(map[string]*lora.Payload),
		strengths:  make(map[string]model.Strength),
		failed:     make(map[string]bool),
		errs:       make(map[string]error),
	}
}

// State returns the lifecycle state.
func (r *Run) State() State { return r.state }

// Step returns the last step applied.
func (r *Run) Step() int { return r.step }

// Patches returns the names of the requested patches in first-seen order,
// including ones that failed.
func (r *Run) Patches() []string { return slices.Clone(r.order) }

// Config returns the cached weight configuration of a patch.
func (r *Run) Config(name string) (weights.Config, bool) {
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Strength returns the weights a patch was last applied with.
func (r *Run) Strength(name string) (model.Strength, bool) {
	s, ok := r.strengths[name]
	return s, ok
}

// Errors returns the recorded per-patch failures.
func (r *Run) Errors() map[string]error { return maps.Clone(r.errs) }

// Cached reports how many schedules and payloads the run still holds.
func (r *Run) Cached() (configs, payloads int) {
	return len(r.configs), len(r.payloads)
}

func (r *Run) recordError(name string, err error) {
	if _, seen := r.errs[name]; !seen {
		r.errOrder = append(r.errOrder, name)
	}
	r.errs[name] = err
	r.failed[name] = true
}

// live returns the patches still eligible for application, in order.
func (r *Run) live() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.failed[name] {
			continue
		}
		if _, ok := r.payloads[r.paths[name]]; !ok {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (r *Run) reset() {
	r.order = nil
	clear(r.configs)
	clear(r.paths)
	clear(r.payloads)
	clear(r.strengths)
	clear(r.failed)
	r.original = model.Snapshot{}
	r.state = StateIdle
}
