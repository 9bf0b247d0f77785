package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/samcharles93/loractl/internal/pipeline"
)

// Extension hooks a Controller into the pipeline. Runs are tracked by run
// ID, so several pipelines may share one Extension.
type Extension struct {
	ctrl *Controller

	mu   sync.Mutex
	runs map[string]*Run
}

// NewExtension wraps c.
func NewExtension(c *Controller) *Extension {
	return &Extension{ctrl: c, runs: make(map[string]*Run)}
}

// OnRunStart activates the run and registers its step hook.
func (e *Extension) OnRunStart(ctx context.Context, rc *pipeline.RunContext) error {
	e.mu.Lock()
	if _, dup := e.runs[rc.ID]; dup {
		e.mu.Unlock()
		return fmt.Errorf("controller: run %s already started", rc.ID)
	}
	// A nil entry reserves the ID while the run activates.
	e.runs[rc.ID] = nil
	e.mu.Unlock()

	run, err := e.ctrl.Activate(ctx, rc)
	if err != nil {
		e.mu.Lock()
		delete(e.runs, rc.ID)
		e.mu.Unlock()
		return err
	}
	e.mu.Lock()
	e.runs[rc.ID] = run
	e.mu.Unlock()

	rc.OnEachSamplingStep(func(ctx context.Context, step, total int) error {
		return e.ctrl.Step(ctx, run, step, total)
	})
	return nil
}

// OnRunEnd deactivates the run and forgets it.
func (e *Extension) OnRunEnd(ctx context.Context, rc *pipeline.RunContext) error {
	e.mu.Lock()
	run := e.runs[rc.ID]
	if run != nil {
		delete(e.runs, rc.ID)
	}
	e.mu.Unlock()
	if run == nil {
		return fmt.Errorf("%w: %s", ErrRunNotActive, rc.ID)
	}
	_, err := e.ctrl.Deactivate(ctx, run)
	return err
}

// Active returns the number of runs between start and end.
func (e *Extension) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, run := range e.runs {
		if run != nil {
			n++
		}
	}
	return n
}
