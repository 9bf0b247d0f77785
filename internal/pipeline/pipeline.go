// Package pipeline drives the hook sequence of a generation run: start
// hooks, one callback per sampling step, an optional high-resolution pass and
// end hooks. It does no sampling of its own.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/samcharles93/loractl/internal/directive"
	"github.com/samcharles93/loractl/internal/logger"
)

var ErrInvalidRequest = errors.New("pipeline: invalid request")

// StepFunc is called once per sampling step.
type StepFunc func(ctx context.Context, step, total int) error

// RunContext is the per-run surface handed to extensions.
type RunContext struct {
	ID         string
	Prompt     string
	TotalSteps int
	Directives []directive.Directive

	mu       sync.Mutex
	comments []string
	hooks    []StepFunc
}

// NewRunContext returns a context for one run. An empty id gets a fresh one.
func NewRunContext(id, prompt string, steps int, ds []directive.Directive) *RunContext {
	if id == "" {
		id = uuid.NewString()
	}
	return &RunContext{ID: id, Prompt: prompt, TotalSteps: steps, Directives: ds}
}

// OnEachSamplingStep registers fn for every step of this run.
func (rc *RunContext) OnEachSamplingStep(fn StepFunc) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.hooks = append(rc.hooks, fn)
}

// Comment appends a user-visible message to the run output.
func (rc *RunContext) Comment(msg string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.comments = append(rc.comments, msg)
}

// Comments returns the messages written so far.
func (rc *RunContext) Comments() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return slices.Clone(rc.comments)
}

func (rc *RunContext) step(ctx context.Context, step, total int) error {
	rc.mu.Lock()
	hooks := slices.Clone(rc.hooks)
	rc.mu.Unlock()
	for _, fn := range hooks {
		if err := fn(ctx, step, total); err != nil {
			return err
		}
	}
	return nil
}

// Extension is notified at the start and end of every run.
type Extension interface {
	OnRunStart(ctx context.Context, rc *RunContext) error
	OnRunEnd(ctx context.Context, rc *RunContext) error
}

// Pass names a sampling pass.
type Pass string

const (
	PassBase    Pass = "base"
	PassHighRes Pass = "hires"
)

// StepEvent is reported to the observer after every step's hooks ran.
type StepEvent struct {
	RunID string
	Pass  Pass
	Step  int
	Total int
}

// Request describes one generation.
type Request struct {
	ID         string
	Prompt     string
	Steps      int
	HiresSteps int
}

// Result is what a run left behind.
type Result struct {
	ID         string
	Prompt     string
	Directives []directive.Directive
	Steps      int
	HiresSteps int
	Comments   []string
}

// Options configures a Pipeline.
type Options struct {
	Extensions []Extension
	// SetHighRes is toggled on for the duration of the high-resolution pass.
	SetHighRes func(bool)
	// Observer sees every completed step.
	Observer func(ctx context.Context, ev StepEvent)
}

// Pipeline runs generations.
type Pipeline struct {
	opts Options
}

// New returns a Pipeline.
func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Generate runs one generation. End hooks of every started extension run
// even when a start hook or a step fails; the Result is returned with the
// error so comments written by end hooks are not lost.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Steps <= 0 {
		return nil, fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidRequest, req.Steps)
	}
	if req.HiresSteps < 0 {
		return nil, fmt.Errorf("%w: hires steps must not be negative, got %d", ErrInvalidRequest, req.HiresSteps)
	}

	clean, ds, perr := directive.Parse(req.Prompt)
	rc := NewRunContext(req.ID, clean, req.Steps, ds)
	log := logger.FromContext(ctx).With("run", rc.ID)
	if perr != nil {
		log.Warn("skipping malformed directives", "error", perr)
	}
	ctx = logger.WithContext(ctx, log)

	started, err := p.start(ctx, rc)
	if err == nil {
		err = p.sample(ctx, rc, req)
	}
	for _, ext := range started {
		if endErr := ext.OnRunEnd(ctx, rc); endErr != nil {
			err = errors.Join(err, fmt.Errorf("run end: %w", endErr))
		}
	}
	if err == nil {
		log.Debug("run complete", "steps", req.Steps, "hires_steps", req.HiresSteps)
	}

	return &Result{
		ID:         rc.ID,
		Prompt:     clean,
		Directives: ds,
		Steps:      req.Steps,
		HiresSteps: req.HiresSteps,
		Comments:   rc.Comments(),
	}, err
}

func (p *Pipeline) start(ctx context.Context, rc *RunContext) ([]Extension, error) {
	started := make([]Extension, 0, len(p.opts.Extensions))
	for _, ext := range p.opts.Extensions {
		if err := ext.OnRunStart(ctx, rc); err != nil {
			return started, fmt.Errorf("run start: %w", err)
		}
		started = append(started, ext)
	}
	return started, nil
}

func (p *Pipeline) sample(ctx context.Context, rc *RunContext, req Request) error {
	if err := p.pass(ctx, rc, PassBase, req.Steps); err != nil {
		return err
	}
	if req.HiresSteps > 0 {
		return p.highRes(ctx, rc, req.HiresSteps)
	}
	return nil
}

func (p *Pipeline) highRes(ctx context.Context, rc *RunContext, steps int) error {
	if p.opts.SetHighRes != nil {
		p.opts.SetHighRes(true)
		defer p.opts.SetHighRes(false)
	}
	return p.pass(ctx, rc, PassHighRes, steps)
}

func (p *Pipeline) pass(ctx context.Context, rc *RunContext, pass Pass, total int) error {
	for step := range total {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := rc.step(ctx, step, total); err != nil {
			return fmt.Errorf("%s step %d: %w", pass, step, err)
		}
		if p.opts.Observer != nil {
			p.opts.Observer(ctx, StepEvent{RunID: rc.ID, Pass: pass, Step: step, Total: total})
		}
	}
	return nil
}
