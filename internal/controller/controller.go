// Package controller applies LoRA patches at per-step weights over the
// course of a sampling run and puts the model back when the run ends.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/samcharles93/loractl/internal/directive"
	"github.com/samcharles93/loractl/internal/logger"
	"github.com/samcharles93/loractl/internal/lora"
	"github.com/samcharles93/loractl/internal/model"
	"github.com/samcharles93/loractl/internal/pipeline"
	"github.com/samcharles93/loractl/internal/schedule"
	"github.com/samcharles93/loractl/internal/weights"
)

// ModelHost owns the model the sampler runs with.
type ModelHost interface {
	Current() *model.Model
	Install(m *model.Model)
	Snapshot(m *model.Model) model.Snapshot
	Restore(s model.Snapshot)
}

// PayloadLoader finds and reads patch files.
type PayloadLoader interface {
	Locate(name string) (string, error)
	Load(name, path string) (*lora.Payload, error)
}

// Applier folds one patch into a model without modifying its input.
type Applier interface {
	Apply(ctx context.Context, m *model.Model, p *lora.Payload, s model.Strength, label string) (*model.Model, error)
}

// BaseActivator is the unscheduled patch behavior used while scheduling
// is switched off.
type BaseActivator interface {
	Activate(ctx context.Context, rc *pipeline.RunContext) error
}

// Options configures a Controller. Host and Loader are required.
type Options struct {
	Host    ModelHost
	Loader  PayloadLoader
	Applier Applier
	Base    BaseActivator
	Toggles *Toggles
}

// Controller drives the patch lifecycle of runs. It keeps no per-run
// state; everything lives in the Run returned by Activate.
type Controller struct {
	host    ModelHost
	loader  PayloadLoader
	applier Applier
	base    BaseActivator
	toggles *Toggles
}

// New returns a Controller. Applier defaults to model.Merger and Toggles to
// an active set.
func New(opts Options) *Controller {
	c := &Controller{
		host:    opts.Host,
		loader:  opts.Loader,
		applier: opts.Applier,
		base:    opts.Base,
		toggles: opts.Toggles,
	}
	if c.applier == nil {
		c.applier = model.Merger{}
	}
	if c.toggles == nil {
		c.toggles = NewToggles(true)
	}
	return c
}

// Toggles returns the switches read by the controller.
func (c *Controller) Toggles() *Toggles {
	return c.toggles
}

// Activate starts a run: resolves every lora directive (the first directive
// for a name wins), loads the payloads, and installs the model patched at
// the step 0 weights. Per-patch failures are recorded on the Run and the
// patch is left out; they never fail the activation.
func (c *Controller) Activate(ctx context.Context, rc *pipeline.RunContext) (*Run, error) {
	if rc == nil {
		return nil, errors.New("controller: nil run context")
	}
	id := rc.ID
	if id == "" {
		id = uuid.NewString()
	}
	run := newRun(id, rc.TotalSteps, rc)
	log := logger.FromContext(ctx)

	if !c.toggles.Active() {
		run.state = StatePassthrough
		if c.base != nil {
			if err := c.base.Activate(ctx, rc); err != nil {
				return run, fmt.Errorf("base activation: %w", err)
			}
		}
		log.Debug("scheduling disabled, passing through")
		return run, nil
	}

	for _, d := range directive.Filter(rc.Directives, directive.KindLora) {
		if _, seen := run.configs[d.Name]; seen || run.failed[d.Name] {
			continue
		}
		run.order = append(run.order, d.Name)
		cfg, err := weights.Resolve(ctx, d.Request())
		if err != nil {
			run.recordError(d.Name, err)
			continue
		}
		run.configs[d.Name] = cfg
		log.Debug("resolved patch weights", "patch", d.Name, "unet", cfg.Unet, "te", cfg.TE)
		c.load(run, d.Name)
	}

	live := run.live()
	if len(live) > 0 {
		run.original = c.host.Snapshot(c.host.Current())
		c.updateStrengths(run, live, 0, run.TotalSteps)
		c.install(ctx, run)
	}
	run.state = StateActivated
	log.Info("patches activated", "requested", len(run.order), "applied", len(run.live()))
	return run, nil
}

// Step re-applies every live patch at the weights of the given step. The
// model is rebuilt from the original snapshot each time, so steps never
// accumulate.
func (c *Controller) Step(ctx context.Context, run *Run, step, total int) error {
	if run == nil {
		return ErrRunNotActive
	}
	switch run.state {
	case StatePassthrough:
		return nil
	case StateActivated, StateStepping:
	default:
		return fmt.Errorf("%w: %s is %s", ErrRunNotActive, run.ID, run.state)
	}
	run.state = StateStepping
	run.step = step

	live := run.live()
	if len(live) == 0 {
		return nil
	}
	c.updateStrengths(run, live, step, total)
	c.install(ctx, run)
	return nil
}

// Deactivate ends a run: restores the original model, drops every cache and
// returns the consolidated error message, if any. The message is also
// written to the run's comment sink.
func (c *Controller) Deactivate(ctx context.Context, run *Run) (string, error) {
	if run == nil {
		return "", ErrRunNotActive
	}
	switch run.state {
	case StatePassthrough:
		run.state = StateIdle
		return "", nil
	case StateActivated, StateStepping:
	default:
		return "", fmt.Errorf("%w: %s is %s", ErrRunNotActive, run.ID, run.state)
	}

	if run.original.Valid() {
		c.host.Restore(run.original)
	}
	run.reset()

	if len(run.errs) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(run.errOrder))
	for _, name := range run.errOrder {
		parts = append(parts, fmt.Sprintf("%s (%s)", name, summary(run.errs[name])))
	}
	msg := "Networks with errors: " + strings.Join(parts, ", ")
	if run.sink != nil {
		run.sink.Comment(msg)
	}
	logger.FromContext(ctx).Warn("run finished with patch errors", "count", len(run.errOrder))
	clear(run.errs)
	run.errOrder = nil
	return msg, nil
}

func (c *Controller) load(run *Run, name string) {
	path, err := c.loader.Locate(name)
	if err != nil {
		run.recordError(name, err)
		return
	}
	run.paths[name] = path
	if _, cached := run.payloads[path]; cached {
		return
	}
	p, err := c.loader.Load(name, path)
	if err != nil {
		run.recordError(name, &PatchApplyError{Name: name, Err: err})
		return
	}
	run.payloads[path] = p
}

func (c *Controller) updateStrengths(run *Run, live []string, step, total int) {
	highRes := c.toggles.HighRes()
	for _, name := range live {
		cfg := run.configs[name]
		unet, te := cfg.ForPass(highRes)
		s := model.Strength{
			Unet: schedule.Evaluate(unet, step, total, schedule.DefaultStepOffset),
			TE:   schedule.Evaluate(te, step, total, schedule.DefaultStepOffset),
		}
		if !cfg.Blocks.IsZero() {
			s.Blocks = cfg.Blocks
		}
		run.strengths[name] = s
	}
}

// install folds every live patch over the original model in order and
// installs the result. A patch that fails to apply is recorded and left
// out from then on.
func (c *Controller) install(ctx context.Context, run *Run) {
	m := run.original.Model()
	if m == nil {
		return
	}
	log := logger.FromContext(ctx)
	for _, name := range run.live() {
		s := run.strengths[name]
		next, err := c.applier.Apply(ctx, m, run.payloads[run.paths[name]], s, name)
		if err != nil {
			run.recordError(name, &PatchApplyError{Name: name, Err: err})
			log.Warn("patch failed to apply", "patch", name, "error", err)
			continue
		}
		m = next
		log.Debug("patch applied", "patch", name, "step", run.step, "unet", s.Unet, "te", s.TE)
	}
	c.host.Install(m)
}
