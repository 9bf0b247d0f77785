package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/samcharles93/loractl/internal/logger"
	"github.com/samcharles93/loractl/internal/lora"
	"github.com/samcharles93/loractl/internal/tensor"
)

var ErrShapeMismatch = errors.New("model: patch shape does not match base weight")

// BlockScaler scales UNet modules per block.
type BlockScaler interface {
	Ratio(block string) float64
}

// Strength is the blend weight of one patch application.
type Strength struct {
	Unet   float64
	TE     float64
	Blocks BlockScaler
}

// Merger folds LoRA deltas into a model.
type Merger struct{}

// Apply returns a new model with every module of p added at the given
// strength: W + weight * scale * Up@Down. m is never modified. Modules
// with no matching tensor are skipped.
func (Merger) Apply(ctx context.Context, m *Model, p *lora.Payload, s Strength, label string) (*Model, error) {
	if m == nil {
		return nil, errors.New("model: nil base model")
	}
	if p == nil {
		return nil, errors.New("model: nil payload")
	}
	out := m.derive()
	patched := make(map[string]bool)
	unmatched := 0

	apply := func(name string, mod lora.Module, weight float64) error {
		key, ok := m.Lookup(name)
		if !ok {
			unmatched++
			return nil
		}
		if s.Blocks != nil && weight != 0 {
			if block := BlockOf(key); block != "" {
				weight *= s.Blocks.Ratio(block)
			}
		}
		if weight == 0 {
			return nil
		}
		base := out.tensors[key]
		if base.R != mod.Up.R || base.C != mod.Down.C {
			return fmt.Errorf("%w: %s is %dx%d, %s produces %dx%d", ErrShapeMismatch, key, base.R, base.C, name, mod.Up.R, mod.Down.C)
		}
		delta, err := mod.Delta()
		if err != nil {
			return err
		}
		if !patched[key] {
			base = base.Clone()
			out.tensors[key] = base
			patched[key] = true
		}
		return tensor.AddScaled(base, float32(weight)*mod.Scale(), delta)
	}

	for _, name := range p.UnetNames() {
		if err := apply(name, p.Unet[name], s.Unet); err != nil {
			return nil, fmt.Errorf("apply %s: %w", label, err)
		}
	}
	for _, name := range p.TENames() {
		if err := apply(name, p.TE[name], s.TE); err != nil {
			return nil, fmt.Errorf("apply %s: %w", label, err)
		}
	}

	if unmatched > 0 {
		logger.FromContext(ctx).Debug("patch modules without a base weight", "patch", label, "count", unmatched)
	}
	return out, nil
}
