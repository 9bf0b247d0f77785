// Package lora loads low-rank patch files and splits them into UNet and
// text encoder modules.
package lora

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/samcharles93/loractl/internal/safetensors"
	"github.com/samcharles93/loractl/internal/tensor"
)

const (
	PrefixUnet = "lora_unet_"
	PrefixTE   = "lora_te"

	suffixDown  = ".lora_down.weight"
	suffixUp    = ".lora_up.weight"
	suffixAlpha = ".alpha"
)

var ErrIncompleteModule = errors.New("lora: module is missing up or down weights")

// Module is one low-rank pair. Applying it adds scale*Up@Down to the
// matching base weight.
type Module struct {
	Name     string
	Down     tensor.Mat
	Up       tensor.Mat
	Alpha    float32
	HasAlpha bool
}

// Rank is the inner dimension of the pair.
func (m Module) Rank() int {
	return m.Down.R
}

// Scale is alpha/rank, or 1 when the file carries no alpha.
func (m Module) Scale() float32 {
	if !m.HasAlpha || m.Rank() == 0 {
		return 1
	}
	return m.Alpha / float32(m.Rank())
}

// Delta returns Up@Down, unscaled.
func (m Module) Delta() (tensor.Mat, error) {
	out := tensor.NewMat(m.Up.R, m.Down.C)
	if err := tensor.MatMul(out, m.Up, m.Down); err != nil {
		return tensor.Mat{}, fmt.Errorf("module %s: %w", m.Name, err)
	}
	return out, nil
}

// Payload is a loaded patch file.
type Payload struct {
	Name     string
	Path     string
	Metadata map[string]string
	Unet     map[string]Module
	TE       map[string]Module
	// Ignored lists tensors that belong to neither sub-model.
	Ignored []string
}

// UnetNames returns the UNet module names in sorted order.
func (p *Payload) UnetNames() []string {
	return slices.Sorted(maps.Keys(p.Unet))
}

// TENames returns the text encoder module names in sorted order.
func (p *Payload) TENames() []string {
	return slices.Sorted(maps.Keys(p.TE))
}

// Decode splits a safetensors file into modules.
func Decode(name string, f *safetensors.File) (*Payload, error) {
	p := &Payload{
		Name:     name,
		Path:     f.Path,
		Metadata: f.Metadata,
		Unet:     make(map[string]Module),
		TE:       make(map[string]Module),
	}

	partial := make(map[string]*Module)
	for _, key := range f.Names() {
		module, suffix, ok := splitKey(key)
		if !ok {
			p.Ignored = append(p.Ignored, key)
			continue
		}
		m := partial[module]
		if m == nil {
			m = &Module{Name: module}
			partial[module] = m
		}

		data, info, err := f.ReadTensorF32(key)
		if err != nil {
			return nil, fmt.Errorf("lora %s: %w", name, err)
		}
		switch suffix {
		case suffixAlpha:
			if len(data) != 1 {
				return nil, fmt.Errorf("lora %s: %s: alpha must be a scalar", name, key)
			}
			m.Alpha, m.HasAlpha = data[0], true
		case suffixDown, suffixUp:
			mat, err := tensor.FromShape(info.Shape, data)
			if err != nil {
				return nil, fmt.Errorf("lora %s: %s: %w", name, key, err)
			}
			if suffix == suffixDown {
				m.Down = mat
			} else {
				m.Up = mat
			}
		}
	}

	for module, m := range partial {
		if m.Down.Data == nil || m.Up.Data == nil {
			return nil, fmt.Errorf("lora %s: %w: %s", name, ErrIncompleteModule, module)
		}
		if m.Up.C != m.Down.R {
			return nil, fmt.Errorf("lora %s: module %s: up is %dx%d but down has rank %d", name, module, m.Up.R, m.Up.C, m.Down.R)
		}
		if strings.HasPrefix(module, PrefixUnet) {
			p.Unet[module] = *m
		} else {
			p.TE[module] = *m
		}
	}
	return p, nil
}

// splitKey separates "lora_unet_x.lora_down.weight" into its module name and
// suffix. Keys that are not LoRA module tensors report false.
func splitKey(key string) (module, suffix string, ok bool) {
	if !strings.HasPrefix(key, PrefixUnet) && !strings.HasPrefix(key, PrefixTE) {
		return "", "", false
	}
	for _, s := range []string{suffixDown, suffixUp, suffixAlpha} {
		if name, found := strings.CutSuffix(key, s); found && name != "" {
			return name, s, true
		}
	}
	return "", "", false
}

// Save writes the payload's modules to a safetensors file at path.
func Save(path string, p *Payload) error {
	var tensors []safetensors.Tensor
	add := func(modules map[string]Module) {
		for name, m := range modules {
			tensors = append(tensors,
				safetensors.Tensor{Name: name + suffixDown, Shape: []int{m.Down.R, m.Down.C}, Data: m.Down.Data},
				safetensors.Tensor{Name: name + suffixUp, Shape: []int{m.Up.R, m.Up.C}, Data: m.Up.Data},
			)
			if m.HasAlpha {
				tensors = append(tensors, safetensors.Tensor{Name: name + suffixAlpha, Data: []float32{m.Alpha}})
			}
		}
	}
	add(p.Unet)
	add(p.TE)
	return safetensors.Write(path, tensors, p.Metadata)
}
