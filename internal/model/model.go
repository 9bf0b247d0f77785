// Package model holds the patchable base model: named weight tensors for
// the UNet and text encoder, a host slot with snapshot and restore, and the
// merger that folds LoRA modules into the weights.
package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/samcharles93/loractl/internal/tensor"
)

var ErrUnknownTensor = errors.New("model: unknown tensor")

// subModels are the key prefixes a patchable tensor may carry.
var subModels = []string{"unet", "te", "te1", "te2"}

// Model is an immutable set of named weights. Keys look like
// "unet.input_blocks.1.1.proj_in.weight". Patching always produces a new
// Model; tensors are shared between models until one of them is patched.
type Model struct {
	tensors  map[string]tensor.Mat
	byModule map[string]string
}

// New builds a Model. The map and the tensors are owned by the Model from
// this point on.
func New(tensors map[string]tensor.Mat) (*Model, error) {
	m := &Model{tensors: tensors, byModule: make(map[string]string, len(tensors))}
	for key := range tensors {
		if module, ok := ModuleName(key); ok {
			if prev, dup := m.byModule[module]; dup {
				return nil, fmt.Errorf("model: tensors %s and %s map to module %s", prev, key, module)
			}
			m.byModule[module] = key
		}
	}
	return m, nil
}

// ModuleName maps a tensor key to the LoRA module name that patches it:
// "te.text_model.encoder.layers.0.mlp.fc1.weight" becomes
// "lora_te_text_model_encoder_layers_0_mlp_fc1". Only ".weight" tensors of
// a known sub-model are patchable.
func ModuleName(key string) (string, bool) {
	base, ok := strings.CutSuffix(key, ".weight")
	if !ok {
		return "", false
	}
	sub, rest, ok := strings.Cut(base, ".")
	if !ok || rest == "" || !slices.Contains(subModels, sub) {
		return "", false
	}
	return "lora_" + sub + "_" + strings.ReplaceAll(rest, ".", "_"), true
}

// Lookup returns the tensor key patched by a LoRA module.
func (m *Model) Lookup(module string) (string, bool) {
	key, ok := m.byModule[module]
	return key, ok
}

// Names returns every tensor key in sorted order.
func (m *Model) Names() []string {
	return slices.Sorted(maps.Keys(m.tensors))
}

// Len is the number of tensors.
func (m *Model) Len() int {
	return len(m.tensors)
}

// Tensor returns a tensor by key. The returned Mat shares storage with the
// model and must not be modified.
func (m *Model) Tensor(key string) (tensor.Mat, bool) {
	t, ok := m.tensors[key]
	return t, ok
}

// Equal reports whether both models hold identical tensors.
func (m *Model) Equal(o *Model) bool {
	if m == o {
		return true
	}
	if m == nil || o == nil || len(m.tensors) != len(o.tensors) {
		return false
	}
	for key, t := range m.tensors {
		ot, ok := o.tensors[key]
		if !ok || !t.Equal(ot) {
			return false
		}
	}
	return true
}

// Diff returns the largest absolute difference per tensor key between two
// models with the same keys. Keys present in only one model are reported as
// ErrUnknownTensor.
func (m *Model) Diff(o *Model) (map[string]float64, error) {
	out := make(map[string]float64)
	for key, t := range m.tensors {
		ot, ok := o.tensors[key]
		if !ok || !t.SameShape(ot) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTensor, key)
		}
		if d := tensor.MaxAbsDiff(t, ot); d > 0 {
			out[key] = d
		}
	}
	if len(o.tensors) != len(m.tensors) {
		for key := range o.tensors {
			if _, ok := m.tensors[key]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownTensor, key)
			}
		}
	}
	return out, nil
}

// derive returns a copy of m whose tensor map can be modified without
// affecting m.
func (m *Model) derive() *Model {
	return &Model{tensors: maps.Clone(m.tensors), byModule: m.byModule}
}
