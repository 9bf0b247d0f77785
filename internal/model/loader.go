package model

import (
	"fmt"

	"github.com/samcharles93/loractl/internal/safetensors"
	"github.com/samcharles93/loractl/internal/tensor"
)

// Load reads every tensor of a safetensors file into a Model.
func Load(path string) (*Model, error) {
	f, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}
	tensors := make(map[string]tensor.Mat, len(f.Tensors))
	for _, name := range f.Names() {
		data, info, err := f.ReadTensorF32(name)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
		mat, err := tensor.FromShape(info.Shape, data)
		if err != nil {
			// Scalars are stored as 1x1.
			if len(info.Shape) != 0 {
				return nil, fmt.Errorf("model %s: tensor %s: %w", path, name, err)
			}
			mat, _ = tensor.NewMatFromData(1, 1, data)
		}
		tensors[name] = mat
	}
	return New(tensors)
}

// Save writes the model as F32 safetensors. Tensors are stored as 2-D.
func Save(path string, m *Model) error {
	tensors := make([]safetensors.Tensor, 0, m.Len())
	for _, name := range m.Names() {
		t := m.tensors[name]
		tensors = append(tensors, safetensors.Tensor{Name: name, Shape: []int{t.R, t.C}, Data: t.Data})
	}
	return safetensors.Write(path, tensors, map[string]string{"format": "loractl"})
}
