package safetensors

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/x448/float16"
)

// Tensor is an in-memory tensor to be written. DType defaults to F32.
type Tensor struct {
	Name  string
	DType string
	Shape []int
	Data  []float32
}

// Write creates a safetensors file at path. Tensors are laid out in name
// order. Only F32 and F16 are encoded.
func Write(path string, tensors []Tensor, metadata map[string]string) (err error) {
	ordered := slices.Clone(tensors)
	slices.SortFunc(ordered, func(a, b Tensor) int { return strings.Compare(a.Name, b.Name) })

	header := make(map[string]any, len(ordered)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}
	var offset int64
	for i := range ordered {
		t := &ordered[i]
		if t.DType == "" {
			t.DType = "F32"
		}
		if t.DType != "F32" && t.DType != "F16" {
			return fmt.Errorf("tensor %s: cannot encode dtype %s", t.Name, t.DType)
		}
		if t.Name == metadataKey {
			return fmt.Errorf("tensor name %q is reserved", t.Name)
		}
		if _, dup := header[t.Name]; dup {
			return fmt.Errorf("duplicate tensor %s", t.Name)
		}
		n, err := NumElements(t.Shape)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", t.Name, err)
		}
		if n != len(t.Data) {
			return fmt.Errorf("tensor %s: shape %v needs %d elements, have %d", t.Name, t.Shape, n, len(t.Data))
		}
		size, _ := ElemSize(t.DType)
		end := offset + int64(n*size)
		shape := t.Shape
		if shape == nil {
			shape = []int{}
		}
		header[t.Name] = tensorHeader{DType: t.DType, Shape: shape, DataOffsets: []int64{offset, end}}
		offset = end
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(headerBytes); err != nil {
		return err
	}
	var elem [4]byte
	for _, t := range ordered {
		for _, v := range t.Data {
			if t.DType == "F16" {
				binary.LittleEndian.PutUint16(elem[:2], float16.Fromfloat32(v).Bits())
				_, err = w.Write(elem[:2])
			} else {
				binary.LittleEndian.PutUint32(elem[:], math.Float32bits(v))
				_, err = w.Write(elem[:])
			}
			if err != nil {
				return err
			}
		}
	}
	return w.Flush()
}
