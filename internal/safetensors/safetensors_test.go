package safetensors

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestWriteOpenRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "patch.safetensors")

	err := Write(path, []Tensor{
		{Name: "b.weight", Shape: []int{2, 2}, Data: []float32{1, -2, 3.5, 0}},
		{Name: "a.alpha", Shape: nil, Data: []float32{4}},
		{Name: "c.half", DType: "F16", Shape: []int{3}, Data: []float32{0.5, -1, 2}},
	}, map[string]string{"ss_network_dim": "4"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := f.Names(); !slices.Equal(got, []string{"a.alpha", "b.weight", "c.half"}) {
		t.Fatalf("Names: got %v", got)
	}
	if f.Metadata["ss_network_dim"] != "4" {
		t.Fatalf("metadata: got %v", f.Metadata)
	}

	w, info, err := f.ReadTensorF32("b.weight")
	if err != nil {
		t.Fatalf("ReadTensorF32: %v", err)
	}
	if !slices.Equal(info.Shape, []int{2, 2}) || !slices.Equal(w, []float32{1, -2, 3.5, 0}) {
		t.Fatalf("b.weight: shape %v data %v", info.Shape, w)
	}

	alpha, info, err := f.ReadTensorF32("a.alpha")
	if err != nil {
		t.Fatalf("ReadTensorF32(alpha): %v", err)
	}
	if len(info.Shape) != 0 || !slices.Equal(alpha, []float32{4}) {
		t.Fatalf("alpha: shape %v data %v", info.Shape, alpha)
	}

	half, info, err := f.ReadTensorF32("c.half")
	if err != nil {
		t.Fatalf("ReadTensorF32(half): %v", err)
	}
	if info.DType != "F16" || !slices.Equal(half, []float32{0.5, -1, 2}) {
		t.Fatalf("c.half: dtype %s data %v", info.DType, half)
	}
}

func TestNamesWithPrefix(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "m.safetensors")
	if err := Write(path, []Tensor{
		{Name: "te.x", Shape: []int{1}, Data: []float32{1}},
		{Name: "unet.b", Shape: []int{1}, Data: []float32{1}},
		{Name: "unet.a", Shape: []int{1}, Data: []float32{1}},
	}, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := f.NamesWithPrefix("unet."); !slices.Equal(got, []string{"unet.a", "unet.b"}) {
		t.Fatalf("NamesWithPrefix: got %v", got)
	}
	if f.Metadata != nil {
		t.Fatalf("expected no metadata, got %v", f.Metadata)
	}
}

func TestReadBF16(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bf16.safetensors")
	header := []byte(`{"w":{"dtype":"BF16","shape":[2],"data_offsets":[0,4]}}`)
	buf := make([]byte, 8, 8+len(header)+4)
	binary.LittleEndian.PutUint64(buf, uint64(len(header)))
	buf = append(buf, header...)
	// 1.0 and -2.0 in bfloat16.
	buf = binary.LittleEndian.AppendUint16(buf, 0x3F80)
	buf = binary.LittleEndian.AppendUint16(buf, 0xC000)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _, err := f.ReadTensorF32("w")
	if err != nil {
		t.Fatalf("ReadTensorF32: %v", err)
	}
	if !slices.Equal(got, []float32{1, -2}) {
		t.Fatalf("expected [1 -2], got %v", got)
	}
}

func TestReadTensorNotFound(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "x.safetensors")
	if err := Write(path, nil, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := f.ReadTensor("missing"); !errors.Is(err, ErrTensorNotFound) {
		t.Fatalf("expected ErrTensorNotFound, got %v", err)
	}
}

func TestOpenRejectsCorruptFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// Header claims 4 bytes of data that the file does not contain.
	noData := []byte(`{"w":{"dtype":"F32","shape":[1],"data_offsets":[0,4]}}`)

	cases := map[string][]byte{
		"short":       {1, 2, 3},
		"huge-header": binary.LittleEndian.AppendUint64(nil, 1<<40),
		"bad-json":    append(binary.LittleEndian.AppendUint64(nil, 3), []byte("{x}")...),
		"offsets":     append(binary.LittleEndian.AppendUint64(nil, uint64(len(noData))), noData...),
	}
	for name, data := range cases {
		path := filepath.Join(dir, name+".safetensors")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := Open(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestWriteRejectsBadTensors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cases := map[string][]Tensor{
		"size":     {{Name: "w", Shape: []int{2}, Data: []float32{1}}},
		"dtype":    {{Name: "w", DType: "I8", Shape: []int{1}, Data: []float32{1}}},
		"reserved": {{Name: metadataKey, Shape: []int{1}, Data: []float32{1}}},
		"dup":      {{Name: "w", Shape: []int{1}, Data: []float32{1}}, {Name: "w", Shape: []int{1}, Data: []float32{2}}},
	}
	for name, tensors := range cases {
		if err := Write(filepath.Join(dir, name), tensors, nil); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNumElements(t *testing.T) {
	t.Parallel()
	if n, err := NumElements(nil); err != nil || n != 1 {
		t.Fatalf("scalar: got %d, %v", n, err)
	}
	if n, err := NumElements([]int{2, 3, 4}); err != nil || n != 24 {
		t.Fatalf("2x3x4: got %d, %v", n, err)
	}
	if _, err := NumElements([]int{2, 0}); err == nil {
		t.Fatal("expected error for zero dim")
	}
}
