package tensor

import (
	"errors"
	"testing"
)

func TestMatMul(t *testing.T) {
	t.Parallel()
	a, _ := NewMatFromData(2, 3, []float32{1, 2, 3, 4, 5, 6})
	b, _ := NewMatFromData(3, 2, []float32{7, 8, 9, 10, 11, 12})
	dst := NewMat(2, 2)
	dst.Data[0] = 99 // must be overwritten

	if err := MatMul(dst, a, b); err != nil {
		t.Fatalf("MatMul: %v", err)
	}
	want := []float32{58, 64, 139, 154}
	for i, v := range want {
		if dst.Data[i] != v {
			t.Fatalf("element %d: expected %v, got %v", i, v, dst.Data[i])
		}
	}
}

func TestMatMulShapeMismatch(t *testing.T) {
	t.Parallel()
	err := MatMul(NewMat(2, 2), NewMat(2, 3), NewMat(2, 2))
	if !errors.Is(err, errShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestAddScaled(t *testing.T) {
	t.Parallel()
	dst, _ := NewMatFromData(1, 3, []float32{1, 1, 1})
	src, _ := NewMatFromData(1, 3, []float32{2, 4, -2})
	if err := AddScaled(dst, 0.5, src); err != nil {
		t.Fatalf("AddScaled: %v", err)
	}
	want := []float32{2, 3, 0}
	for i, v := range want {
		if dst.Data[i] != v {
			t.Fatalf("element %d: expected %v, got %v", i, v, dst.Data[i])
		}
	}
	if err := AddScaled(dst, 1, NewMat(3, 1)); !errors.Is(err, errShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestFromShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		shape []int
		r, c  int
	}{
		{[]int{6}, 1, 6},
		{[]int{2, 3}, 2, 3},
		{[]int{3, 2, 1, 1}, 3, 2},
	}
	for _, tc := range tests {
		m, err := FromShape(tc.shape, make([]float32, 6))
		if err != nil {
			t.Fatalf("FromShape(%v): %v", tc.shape, err)
		}
		if m.R != tc.r || m.C != tc.c {
			t.Fatalf("FromShape(%v): expected %dx%d, got %dx%d", tc.shape, tc.r, tc.c, m.R, m.C)
		}
	}
	if _, err := FromShape([]int{4, 2}, make([]float32, 6)); !errors.Is(err, errDataSizeMismatch) {
		t.Fatalf("expected size mismatch, got %v", err)
	}
	if _, err := FromShape(nil, nil); err == nil {
		t.Fatal("expected error for empty shape")
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	m, _ := NewMatFromData(1, 2, []float32{1, 2})
	c := m.Clone()
	c.Data[0] = 5
	if m.Data[0] != 1 {
		t.Fatal("Clone shares backing data")
	}
	if m.Equal(c) {
		t.Fatal("expected matrices to differ")
	}
	if MaxAbsDiff(m, c) != 4 {
		t.Fatalf("MaxAbsDiff: got %v", MaxAbsDiff(m, c))
	}
}
