package tensor

import (
	"errors"
	"fmt"
	"math"
)

var (
	errNegativeDim      = errors.New("tensor: negative dimension")
	errShapeMismatch    = errors.New("tensor: shape mismatch")
	errDataSizeMismatch = errors.New("tensor: data length does not match shape")
)

// Mat is a dense row-major float32 matrix. Tensors with more than two
// dimensions are stored flattened: R is the first dimension and C the
// product of the rest.
type Mat struct {
	R, C int
	Data []float32
}

// NewMat allocates a zeroed r x c matrix.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic(errNegativeDim)
	}
	return Mat{R: r, C: c, Data: make([]float32, r*c)}
}

// NewMatFromData wraps data as an r x c matrix without copying.
func NewMatFromData(r, c int, data []float32) (Mat, error) {
	if r < 0 || c < 0 {
		return Mat{}, errNegativeDim
	}
	if r*c != len(data) {
		return Mat{}, fmt.Errorf("%w: %dx%d vs %d", errDataSizeMismatch, r, c, len(data))
	}
	return Mat{R: r, C: c, Data: data}, nil
}

// FromShape wraps data using a tensor shape, flattening trailing dims.
func FromShape(shape []int, data []float32) (Mat, error) {
	switch len(shape) {
	case 0:
		return Mat{}, fmt.Errorf("%w: empty shape", errShapeMismatch)
	case 1:
		return NewMatFromData(1, shape[0], data)
	}
	c := 1
	for _, d := range shape[1:] {
		if d < 0 {
			return Mat{}, errNegativeDim
		}
		c *= d
	}
	return NewMatFromData(shape[0], c, data)
}

// Clone returns a deep copy of m.
func (m Mat) Clone() Mat {
	out := Mat{R: m.R, C: m.C, Data: make([]float32, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// At returns element (i, j).
func (m Mat) At(i, j int) float32 {
	return m.Data[i*m.C+j]
}

// Row returns row i as a slice of the backing data.
func (m Mat) Row(i int) []float32 {
	return m.Data[i*m.C : (i+1)*m.C]
}

// SameShape reports whether m and o have equal dimensions.
func (m Mat) SameShape(o Mat) bool {
	return m.R == o.R && m.C == o.C
}

// Equal reports element-wise equality.
func (m Mat) Equal(o Mat) bool {
	if !m.SameShape(o) {
		return false
	}
	for i, v := range m.Data {
		if v != o.Data[i] {
			return false
		}
	}
	return true
}

// MatMul computes dst = a @ b. dst must be a.R x b.C.
func MatMul(dst, a, b Mat) error {
	if a.C != b.R || dst.R != a.R || dst.C != b.C {
		return fmt.Errorf("%w: (%dx%d) @ (%dx%d) -> (%dx%d)", errShapeMismatch, a.R, a.C, b.R, b.C, dst.R, dst.C)
	}
	clear(dst.Data)
	if dst.R == 0 || dst.C == 0 {
		return nil
	}
	gemmPar(dst, a, b, gemmWorkers(dst.R, a.R*a.C*b.C))
	return nil
}

// AddScaled computes dst += alpha * src.
func AddScaled(dst Mat, alpha float32, src Mat) error {
	if !dst.SameShape(src) {
		return fmt.Errorf("%w: (%dx%d) += (%dx%d)", errShapeMismatch, dst.R, dst.C, src.R, src.C)
	}
	for i, v := range src.Data {
		dst.Data[i] += alpha * v
	}
	return nil
}

// MaxAbsDiff returns the largest absolute element difference between two
// matrices of the same shape.
func MaxAbsDiff(a, b Mat) float64 {
	var m float64
	for i := range a.Data {
		d := math.Abs(float64(a.Data[i] - b.Data[i]))
		if d > m {
			m = d
		}
	}
	return m
}
