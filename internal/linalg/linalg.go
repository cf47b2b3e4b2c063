// Package linalg provides small float32 dense containers over gonum's blas32
// storage. Point data is always stored point-contiguous: three float32 values
// per point, one point after another, so it can be handed to a recording
// stream without copying.
package linalg

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/mat"
)

// Vector3f is a three component float32 vector.
type Vector3f [3]float32

// MatrixX3f is an Nx3 float32 matrix stored row-major. Each row is one point.
type MatrixX3f struct {
	raw blas32.General
}

// NewMatrixX3f creates an Nx3 matrix backed by data, which must hold 3*rows
// values in row-major order. A nil data allocates zeroed storage.
func NewMatrixX3f(rows int, data []float32) MatrixX3f {
	if rows < 0 {
		panic("linalg: negative row count")
	}
	if data == nil {
		data = make([]float32, rows*3)
	}
	if len(data) != rows*3 {
		panic(fmt.Sprintf("linalg: data length %d does not match %dx3", len(data), rows))
	}
	return MatrixX3f{raw: blas32.General{Rows: rows, Cols: 3, Stride: 3, Data: data}}
}

// MatrixX3fFromGeneral wraps an existing row-major blas32 matrix with three
// columns. The stride may be larger than three, for example when viewing the
// xyz part of an xyzw buffer.
func MatrixX3fFromGeneral(g blas32.General) (MatrixX3f, error) {
	if err := checkGeneral(g); err != nil {
		return MatrixX3f{}, err
	}
	return MatrixX3f{raw: g}, nil
}

// Dims returns the matrix dimensions.
func (m MatrixX3f) Dims() (rows, cols int) { return m.raw.Rows, 3 }

// Rows returns the number of points.
func (m MatrixX3f) Rows() int { return m.raw.Rows }

// At returns the element at row r, column c.
func (m MatrixX3f) At(r, c int) float32 {
	checkIndex(r, c, m.raw.Rows, 3)
	return m.raw.Data[r*m.raw.Stride+c]
}

// Set sets the element at row r, column c.
func (m MatrixX3f) Set(r, c int, v float32) {
	checkIndex(r, c, m.raw.Rows, 3)
	m.raw.Data[r*m.raw.Stride+c] = v
}

// Row returns row r as a vector.
func (m MatrixX3f) Row(r int) Vector3f {
	return Vector3f{m.At(r, 0), m.At(r, 1), m.At(r, 2)}
}

// RawMatrix returns the underlying blas32 storage.
func (m MatrixX3f) RawMatrix() blas32.General { return m.raw }

// Contiguous reports whether the points are packed with no padding.
func (m MatrixX3f) Contiguous() bool { return m.raw.Stride == 3 || m.raw.Rows <= 1 }

// Matrix3Xf is a 3xN float32 matrix stored column-major. Each column is one
// point. The storage is kept as the row-major Nx3 transpose, which has the
// same memory layout.
type Matrix3Xf struct {
	t blas32.General
}

// NewMatrix3Xf creates a 3xN matrix backed by data, which must hold 3*cols
// values in column-major order. A nil data allocates zeroed storage.
func NewMatrix3Xf(cols int, data []float32) Matrix3Xf {
	if cols < 0 {
		panic("linalg: negative column count")
	}
	if data == nil {
		data = make([]float32, cols*3)
	}
	if len(data) != cols*3 {
		panic(fmt.Sprintf("linalg: data length %d does not match 3x%d", len(data), cols))
	}
	return Matrix3Xf{t: blas32.General{Rows: cols, Cols: 3, Stride: 3, Data: data}}
}

// Matrix3XfFromGeneral wraps column-major storage described by the row-major
// Nx3 transpose g.
func Matrix3XfFromGeneral(g blas32.General) (Matrix3Xf, error) {
	if err := checkGeneral(g); err != nil {
		return Matrix3Xf{}, err
	}
	return Matrix3Xf{t: g}, nil
}

// Dims returns the matrix dimensions.
func (m Matrix3Xf) Dims() (rows, cols int) { return 3, m.t.Rows }

// Cols returns the number of points.
func (m Matrix3Xf) Cols() int { return m.t.Rows }

// At returns the element at row r, column c.
func (m Matrix3Xf) At(r, c int) float32 {
	checkIndex(r, c, 3, m.t.Rows)
	return m.t.Data[c*m.t.Stride+r]
}

// Set sets the element at row r, column c.
func (m Matrix3Xf) Set(r, c int, v float32) {
	checkIndex(r, c, 3, m.t.Rows)
	m.t.Data[c*m.t.Stride+r] = v
}

// Col returns column c as a vector.
func (m Matrix3Xf) Col(c int) Vector3f {
	return Vector3f{m.At(0, c), m.At(1, c), m.At(2, c)}
}

// RawTranspose returns the storage as its row-major Nx3 transpose.
func (m Matrix3Xf) RawTranspose() blas32.General { return m.t }

// Contiguous reports whether the points are packed with no padding.
func (m Matrix3Xf) Contiguous() bool { return m.t.Stride == 3 || m.t.Rows <= 1 }

// ColMajor3x3 flattens a 3x3 gonum matrix into column-major float32 order.
func ColMajor3x3(m mat.Matrix) ([9]float32, error) {
	var out [9]float32
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return out, fmt.Errorf("expected 3x3 matrix, got %dx%d", r, c)
	}
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			out[j*3+i] = float32(m.At(i, j))
		}
	}
	return out, nil
}

func checkGeneral(g blas32.General) error {
	if g.Cols != 3 {
		return fmt.Errorf("expected 3 columns, got %d", g.Cols)
	}
	if g.Rows < 0 {
		return fmt.Errorf("negative row count %d", g.Rows)
	}
	if g.Stride < 3 {
		return fmt.Errorf("stride %d smaller than column count", g.Stride)
	}
	if g.Rows > 0 && len(g.Data) < (g.Rows-1)*g.Stride+3 {
		return fmt.Errorf("data length %d too short for %d rows with stride %d", len(g.Data), g.Rows, g.Stride)
	}
	return nil
}

func checkIndex(r, c, rows, cols int) {
	if r < 0 || r >= rows || c < 0 || c >= cols {
		panic(fmt.Sprintf("linalg: index (%d, %d) out of range for %dx%d", r, c, rows, cols))
	}
}
