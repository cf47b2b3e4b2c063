// Package adapters bridges gonum-backed containers and decoded images into
// batches that a recording stream can log. Adapters borrow where the source
// layout allows it and copy otherwise.
package adapters

import (
	"fmt"
	"unsafe"

	"github.com/banshee-data/sensorlog/internal/batch"
	"github.com/banshee-data/sensorlog/internal/components"
	"github.com/banshee-data/sensorlog/internal/linalg"
)

const float32Size = unsafe.Sizeof(float32(0))

// Position3D must be three packed float32 values and no more aligned than a
// float32. Each line fails to compile if its constant underflows.
var (
	_ [unsafe.Sizeof(components.Position3D{}) - 3*float32Size]struct{}
	_ [3*float32Size - unsafe.Sizeof(components.Position3D{})]struct{}
	_ [unsafe.Alignof(float32(0)) - unsafe.Alignof(components.Position3D{})]struct{}

	_ [unsafe.Sizeof(components.Position3D{}) - unsafe.Sizeof(linalg.Vector3f{})]struct{}
	_ [unsafe.Sizeof(linalg.Vector3f{}) - unsafe.Sizeof(components.Position3D{})]struct{}
	_ [unsafe.Alignof(linalg.Vector3f{}) - unsafe.Alignof(components.Position3D{})]struct{}
)

// floatsToPositions views the first n xyz triples of data as positions.
func floatsToPositions(data []float32, n int) (batch.Batch[components.Position3D], error) {
	return batch.Reinterpret[components.Position3D](data[:3*n])
}

// VectorPositions adapts a slice of vectors into positions. It supports both
// borrowing and copying.
type VectorPositions struct{}

var _ batch.Adapter[components.Position3D, []linalg.Vector3f] = VectorPositions{}

// ViewInto borrows the vectors' memory.
func (VectorPositions) ViewInto(c *[]linalg.Vector3f) (batch.Batch[components.Position3D], error) {
	return batch.Reinterpret[components.Position3D](*c)
}

// CopyFrom copies the vectors into a new owned batch.
func (VectorPositions) CopyFrom(c []linalg.Vector3f) (batch.Batch[components.Position3D], error) {
	return batch.CopyBytes[components.Position3D](c)
}

// BorrowOnlyVectorPositions adapts a slice of vectors into positions but
// refuses to take ownership.
type BorrowOnlyVectorPositions struct{}

var _ batch.Adapter[components.Position3D, []linalg.Vector3f] = BorrowOnlyVectorPositions{}

// ViewInto borrows the vectors' memory.
func (BorrowOnlyVectorPositions) ViewInto(c *[]linalg.Vector3f) (batch.Batch[components.Position3D], error) {
	return VectorPositions{}.ViewInto(c)
}

// CopyFrom always fails with batch.ErrTemporaryUnsupported.
func (BorrowOnlyVectorPositions) CopyFrom([]linalg.Vector3f) (batch.Batch[components.Position3D], error) {
	return batch.Batch[components.Position3D]{}, fmt.Errorf("%w: []Vector3f", batch.ErrTemporaryUnsupported)
}

// Matrix3XPositions adapts a 3xN column-major matrix into N positions. It
// supports both borrowing and copying.
type Matrix3XPositions struct{}

var _ batch.Adapter[components.Position3D, linalg.Matrix3Xf] = Matrix3XPositions{}

// ViewInto borrows the matrix storage. Strided storage cannot be borrowed.
func (Matrix3XPositions) ViewInto(c *linalg.Matrix3Xf) (batch.Batch[components.Position3D], error) {
	if !c.Contiguous() {
		return batch.Batch[components.Position3D]{}, fmt.Errorf("%w: Matrix3Xf stride %d", batch.ErrNotContiguous, c.RawTranspose().Stride)
	}
	return floatsToPositions(c.RawTranspose().Data, c.Cols())
}

// CopyFrom copies the matrix columns into a new owned batch.
func (Matrix3XPositions) CopyFrom(c linalg.Matrix3Xf) (batch.Batch[components.Position3D], error) {
	n := c.Cols()
	if c.Contiguous() {
		return batch.CopyBytes[components.Position3D](c.RawTranspose().Data[:3*n])
	}
	positions := make([]components.Position3D, n)
	for i := range positions {
		col := c.Col(i)
		positions[i] = components.Position3D{X: col[0], Y: col[1], Z: col[2]}
	}
	return batch.TakeOwnership(positions), nil
}

// MatrixX3Positions adapts an Nx3 row-major matrix into N positions. It only
// supports borrowing.
type MatrixX3Positions struct{}

var _ batch.Adapter[components.Position3D, linalg.MatrixX3f] = MatrixX3Positions{}

// ViewInto borrows the matrix storage. Strided storage cannot be borrowed.
func (MatrixX3Positions) ViewInto(c *linalg.MatrixX3f) (batch.Batch[components.Position3D], error) {
	if !c.Contiguous() {
		return batch.Batch[components.Position3D]{}, fmt.Errorf("%w: MatrixX3f stride %d", batch.ErrNotContiguous, c.RawMatrix().Stride)
	}
	return floatsToPositions(c.RawMatrix().Data, c.Rows())
}

// CopyFrom always fails with batch.ErrTemporaryUnsupported.
func (MatrixX3Positions) CopyFrom(linalg.MatrixX3f) (batch.Batch[components.Position3D], error) {
	return batch.Batch[components.Position3D]{}, fmt.Errorf("%w: MatrixX3f", batch.ErrTemporaryUnsupported)
}
