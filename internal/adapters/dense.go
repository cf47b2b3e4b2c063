package adapters

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/sensorlog/internal/batch"
	"github.com/banshee-data/sensorlog/internal/components"
)

// DensePositions adapts an Nx3 float64 gonum matrix into positions. The
// scalar widths differ, so the data is always converted into a new batch.
type DensePositions struct{}

var _ batch.Adapter[components.Position3D, mat.Dense] = DensePositions{}

// ViewInto fails: float64 storage cannot be viewed as float32 positions.
func (DensePositions) ViewInto(*mat.Dense) (batch.Batch[components.Position3D], error) {
	return batch.Batch[components.Position3D]{}, fmt.Errorf("%w: float64 matrix as float32 positions", batch.ErrLayoutMismatch)
}

// CopyFrom converts each row into a position.
func (DensePositions) CopyFrom(c mat.Dense) (batch.Batch[components.Position3D], error) {
	return PositionsFromMatrix(&c)
}

// PositionsFromMatrix converts the rows of any Nx3 gonum matrix into an
// owned batch of positions.
func PositionsFromMatrix(m mat.Matrix) (batch.Batch[components.Position3D], error) {
	rows, cols := m.Dims()
	if cols != 3 {
		return batch.Batch[components.Position3D]{}, fmt.Errorf("expected Nx3 matrix, got %dx%d", rows, cols)
	}
	positions := make([]components.Position3D, rows)
	for i := range positions {
		positions[i] = components.Position3D{
			X: float32(m.At(i, 0)),
			Y: float32(m.At(i, 1)),
			Z: float32(m.At(i, 2)),
		}
	}
	return batch.TakeOwnership(positions), nil
}
