package adapters

import (
	"slices"

	"github.com/banshee-data/sensorlog/internal/batch"
	"github.com/banshee-data/sensorlog/internal/components"
	"github.com/banshee-data/sensorlog/internal/imaging"
)

// ImageBytes adapts an image into its raw interleaved bytes. It supports both
// borrowing and copying.
type ImageBytes struct{}

var _ batch.Adapter[uint8, imaging.Mat] = ImageBytes{}

// ViewInto borrows the image data.
func (ImageBytes) ViewInto(c *imaging.Mat) (batch.Batch[uint8], error) {
	if err := c.Validate(); err != nil {
		return batch.Batch[uint8]{}, err
	}
	return batch.Borrow(c.Data[:c.Total()*c.Channels]), nil
}

// CopyFrom copies the image data into a new owned batch.
func (ImageBytes) CopyFrom(c imaging.Mat) (batch.Batch[uint8], error) {
	if err := c.Validate(); err != nil {
		return batch.Batch[uint8]{}, err
	}
	return batch.TakeOwnership(slices.Clone(c.Data[:c.Total()*c.Channels])), nil
}

// ImageShape extracts the tensor shape of an image as height, width and
// depth. Dimensions cannot be borrowed, so both paths return an owned batch.
type ImageShape struct{}

var _ batch.Adapter[components.TensorDimension, imaging.Mat] = ImageShape{}

// ViewInto returns the image shape.
func (a ImageShape) ViewInto(c *imaging.Mat) (batch.Batch[components.TensorDimension], error) {
	return a.CopyFrom(*c)
}

// CopyFrom returns the image shape.
func (ImageShape) CopyFrom(c imaging.Mat) (batch.Batch[components.TensorDimension], error) {
	return batch.Of(
		components.TensorDimension{Size: uint64(c.Rows), Name: "height"},
		components.TensorDimension{Size: uint64(c.Cols), Name: "width"},
		components.TensorDimension{Size: uint64(c.Channels), Name: "depth"},
	), nil
}
