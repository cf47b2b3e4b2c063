// Package components defines the plain data types logged to a recording.
// All fixed-size components are pointer-free and packed so that batches of
// them can be serialized straight from memory.
package components

import (
	"fmt"
	"math"
)

// Component names as they appear in serialized data cells.
const (
	NamePosition3D        = "sensorlog.components.Position3D"
	NameRadius            = "sensorlog.components.Radius"
	NameColor             = "sensorlog.components.Color"
	NamePinholeProjection = "sensorlog.components.PinholeProjection"
	NameResolution        = "sensorlog.components.Resolution"
	NameTranslation3D     = "sensorlog.components.Translation3D"
	NameTransformMat3x3   = "sensorlog.components.TransformMat3x3"
	NameTensorShape       = "sensorlog.components.TensorShape"
	NameTensorData        = "sensorlog.components.TensorData"
)

// Position3D is a point in 3D space.
type Position3D struct {
	X, Y, Z float32
}

// Color is an sRGBA color packed as 0xRRGGBBAA.
type Color uint32

// RGB returns an opaque color.
func RGB(r, g, b uint8) Color {
	return Color(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | 0xff)
}

// Vec3D is a 3D vector.
type Vec3D [3]float32

// Mat3x3 is a 3x3 matrix stored column-major.
type Mat3x3 [9]float32

// Identity3x3 is the 3x3 identity matrix.
var Identity3x3 = Mat3x3{1, 0, 0, 0, 1, 0, 0, 0, 1}

// At returns the element at row r, column c.
func (m Mat3x3) At(r, c int) float32 { return m[c*3+r] }

// PinholeProjection maps camera space to image space. Column-major.
type PinholeProjection Mat3x3

// Resolution is a pixel resolution: width then height.
type Resolution struct {
	Width, Height float32
}

// TensorDimension is one axis of a tensor.
type TensorDimension struct {
	Size uint64
	Name string
}

// MaxTensorDimension bounds the size of a single tensor axis.
const MaxTensorDimension = math.MaxInt32

// TensorElements returns the number of elements a shape describes. It fails
// for axes above MaxTensorDimension and for products that overflow an int.
func TensorElements(dims []TensorDimension) (int, error) {
	n := 1
	for _, d := range dims {
		if d.Size > MaxTensorDimension {
			return 0, fmt.Errorf("tensor axis %q has size %d, max %d", d.Name, d.Size, MaxTensorDimension)
		}
		size := int(d.Size)
		if size != 0 && n > math.MaxInt/size {
			return 0, fmt.Errorf("tensor shape overflows at axis %q", d.Name)
		}
		n *= size
	}
	return n, nil
}
