// Package archetypes groups component batches into the loggable units a
// recording stream accepts, and serializes them into data cells.
//
// Fixed-size components are written as raw little-endian memory. Batches
// are serialized straight from their backing storage, so a borrowed batch
// is read in place.
package archetypes

import (
	"encoding/binary"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/sensorlog/internal/batch"
	"github.com/banshee-data/sensorlog/internal/components"
)

// DataCell is one serialized component batch.
type DataCell struct {
	Component    string
	NumInstances int
	Payload      []byte
}

// AsComponents is implemented by every loggable archetype.
type AsComponents interface {
	ArchetypeName() string
	AsComponents() ([]DataCell, error)
}

// Points3D is a point cloud with optional per-point radii and colors.
type Points3D struct {
	Positions batch.Batch[components.Position3D]
	Radii     batch.Batch[float32]
	Colors    batch.Batch[components.Color]
}

// NewPoints3D creates a point cloud from positions.
func NewPoints3D(positions batch.Batch[components.Position3D]) Points3D {
	return Points3D{Positions: positions}
}

// WithRadii sets per-point radii. A single radius applies to every point.
func (p Points3D) WithRadii(radii batch.Batch[float32]) Points3D {
	p.Radii = radii
	return p
}

// WithColors sets per-point colors. A single color applies to every point.
func (p Points3D) WithColors(colors batch.Batch[components.Color]) Points3D {
	p.Colors = colors
	return p
}

// ArchetypeName implements AsComponents.
func (Points3D) ArchetypeName() string { return "sensorlog.archetypes.Points3D" }

// AsComponents implements AsComponents.
func (p Points3D) AsComponents() ([]DataCell, error) {
	n := p.Positions.Len()
	cells := []DataCell{rawCell(components.NamePosition3D, p.Positions)}
	if p.Radii.Len() > 0 {
		if err := checkSplat("radii", p.Radii.Len(), n); err != nil {
			return nil, err
		}
		cells = append(cells, rawCell(components.NameRadius, p.Radii))
	}
	if p.Colors.Len() > 0 {
		if err := checkSplat("colors", p.Colors.Len(), n); err != nil {
			return nil, err
		}
		cells = append(cells, rawCell(components.NameColor, p.Colors))
	}
	return cells, nil
}

// Pinhole is a camera projection with an optional image resolution.
type Pinhole struct {
	ImageFromCamera components.PinholeProjection
	Resolution      *components.Resolution
}

// NewPinhole creates a pinhole camera from a column-major projection.
func NewPinhole(projection components.PinholeProjection) Pinhole {
	return Pinhole{ImageFromCamera: projection}
}

// WithResolution sets the image resolution.
func (p Pinhole) WithResolution(res components.Resolution) Pinhole {
	p.Resolution = &res
	return p
}

// ArchetypeName implements AsComponents.
func (Pinhole) ArchetypeName() string { return "sensorlog.archetypes.Pinhole" }

// AsComponents implements AsComponents.
func (p Pinhole) AsComponents() ([]DataCell, error) {
	cells := []DataCell{{
		Component:    components.NamePinholeProjection,
		NumInstances: 1,
		Payload:      appendFloats(nil, p.ImageFromCamera[:]...),
	}}
	if p.Resolution != nil {
		cells = append(cells, DataCell{
			Component:    components.NameResolution,
			NumInstances: 1,
			Payload:      appendFloats(nil, p.Resolution.Width, p.Resolution.Height),
		})
	}
	return cells, nil
}

// Transform3D is a rigid transform: translation plus 3x3 matrix.
type Transform3D struct {
	Translation components.Vec3D
	Mat3x3      components.Mat3x3
}

// NewTransform3D creates a transform from a translation and a column-major
// rotation matrix.
func NewTransform3D(translation components.Vec3D, m components.Mat3x3) Transform3D {
	return Transform3D{Translation: translation, Mat3x3: m}
}

// ArchetypeName implements AsComponents.
func (Transform3D) ArchetypeName() string { return "sensorlog.archetypes.Transform3D" }

// AsComponents implements AsComponents.
func (t Transform3D) AsComponents() ([]DataCell, error) {
	return []DataCell{
		{Component: components.NameTranslation3D, NumInstances: 1, Payload: appendFloats(nil, t.Translation[:]...)},
		{Component: components.NameTransformMat3x3, NumInstances: 1, Payload: appendFloats(nil, t.Mat3x3[:]...)},
	}, nil
}

// Image is an 8-bit tensor with a shape, typically height x width x depth.
type Image struct {
	Shape batch.Batch[components.TensorDimension]
	Data  batch.Batch[uint8]
}

// NewImage creates an image from a shape and its data.
func NewImage(shape batch.Batch[components.TensorDimension], data batch.Batch[uint8]) Image {
	return Image{Shape: shape, Data: data}
}

// ArchetypeName implements AsComponents.
func (Image) ArchetypeName() string { return "sensorlog.archetypes.Image" }

// AsComponents implements AsComponents. The shape must describe exactly the
// number of data bytes.
func (img Image) AsComponents() ([]DataCell, error) {
	if img.Shape.Len() == 0 {
		return nil, fmt.Errorf("image has no shape")
	}
	want, err := components.TensorElements(img.Shape.Data())
	if err != nil {
		return nil, fmt.Errorf("invalid image shape: %w", err)
	}
	if got := img.Data.Len(); got != want {
		return nil, fmt.Errorf("image data has %d bytes, shape needs %d", got, want)
	}
	var shape []byte
	for _, d := range img.Shape.Data() {
		shape = appendDimension(shape, d)
	}
	return []DataCell{
		{Component: components.NameTensorShape, NumInstances: img.Shape.Len(), Payload: shape},
		{Component: components.NameTensorData, NumInstances: img.Data.Len(), Payload: img.Data.Bytes()},
	}, nil
}

func rawCell[T any](name string, b batch.Batch[T]) DataCell {
	return DataCell{Component: name, NumInstances: b.Len(), Payload: b.Bytes()}
}

func checkSplat(what string, got, n int) error {
	if got != 1 && got != n {
		return fmt.Errorf("%s: %d values for %d points", what, got, n)
	}
	return nil
}

func appendFloats(b []byte, vs ...float32) []byte {
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

const (
	dimFieldSize  = 1
	dimFieldName  = 2
	shapeFieldDim = 1
)

func appendDimension(b []byte, d components.TensorDimension) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, dimFieldSize, protowire.VarintType)
	msg = protowire.AppendVarint(msg, d.Size)
	if d.Name != "" {
		msg = protowire.AppendTag(msg, dimFieldName, protowire.BytesType)
		msg = protowire.AppendString(msg, d.Name)
	}
	b = protowire.AppendTag(b, shapeFieldDim, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
