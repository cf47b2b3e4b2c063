package archetypes

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/sensorlog/internal/batch"
	"github.com/banshee-data/sensorlog/internal/components"
)

// ErrNoCell is returned when a component is missing from a set of cells.
var ErrNoCell = errors.New("component not present")

// FindCell returns the cell holding the named component.
func FindCell(cells []DataCell, component string) (DataCell, error) {
	for _, c := range cells {
		if c.Component == component {
			return c, nil
		}
	}
	return DataCell{}, fmt.Errorf("%w: %s", ErrNoCell, component)
}

// DecodePositions decodes a Position3D cell into an owned batch.
func DecodePositions(cell DataCell) (batch.Batch[components.Position3D], error) {
	b, err := batch.CopyBytes[components.Position3D](cell.Payload)
	if err != nil {
		return b, fmt.Errorf("failed to decode positions: %w", err)
	}
	if b.Len() != cell.NumInstances {
		return batch.Batch[components.Position3D]{}, fmt.Errorf("position cell holds %d values, header says %d", b.Len(), cell.NumInstances)
	}
	return b, nil
}

// DecodeFloats decodes a cell of little-endian float32 values.
func DecodeFloats(cell DataCell) ([]float32, error) {
	if len(cell.Payload)%4 != 0 {
		return nil, fmt.Errorf("float cell has %d bytes", len(cell.Payload))
	}
	out := make([]float32, len(cell.Payload)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(cell.Payload[i*4:]))
	}
	return out, nil
}

// DecodeShape decodes a tensor shape cell.
func DecodeShape(cell DataCell) ([]components.TensorDimension, error) {
	var dims []components.TensorDimension
	b := cell.Payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if num != shapeFieldDim || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		d, err := decodeDimension(msg)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	return dims, nil
}

func decodeDimension(b []byte) (components.TensorDimension, error) {
	var d components.TensorDimension
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return d, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == dimFieldSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return d, protowire.ParseError(n)
			}
			d.Size = v
			b = b[n:]
		case num == dimFieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return d, protowire.ParseError(n)
			}
			d.Name = v
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return d, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return d, nil
}
