package rec

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/sensorlog/internal/archetypes"
)

// LogMsg is one logged archetype, the unit sent to sinks and stored in
// recordings.
type LogMsg struct {
	RecordingID string
	AppID       string
	Seq         uint64
	TimeNs      int64
	EntityPath  string
	Archetype   string
	Cells       []archetypes.DataCell
}

// Clone returns a deep copy. Cell payloads produced from borrowed batches
// alias caller memory; buffering sinks must clone before retaining.
func (m *LogMsg) Clone() *LogMsg {
	out := *m
	out.Cells = make([]archetypes.DataCell, len(m.Cells))
	for i, c := range m.Cells {
		c.Payload = bytes.Clone(c.Payload)
		out.Cells[i] = c
	}
	return &out
}

// PayloadBytes returns the total size of all cell payloads.
func (m *LogMsg) PayloadBytes() int {
	n := 0
	for _, c := range m.Cells {
		n += len(c.Payload)
	}
	return n
}

const (
	logFieldRecordingID = 1
	logFieldAppID       = 2
	logFieldSeq         = 3
	logFieldTimeNs      = 4
	logFieldEntityPath  = 5
	logFieldArchetype   = 6
	logFieldCell        = 7

	cellFieldComponent    = 1
	cellFieldNumInstances = 2
	cellFieldPayload      = 3
)

// MarshalWire encodes the message in protobuf wire format.
func (m *LogMsg) MarshalWire() ([]byte, error) {
	size := 64 + len(m.RecordingID) + len(m.AppID) + len(m.EntityPath) + len(m.Archetype)
	for _, c := range m.Cells {
		size += 16 + len(c.Component) + len(c.Payload)
	}
	b := make([]byte, 0, size)

	b = appendString(b, logFieldRecordingID, m.RecordingID)
	b = appendString(b, logFieldAppID, m.AppID)
	if m.Seq != 0 {
		b = protowire.AppendTag(b, logFieldSeq, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Seq)
	}
	if m.TimeNs != 0 {
		b = protowire.AppendTag(b, logFieldTimeNs, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, uint64(m.TimeNs))
	}
	b = appendString(b, logFieldEntityPath, m.EntityPath)
	b = appendString(b, logFieldArchetype, m.Archetype)

	for _, c := range m.Cells {
		if c.NumInstances < 0 {
			return nil, fmt.Errorf("cell %s has negative instance count", c.Component)
		}
		var cell []byte
		cell = appendString(cell, cellFieldComponent, c.Component)
		cell = protowire.AppendTag(cell, cellFieldNumInstances, protowire.VarintType)
		cell = protowire.AppendVarint(cell, uint64(c.NumInstances))
		cell = protowire.AppendTag(cell, cellFieldPayload, protowire.BytesType)
		cell = protowire.AppendBytes(cell, c.Payload)

		b = protowire.AppendTag(b, logFieldCell, protowire.BytesType)
		b = protowire.AppendBytes(b, cell)
	}
	return b, nil
}

// UnmarshalWire decodes the message. The input is copied so payloads never
// alias transport buffers.
func (m *LogMsg) UnmarshalWire(data []byte) error {
	*m = LogMsg{}
	data = bytes.Clone(data)
	var cellErr error
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == logFieldRecordingID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.RecordingID = v
			return n
		case num == logFieldAppID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.AppID = v
			return n
		case num == logFieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Seq = v
			return n
		case num == logFieldTimeNs && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			m.TimeNs = int64(v)
			return n
		case num == logFieldEntityPath && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.EntityPath = v
			return n
		case num == logFieldArchetype && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.Archetype = v
			return n
		case num == logFieldCell && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			cell, err := unmarshalCell(v)
			if err != nil {
				cellErr = err
				return -1
			}
			m.Cells = append(m.Cells, cell)
			return n
		}
		return 0
	})
	if cellErr != nil {
		return fmt.Errorf("failed to decode cell: %w", cellErr)
	}
	return err
}

func unmarshalCell(data []byte) (archetypes.DataCell, error) {
	var c archetypes.DataCell
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == cellFieldComponent && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			c.Component = v
			return n
		case num == cellFieldNumInstances && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.NumInstances = int(v)
			return n
		case num == cellFieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			c.Payload = v
			return n
		}
		return 0
	})
	return c, err
}

// LogAck is returned when a client closes its Log stream.
type LogAck struct {
	Messages uint64
	Bytes    uint64
}

// MarshalWire encodes the ack.
func (a *LogAck) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, a.Messages)
	b = appendVarint(b, 2, a.Bytes)
	return b, nil
}

// UnmarshalWire decodes the ack.
func (a *LogAck) UnmarshalWire(data []byte) error {
	*a = LogAck{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.VarintType {
			return 0
		}
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			a.Messages = v
			return n
		case 2:
			v, n := protowire.ConsumeVarint(b)
			a.Bytes = v
			return n
		}
		return 0
	})
}

// CapabilitiesRequest identifies the client asking for server capabilities.
type CapabilitiesRequest struct {
	ClientVersion string
}

// MarshalWire encodes the request.
func (r *CapabilitiesRequest) MarshalWire() ([]byte, error) {
	return appendString(nil, 1, r.ClientVersion), nil
}

// UnmarshalWire decodes the request.
func (r *CapabilitiesRequest) UnmarshalWire(data []byte) error {
	*r = CapabilitiesRequest{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			r.ClientVersion = v
			return n
		}
		return 0
	})
}

// Capabilities describes a viewer server.
type Capabilities struct {
	Version         string
	GitSHA          string
	MaxMessageBytes uint64
}

// MarshalWire encodes the capabilities.
func (c *Capabilities) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, c.Version)
	b = appendString(b, 2, c.GitSHA)
	b = appendVarint(b, 3, c.MaxMessageBytes)
	return b, nil
}

// UnmarshalWire decodes the capabilities.
func (c *Capabilities) UnmarshalWire(data []byte) error {
	*c = Capabilities{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			c.Version = v
			return n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			c.GitSHA = v
			return n
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.MaxMessageBytes = v
			return n
		}
		return 0
	})
}

// walkFields calls fn for every field in b. fn returns the number of value
// bytes it consumed, 0 to skip the field, or a negative protowire error.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n = fn(num, typ, b)
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
