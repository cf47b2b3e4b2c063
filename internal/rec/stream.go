// Package rec is the recorder client: a RecordingStream serializes logged
// archetypes into messages and forwards them to a sink (memory, a recording
// directory, or a viewer over gRPC).
package rec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/banshee-data/sensorlog/internal/archetypes"
	"github.com/banshee-data/sensorlog/internal/timeutil"
)

// ErrStreamClosed is returned by operations on a closed stream.
var ErrStreamClosed = errors.New("recording stream is closed")

// StreamOption configures a RecordingStream.
type StreamOption func(*RecordingStream)

// WithClock sets the clock used to timestamp messages.
func WithClock(c timeutil.Clock) StreamOption {
	return func(s *RecordingStream) { s.clock = c }
}

// WithRecordingID overrides the generated recording ID.
func WithRecordingID(id string) StreamOption {
	return func(s *RecordingStream) { s.recordingID = id }
}

// WithSink sets the initial sink instead of the memory buffer.
func WithSink(sink Sink) StreamOption {
	return func(s *RecordingStream) { s.sink = sink }
}

// RecordingStream logs archetypes under entity paths. It is safe for
// concurrent use. Until a sink is attached, messages are buffered in memory
// and replayed into the first sink set.
type RecordingStream struct {
	appID       string
	recordingID string
	clock       timeutil.Clock

	mu     sync.Mutex
	sink   Sink
	seq    uint64
	closed bool
}

// NewRecordingStream creates a stream for the given application.
func NewRecordingStream(appID string, opts ...StreamOption) *RecordingStream {
	s := &RecordingStream{
		appID:       appID,
		recordingID: uuid.NewString(),
		clock:       timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = NewMemorySink()
	}
	return s
}

// AppID returns the application ID.
func (s *RecordingStream) AppID() string { return s.appID }

// RecordingID returns the recording ID.
func (s *RecordingStream) RecordingID() string { return s.recordingID }

// Log serializes a and sends it to the current sink. Borrowed batches in a
// are read during the call only.
func (s *RecordingStream) Log(path string, a archetypes.AsComponents) error {
	cells, err := a.AsComponents()
	if err != nil {
		return fmt.Errorf("failed to serialize %s at %s: %w", a.ArchetypeName(), path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	s.seq++
	msg := &LogMsg{
		RecordingID: s.recordingID,
		AppID:       s.appID,
		Seq:         s.seq,
		TimeNs:      s.clock.Now().UnixNano(),
		EntityPath:  ParseEntityPath(path).String(),
		Archetype:   a.ArchetypeName(),
		Cells:       cells,
	}
	if err := s.sink.Send(msg); err != nil {
		return fmt.Errorf("failed to log %s: %w", msg.EntityPath, err)
	}
	return nil
}

// SetSink replaces the current sink. Messages buffered by a MemorySink are
// forwarded to the new sink; the previous sink is closed. If forwarding
// fails the buffer and the current sink are left unchanged.
func (s *RecordingStream) SetSink(sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	old := s.sink
	if mem, ok := old.(*MemorySink); ok {
		for _, msg := range mem.Messages() {
			if err := sink.Send(msg); err != nil {
				return fmt.Errorf("failed to forward buffered message %d: %w", msg.Seq, err)
			}
		}
		mem.Drain()
	}
	s.sink = sink
	if err := old.Close(); err != nil {
		return fmt.Errorf("failed to close previous sink: %w", err)
	}
	return nil
}

// Connect streams to a viewer at addr.
func (s *RecordingStream) Connect(ctx context.Context, addr string, opts ...grpc.DialOption) error {
	sink, err := DialGRPCSink(ctx, addr, opts...)
	if err != nil {
		return err
	}
	if err := s.SetSink(sink); err != nil {
		sink.Close()
		return err
	}
	return nil
}

// Save writes the stream to a recording directory at path.
func (s *RecordingStream) Save(path string, cfg RecorderConfig) (*Recorder, error) {
	r, err := NewRecorder(path, s.appID, s.recordingID, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.SetSink(r); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Flush flushes the current sink.
func (s *RecordingStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	return s.sink.Flush()
}

// Close flushes and closes the sink. Closing twice is a no-op.
func (s *RecordingStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.sink.Flush(); err != nil {
		s.sink.Close()
		return fmt.Errorf("failed to flush sink: %w", err)
	}
	return s.sink.Close()
}
