package rec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/banshee-data/sensorlog/internal/monitoring"
	"github.com/banshee-data/sensorlog/internal/version"
)

// ErrMessageTooLarge is returned when a message exceeds the server limit.
var ErrMessageTooLarge = errors.New("message exceeds server limit")

// Sink receives log messages from a RecordingStream. Send must not retain
// msg or its payloads after returning unless it copies them.
type Sink interface {
	Send(msg *LogMsg) error
	Flush() error
	Close() error
}

// MemorySink buffers deep copies of every message.
type MemorySink struct {
	mu   sync.Mutex
	msgs []*LogMsg
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Send implements Sink.
func (s *MemorySink) Send(msg *LogMsg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg.Clone())
	return nil
}

// Flush implements Sink.
func (s *MemorySink) Flush() error { return nil }

// Close implements Sink.
func (s *MemorySink) Close() error { return nil }

// Messages returns the buffered messages.
func (s *MemorySink) Messages() []*LogMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*LogMsg(nil), s.msgs...)
}

// Drain returns the buffered messages and empties the buffer.
func (s *MemorySink) Drain() []*LogMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.msgs
	s.msgs = nil
	return msgs
}

// GRPCSink streams messages to a viewer over the recording service.
type GRPCSink struct {
	conn     *grpc.ClientConn
	stream   LogClient
	cancel   context.CancelFunc
	caps     *Capabilities
	maxBytes int

	mu     sync.Mutex
	sent   uint64
	closed bool
	err    error
}

// DialGRPCSink connects to a viewer at addr, checks its capabilities and
// opens a Log stream. The stream outlives ctx; Close ends it.
func DialGRPCSink(ctx context.Context, addr string, opts ...grpc.DialOption) (*GRPCSink, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", addr, err)
	}

	client := NewRecordingServiceClient(conn)
	caps, err := client.GetCapabilities(ctx, &CapabilitiesRequest{ClientVersion: version.Version})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get viewer capabilities from %s: %w", addr, err)
	}
	if caps.Version != version.Version {
		monitoring.Logf("[gRPC] Viewer at %s runs version %s, client is %s", addr, caps.Version, version.Version)
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := client.Log(streamCtx)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to open log stream to %s: %w", addr, err)
	}

	monitoring.Logf("[gRPC] Connected to viewer %s (version=%s)", addr, caps.Version)
	return &GRPCSink{
		conn:     conn,
		stream:   stream,
		cancel:   cancel,
		caps:     caps,
		maxBytes: int(caps.MaxMessageBytes),
	}, nil
}

// Capabilities returns what the viewer reported on connect.
func (s *GRPCSink) Capabilities() Capabilities {
	return *s.caps
}

// Send implements Sink.
func (s *GRPCSink) Send(msg *LogMsg) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		if s.err != nil {
			return fmt.Errorf("grpc sink is closed: %w", s.err)
		}
		return fmt.Errorf("grpc sink is closed")
	}
	if s.maxBytes > 0 && msg.PayloadBytes() > s.maxBytes {
		return fmt.Errorf("%s: %d bytes > %d: %w", msg.EntityPath, msg.PayloadBytes(), s.maxBytes, ErrMessageTooLarge)
	}
	if err := s.stream.Send(msg); err != nil {
		if errors.Is(err, io.EOF) {
			err = s.serverStatus()
		}
		return fmt.Errorf("failed to send %s: %w", msg.EntityPath, err)
	}
	s.sent++
	return nil
}

// serverStatus collects the status of a stream the viewer already ended and
// closes the sink. Callers hold s.mu.
func (s *GRPCSink) serverStatus() error {
	_, err := s.stream.CloseAndRecv()
	if err == nil {
		err = fmt.Errorf("viewer ended the log stream")
	}
	s.closed = true
	s.err = err
	s.cancel()
	s.conn.Close()
	monitoring.Logf("[gRPC] Log stream ended by viewer: %v", err)
	return err
}

// Flush implements Sink. gRPC writes each message as it is sent.
func (s *GRPCSink) Flush() error { return nil }

// Close ends the stream, waits for the viewer ack and closes the connection.
func (s *GRPCSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.err
	}
	s.closed = true
	defer s.cancel()
	defer s.conn.Close()

	ack, err := s.stream.CloseAndRecv()
	if err != nil {
		return fmt.Errorf("failed to close log stream: %w", err)
	}
	if ack.Messages != s.sent {
		monitoring.Logf("[gRPC] Viewer acked %d of %d messages", ack.Messages, s.sent)
	}
	monitoring.Logf("[gRPC] Stream closed: %d messages, %d bytes", ack.Messages, ack.Bytes)
	return nil
}
