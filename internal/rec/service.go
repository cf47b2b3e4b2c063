package rec

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	serviceName           = "sensorlog.RecordingService"
	logMethod             = "/" + serviceName + "/Log"
	getCapabilitiesMethod = "/" + serviceName + "/GetCapabilities"
)

// RecordingServiceServer is implemented by viewers that accept log streams.
type RecordingServiceServer interface {
	// Log receives messages until the client closes the stream, then acks.
	Log(LogServer) error
	// GetCapabilities reports the server version and limits.
	GetCapabilities(context.Context, *CapabilitiesRequest) (*Capabilities, error)
}

// UnimplementedRecordingServiceServer can be embedded for forward
// compatibility.
type UnimplementedRecordingServiceServer struct{}

// Log returns Unimplemented.
func (UnimplementedRecordingServiceServer) Log(LogServer) error {
	return status.Error(codes.Unimplemented, "method Log not implemented")
}

// GetCapabilities returns Unimplemented.
func (UnimplementedRecordingServiceServer) GetCapabilities(context.Context, *CapabilitiesRequest) (*Capabilities, error) {
	return nil, status.Error(codes.Unimplemented, "method GetCapabilities not implemented")
}

// LogServer is the server side of a Log stream.
type LogServer interface {
	Recv() (*LogMsg, error)
	SendAndClose(*LogAck) error
	Context() context.Context
}

type logServer struct {
	grpc.ServerStream
}

func (s *logServer) Recv() (*LogMsg, error) {
	m := new(LogMsg)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *logServer) SendAndClose(ack *LogAck) error {
	return s.ServerStream.SendMsg(ack)
}

func logHandler(srv any, stream grpc.ServerStream) error {
	return srv.(RecordingServiceServer).Log(&logServer{stream})
}

func getCapabilitiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CapabilitiesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecordingServiceServer).GetCapabilities(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getCapabilitiesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecordingServiceServer).GetCapabilities(ctx, req.(*CapabilitiesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var recordingServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RecordingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCapabilities", Handler: getCapabilitiesHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Log", Handler: logHandler, ClientStreams: true},
	},
	Metadata: "sensorlog/recording.proto",
}

// RegisterRecordingServiceServer registers srv on s.
func RegisterRecordingServiceServer(s grpc.ServiceRegistrar, srv RecordingServiceServer) {
	s.RegisterService(&recordingServiceDesc, srv)
}

// RecordingServiceClient calls a recording service.
type RecordingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRecordingServiceClient creates a client on an existing connection.
func NewRecordingServiceClient(cc grpc.ClientConnInterface) *RecordingServiceClient {
	return &RecordingServiceClient{cc: cc}
}

// LogClient is the client side of a Log stream.
type LogClient interface {
	Send(*LogMsg) error
	CloseAndRecv() (*LogAck, error)
}

type logClient struct {
	grpc.ClientStream
}

func (c *logClient) Send(m *LogMsg) error {
	return c.ClientStream.SendMsg(m)
}

func (c *logClient) CloseAndRecv() (*LogAck, error) {
	if err := c.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	ack := new(LogAck)
	if err := c.ClientStream.RecvMsg(ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// Log opens a client stream of log messages.
func (c *RecordingServiceClient) Log(ctx context.Context, opts ...grpc.CallOption) (LogClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &recordingServiceDesc.Streams[0], logMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &logClient{stream}, nil
}

// GetCapabilities asks the server for its version and limits.
func (c *RecordingServiceClient) GetCapabilities(ctx context.Context, in *CapabilitiesRequest, opts ...grpc.CallOption) (*Capabilities, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	out := new(Capabilities)
	if err := c.cc.Invoke(ctx, getCapabilitiesMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
