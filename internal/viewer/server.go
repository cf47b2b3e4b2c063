// Package viewer is the receiving end of recording streams: a gRPC server
// that records incoming log messages to disk, keeps the latest message per
// entity and catalogs what it received.
package viewer

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/sensorlog/internal/catalog"
	"github.com/banshee-data/sensorlog/internal/fsutil"
	"github.com/banshee-data/sensorlog/internal/monitoring"
	"github.com/banshee-data/sensorlog/internal/rec"
	"github.com/banshee-data/sensorlog/internal/timeutil"
)

// Config holds configuration for the viewer gRPC server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:9876")
	ListenAddr string

	// RecordingsDir receives one recording directory per stream. Empty
	// disables recording to disk.
	RecordingsDir string

	// Compression is the recorder compression (rec.CompressionNone or
	// rec.CompressionZstd).
	Compression string

	// ChunkSize is the number of messages per recording chunk file.
	ChunkSize int

	// MaxMessageBytes is the largest message payload accepted.
	MaxMessageBytes int

	// MaxClients is the maximum number of concurrent log streams.
	MaxClients int

	// StatsInterval is how often to log throughput stats. Zero disables.
	StatsInterval time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      "localhost:9876",
		RecordingsDir:   "recordings",
		Compression:     rec.CompressionZstd,
		ChunkSize:       1000,
		MaxMessageBytes: 16 * 1024 * 1024,
		MaxClients:      8,
		StatsInterval:   10 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("max_message_bytes must be positive, got %d", c.MaxMessageBytes)
	}
	if c.MaxClients < 0 {
		return fmt.Errorf("max_clients must be non-negative, got %d", c.MaxClients)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("stats_interval must be non-negative, got %s", c.StatsInterval)
	}
	if c.RecordingsDir != "" {
		if err := c.recorderConfig(fsutil.OSFileSystem{}, timeutil.RealClock{}).Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) recorderConfig(fs fsutil.FileSystem, clock timeutil.Clock) rec.RecorderConfig {
	cfg := rec.DefaultRecorderConfig()
	cfg.FS = fs
	cfg.Compression = c.Compression
	cfg.ChunkSize = c.ChunkSize
	cfg.Clock = clock
	return cfg
}

// Stats is a snapshot of server counters.
type Stats struct {
	Messages        uint64
	Bytes           uint64
	ActiveStreams   int32
	RejectedStreams uint64
	Recordings      uint64
}

// Server manages the gRPC listener and the recording service.
type Server struct {
	config   Config
	store    *catalog.Store
	fs       fsutil.FileSystem
	clock    timeutil.Clock
	server   *grpc.Server
	listener net.Listener

	latest   map[string]*rec.LogMsg
	latestMu sync.RWMutex

	// Stats
	messageCount    atomic.Uint64
	byteCount       atomic.Uint64
	activeStreams   atomic.Int32
	rejectedStreams atomic.Uint64
	recordingCount  atomic.Uint64

	// Lifecycle
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewServer creates a server. store may be nil to disable cataloging.
func NewServer(cfg Config, store *catalog.Store) *Server {
	return &Server{
		config: cfg,
		store:  store,
		fs:     fsutil.OSFileSystem{},
		clock:  timeutil.RealClock{},
		latest: make(map[string]*rec.LogMsg),
		stopCh: make(chan struct{}),
	}
}

// SetClock replaces the clock used for stats and recording headers. Call
// before Start.
func (s *Server) SetClock(c timeutil.Clock) {
	s.clock = c
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	monitoring.Logf("[Viewer] Attempting to bind to %s...", s.config.ListenAddr)
	lis, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	monitoring.Logf("[Viewer] Successfully bound to %s", lis.Addr())
	return s.Serve(lis)
}

// Serve serves on lis in the background.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.config.Validate(); err != nil {
		lis.Close()
		return fmt.Errorf("invalid viewer config: %w", err)
	}
	if !s.running.CompareAndSwap(false, true) {
		lis.Close()
		return fmt.Errorf("viewer already running")
	}
	s.listener = lis

	// Leave headroom over the payload limit for message framing.
	maxMsgSize := s.config.MaxMessageBytes + 64*1024
	s.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	rec.RegisterRecordingServiceServer(s.server, s)

	if s.config.StatsInterval > 0 {
		s.wg.Add(1)
		go s.statsLoop()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		monitoring.Logf("[Viewer] gRPC server listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			monitoring.Logf("[Viewer] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop drains open streams and shuts the server down.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)

	if s.server != nil {
		s.server.GracefulStop()
	}
	s.wg.Wait()
	monitoring.Logf("[Viewer] gRPC server stopped")
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Messages:        s.messageCount.Load(),
		Bytes:           s.byteCount.Load(),
		ActiveStreams:   s.activeStreams.Load(),
		RejectedStreams: s.rejectedStreams.Load(),
		Recordings:      s.recordingCount.Load(),
	}
}

// Latest returns the most recent message logged at an entity path.
func (s *Server) Latest(entityPath string) (*rec.LogMsg, bool) {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	msg, ok := s.latest[rec.ParseEntityPath(entityPath).String()]
	return msg, ok
}

// Entities returns the number of entity paths seen.
func (s *Server) Entities() int {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return len(s.latest)
}

func (s *Server) setLatest(msg *rec.LogMsg) {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	s.latest[msg.EntityPath] = msg
}

func (s *Server) statsLoop() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.config.StatsInterval)
	defer ticker.Stop()

	lastTime := s.clock.Now()
	var lastCount uint64
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C():
			count := s.messageCount.Load()
			elapsed := s.clock.Since(lastTime).Seconds()
			rate := 0.0
			if elapsed > 0 {
				rate = float64(count-lastCount) / elapsed
			}
			monitoring.Logf("[Viewer] Stats: msgs/s=%.1f total=%d bytes=%d streams=%d rejected=%d entities=%d",
				rate, count, s.byteCount.Load(), s.activeStreams.Load(), s.rejectedStreams.Load(), s.Entities())
			lastTime = s.clock.Now()
			lastCount = count
		}
	}
}
