package rec

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/sensorlog/internal/fsutil"
	"github.com/banshee-data/sensorlog/internal/monitoring"
	"github.com/banshee-data/sensorlog/internal/security"
	"github.com/banshee-data/sensorlog/internal/timeutil"
	"github.com/banshee-data/sensorlog/internal/version"
)

// FileExtension is the extension for sensorlog recordings.
const FileExtension = ".sllog"

// FormatVersion is the on-disk layout version written to headers.
const FormatVersion = "1.0"

// Compression values for RecorderConfig.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

const indexEntrySize = 8 + 8 + 4 + 4

// RecorderConfig controls how a recording is written.
type RecorderConfig struct {
	// ChunkSize is the number of messages per chunk file.
	ChunkSize int

	// Compression is CompressionNone or CompressionZstd.
	Compression string

	// FS is the filesystem to write to.
	FS fsutil.FileSystem

	// Clock stamps the header creation time.
	Clock timeutil.Clock
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		ChunkSize:   1000,
		Compression: CompressionZstd,
		FS:          fsutil.OSFileSystem{},
		Clock:       timeutil.RealClock{},
	}
}

// Validate checks the configuration.
func (c RecorderConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	switch c.Compression {
	case CompressionNone, CompressionZstd:
	default:
		return fmt.Errorf("unknown compression %q", c.Compression)
	}
	if c.FS == nil {
		return fmt.Errorf("filesystem is required")
	}
	return nil
}

// LogHeader contains metadata about a recording.
type LogHeader struct {
	Version       string   `json:"version"`
	WriterVersion string   `json:"writer_version"`
	CreatedNs     int64    `json:"created_ns"`
	AppID         string   `json:"app_id"`
	RecordingID   string   `json:"recording_id"`
	TotalMessages uint64   `json:"total_messages"`
	StartNs       int64    `json:"start_ns"`
	EndNs         int64    `json:"end_ns"`
	Compression   string   `json:"compression"`
	Entities      []string `json:"entities"`
}

// IndexEntry is an entry in the seek index.
type IndexEntry struct {
	Seq     uint64
	TimeNs  int64
	ChunkID uint32
	Offset  uint32
}

// Recorder writes log messages to a recording directory. It implements Sink.
type Recorder struct {
	basePath string
	cfg      RecorderConfig

	header       LogHeader
	index        []IndexEntry
	entities     map[string]struct{}
	currentChunk int
	chunkFile    io.WriteCloser
	chunkBuf     *bufio.Writer
	chunkOffset  uint32
	encoder      *zstd.Encoder

	msgCount uint64
	startNs  int64
	endNs    int64

	mu     sync.Mutex
	closed bool
	// err is set once a frame write fails. The chunk may then hold a partial
	// frame, so later offsets would be wrong.
	err error
}

// NewRecorder creates a Recorder writing to basePath. If basePath is empty,
// a timestamped directory is created in the temp dir.
func NewRecorder(basePath, appID, recordingID string, cfg RecorderConfig) (*Recorder, error) {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recorder config: %w", err)
	}

	now := cfg.Clock.Now()
	if basePath == "" {
		name := fmt.Sprintf("sllog_%s_%d%s", security.SanitizeFilename(appID), now.Unix(), FileExtension)
		basePath = filepath.Join(os.TempDir(), name)
	}

	if err := cfg.FS.MkdirAll(filepath.Join(basePath, "frames"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	r := &Recorder{
		basePath:     basePath,
		cfg:          cfg,
		currentChunk: -1,
		entities:     make(map[string]struct{}),
		header: LogHeader{
			Version:       FormatVersion,
			WriterVersion: version.Version,
			CreatedNs:     now.UnixNano(),
			AppID:         appID,
			RecordingID:   recordingID,
			Compression:   cfg.Compression,
		},
	}

	if cfg.Compression == CompressionZstd {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		r.encoder = enc
	}

	monitoring.Logf("[Recorder] Recording %s to %s (compression=%s)", recordingID, basePath, cfg.Compression)
	return r, nil
}

// Record writes a message to the recording. After a failed write every
// later call returns the same error.
func (r *Recorder) Record(msg *LogMsg) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder is closed")
	}
	if r.err != nil {
		return fmt.Errorf("recorder failed earlier: %w", r.err)
	}

	chunkIdx := int(r.msgCount / uint64(r.cfg.ChunkSize))
	if chunkIdx != r.currentChunk {
		if err := r.rotateChunk(chunkIdx); err != nil {
			return err
		}
	}

	data, err := msg.MarshalWire()
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}
	if r.encoder != nil {
		data = r.encoder.EncodeAll(data, nil)
	}

	frame := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint32(frame, uint32(len(data)))
	frame = append(frame, data...)
	if _, err := r.chunkBuf.Write(frame); err != nil {
		r.err = err
		monitoring.Logf("[Recorder] Write to chunk %d failed, recording stopped at %d messages: %v", chunkIdx, r.msgCount, err)
		return fmt.Errorf("failed to write frame: %w", err)
	}

	r.index = append(r.index, IndexEntry{
		Seq:     msg.Seq,
		TimeNs:  msg.TimeNs,
		ChunkID: uint32(chunkIdx),
		Offset:  r.chunkOffset,
	})
	r.entities[msg.EntityPath] = struct{}{}

	if r.msgCount == 0 {
		r.startNs = msg.TimeNs
	}
	r.endNs = msg.TimeNs
	r.chunkOffset += uint32(len(frame))
	r.msgCount++
	return nil
}

// Send implements Sink.
func (r *Recorder) Send(msg *LogMsg) error {
	return r.Record(msg)
}

// Flush writes buffered chunk data to the filesystem.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chunkBuf == nil {
		return nil
	}
	return r.chunkBuf.Flush()
}

// rotateChunk closes the current chunk and opens a new one.
func (r *Recorder) rotateChunk(chunkIdx int) error {
	if err := r.closeChunk(); err != nil {
		return err
	}

	f, err := r.cfg.FS.Create(chunkPath(r.basePath, chunkIdx))
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}

	r.chunkFile = f
	r.chunkBuf = bufio.NewWriterSize(f, 256*1024)
	r.currentChunk = chunkIdx
	r.chunkOffset = 0
	return nil
}

func (r *Recorder) closeChunk() error {
	if r.chunkFile == nil {
		return nil
	}
	if err := r.chunkBuf.Flush(); err != nil {
		return fmt.Errorf("failed to flush chunk: %w", err)
	}
	err := r.chunkFile.Close()
	r.chunkFile = nil
	r.chunkBuf = nil
	if err != nil {
		return fmt.Errorf("failed to close chunk: %w", err)
	}
	return nil
}

// Close finalises the recording and writes the header and index.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.encoder != nil {
		r.encoder.Close()
	}
	if err := r.closeChunk(); err != nil {
		return err
	}

	r.header.TotalMessages = r.msgCount
	r.header.StartNs = r.startNs
	r.header.EndNs = r.endNs
	r.header.Entities = make([]string, 0, len(r.entities))
	for e := range r.entities {
		r.header.Entities = append(r.header.Entities, e)
	}
	sort.Strings(r.header.Entities)

	headerData, err := json.MarshalIndent(r.header, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := r.cfg.FS.WriteFile(filepath.Join(r.basePath, "header.json"), headerData, 0644); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	index := make([]byte, 0, len(r.index)*indexEntrySize)
	for _, e := range r.index {
		index = binary.LittleEndian.AppendUint64(index, e.Seq)
		index = binary.LittleEndian.AppendUint64(index, uint64(e.TimeNs))
		index = binary.LittleEndian.AppendUint32(index, e.ChunkID)
		index = binary.LittleEndian.AppendUint32(index, e.Offset)
	}
	if err := r.cfg.FS.WriteFile(filepath.Join(r.basePath, "index.bin"), index, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	monitoring.Logf("[Recorder] Closed %s: %d messages, %d entities", r.basePath, r.msgCount, len(r.header.Entities))
	return nil
}

// Path returns the base path of the recording.
func (r *Recorder) Path() string {
	return r.basePath
}

// MessageCount returns the number of messages recorded.
func (r *Recorder) MessageCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgCount
}

func chunkPath(basePath string, idx int) string {
	return filepath.Join(basePath, "frames", fmt.Sprintf("chunk_%04d.pb", idx))
}

// Replayer reads log messages back from a recording directory.
type Replayer struct {
	basePath string
	fs       fsutil.FileSystem
	header   LogHeader
	index    []IndexEntry
	decoder  *zstd.Decoder

	current      uint64
	currentChunk int
	chunkData    []byte

	mu sync.Mutex
}

// NewReplayer opens a recording for replay.
func NewReplayer(basePath string, fs fsutil.FileSystem) (*Replayer, error) {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	r := &Replayer{
		basePath:     basePath,
		fs:           fs,
		currentChunk: -1,
	}

	headerData, err := fs.ReadFile(filepath.Join(basePath, "header.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerData, &r.header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	indexData, err := fs.ReadFile(filepath.Join(basePath, "index.bin"))
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	if len(indexData)%indexEntrySize != 0 {
		return nil, fmt.Errorf("index is truncated: %d bytes", len(indexData))
	}
	r.index = make([]IndexEntry, 0, len(indexData)/indexEntrySize)
	for b := indexData; len(b) > 0; b = b[indexEntrySize:] {
		r.index = append(r.index, IndexEntry{
			Seq:     binary.LittleEndian.Uint64(b[0:]),
			TimeNs:  int64(binary.LittleEndian.Uint64(b[8:])),
			ChunkID: binary.LittleEndian.Uint32(b[16:]),
			Offset:  binary.LittleEndian.Uint32(b[20:]),
		})
	}

	switch r.header.Compression {
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		r.decoder = dec
	case CompressionNone, "":
	default:
		return nil, fmt.Errorf("unknown compression %q", r.header.Compression)
	}

	return r, nil
}

// Header returns the recording header.
func (r *Replayer) Header() LogHeader {
	return r.header
}

// TotalMessages returns the number of indexed messages.
func (r *Replayer) TotalMessages() uint64 {
	return uint64(len(r.index))
}

// Current returns the index of the next message to read.
func (r *Replayer) Current() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Seek moves to a message by index.
func (r *Replayer) Seek(idx uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx >= uint64(len(r.index)) {
		return fmt.Errorf("message index out of range: %d >= %d", idx, len(r.index))
	}
	r.current = idx
	return nil
}

// SeekToTimestamp moves to the first message at or after timeNs. Past the
// end it moves to the last message.
func (r *Replayer) SeekToTimestamp(timeNs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.index) == 0 {
		return fmt.Errorf("recording is empty")
	}
	i := sort.Search(len(r.index), func(i int) bool {
		return r.index[i].TimeNs >= timeNs
	})
	if i == len(r.index) {
		i--
	}
	r.current = uint64(i)
	return nil
}

// ReadMsg reads the current message and advances. It returns io.EOF after
// the last message.
func (r *Replayer) ReadMsg() (*LogMsg, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current >= uint64(len(r.index)) {
		return nil, io.EOF
	}
	entry := r.index[r.current]

	if int(entry.ChunkID) != r.currentChunk {
		if err := r.loadChunk(int(entry.ChunkID)); err != nil {
			return nil, err
		}
	}

	offset := uint64(entry.Offset)
	if offset+4 > uint64(len(r.chunkData)) {
		return nil, fmt.Errorf("invalid frame offset %d in chunk %d", offset, entry.ChunkID)
	}
	frameLen := uint64(binary.LittleEndian.Uint32(r.chunkData[offset:]))
	offset += 4
	if offset+frameLen > uint64(len(r.chunkData)) {
		return nil, fmt.Errorf("invalid frame length %d in chunk %d", frameLen, entry.ChunkID)
	}
	data := r.chunkData[offset : offset+frameLen]

	if r.decoder != nil {
		var err error
		data, err = r.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress frame: %w", err)
		}
	}

	msg := new(LogMsg)
	if err := msg.UnmarshalWire(data); err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %w", err)
	}

	r.current++
	return msg, nil
}

// loadChunk loads a chunk file into memory.
func (r *Replayer) loadChunk(idx int) error {
	data, err := r.fs.ReadFile(chunkPath(r.basePath, idx))
	if err != nil {
		return fmt.Errorf("failed to read chunk: %w", err)
	}
	r.chunkData = data
	r.currentChunk = idx
	return nil
}

// Close releases the replayer.
func (r *Replayer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.decoder != nil {
		r.decoder.Close()
		r.decoder = nil
	}
	r.chunkData = nil
	return nil
}
