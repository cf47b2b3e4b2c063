package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/sensorlog/internal/catalog"
	"github.com/banshee-data/sensorlog/internal/monitoring"
	"github.com/banshee-data/sensorlog/internal/rec"
	"github.com/banshee-data/sensorlog/internal/security"
	"github.com/banshee-data/sensorlog/internal/version"
)

// Ensure Server implements the recording service.
var _ rec.RecordingServiceServer = (*Server)(nil)

// GetCapabilities implements rec.RecordingServiceServer.
func (s *Server) GetCapabilities(ctx context.Context, req *rec.CapabilitiesRequest) (*rec.Capabilities, error) {
	monitoring.Logf("[gRPC] GetCapabilities from client version %s", req.ClientVersion)
	return &rec.Capabilities{
		Version:         version.Version,
		GitSHA:          version.GitSHA,
		MaxMessageBytes: uint64(s.config.MaxMessageBytes),
	}, nil
}

// Log implements rec.RecordingServiceServer. Every message on a stream must
// carry the recording ID of the first one.
func (s *Server) Log(stream rec.LogServer) error {
	n := s.activeStreams.Add(1)
	defer s.activeStreams.Add(-1)
	if s.config.MaxClients > 0 && int(n) > s.config.MaxClients {
		s.rejectedStreams.Add(1)
		return status.Errorf(codes.ResourceExhausted, "too many log streams (max %d)", s.config.MaxClients)
	}

	ctx := stream.Context()
	var sess *session
	var ack rec.LogAck

	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if sess != nil {
				sess.close(context.WithoutCancel(ctx))
			}
			monitoring.Logf("[gRPC] Log stream aborted: %v", err)
			return err
		}

		if sess == nil {
			sess, err = s.openSession(ctx, msg)
			if err != nil {
				return status.Errorf(codes.Internal, "failed to open recording: %v", err)
			}
		} else if msg.RecordingID != sess.recording.ID {
			sess.close(context.WithoutCancel(ctx))
			return status.Errorf(codes.InvalidArgument, "recording id changed from %s to %s", sess.recording.ID, msg.RecordingID)
		}

		if err := sess.record(ctx, msg); err != nil {
			sess.close(context.WithoutCancel(ctx))
			return status.Errorf(codes.Internal, "failed to record %s: %v", msg.EntityPath, err)
		}

		size := uint64(msg.PayloadBytes())
		ack.Messages++
		ack.Bytes += size
		s.messageCount.Add(1)
		s.byteCount.Add(size)
		s.setLatest(msg)
	}

	if sess != nil {
		if err := sess.close(ctx); err != nil {
			return status.Errorf(codes.Internal, "failed to finalise recording: %v", err)
		}
	}
	monitoring.Logf("[gRPC] Log stream finished: %d messages, %d bytes", ack.Messages, ack.Bytes)
	return stream.SendAndClose(&ack)
}

// session is one stream's recording.
type session struct {
	store     *catalog.Store
	recorder  *rec.Recorder
	recording catalog.Recording
}

func (s *Server) openSession(ctx context.Context, first *rec.LogMsg) (*session, error) {
	sess := &session{
		store: s.store,
		recording: catalog.Recording{
			ID:      first.RecordingID,
			AppID:   first.AppID,
			StartNs: first.TimeNs,
		},
	}

	if s.config.RecordingsDir != "" {
		dir, err := s.recordingDir(first)
		if err != nil {
			return nil, err
		}
		r, err := rec.NewRecorder(dir, first.AppID, first.RecordingID, s.config.recorderConfig(s.fs, s.clock))
		if err != nil {
			return nil, err
		}
		sess.recorder = r
		sess.recording.Path = dir
	}

	if s.store != nil {
		if err := s.store.UpsertRecording(ctx, sess.recording); err != nil {
			if sess.recorder != nil {
				sess.recorder.Close()
			}
			return nil, err
		}
	}

	s.recordingCount.Add(1)
	monitoring.Logf("[Viewer] New recording %s from app %q", first.RecordingID, first.AppID)
	return sess, nil
}

// recordingDir picks an unused directory for a recording inside
// RecordingsDir.
func (s *Server) recordingDir(msg *rec.LogMsg) (string, error) {
	if err := s.fs.MkdirAll(s.config.RecordingsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recordings dir: %w", err)
	}
	base := security.SanitizeFilename(msg.AppID) + "_" + security.SanitizeFilename(msg.RecordingID)
	dir := filepath.Join(s.config.RecordingsDir, base+rec.FileExtension)
	for i := 2; ; i++ {
		if !s.fs.Exists(dir) {
			break
		}
		dir = filepath.Join(s.config.RecordingsDir, fmt.Sprintf("%s_%d%s", base, i, rec.FileExtension))
	}
	if err := security.ValidatePathWithinDirectory(dir, s.config.RecordingsDir); err != nil {
		return "", err
	}
	return dir, nil
}

func (sess *session) record(ctx context.Context, msg *rec.LogMsg) error {
	if sess.recorder != nil {
		if err := sess.recorder.Record(msg); err != nil {
			return err
		}
	}
	sess.recording.Messages++
	sess.recording.Bytes += int64(msg.PayloadBytes())
	sess.recording.EndNs = msg.TimeNs
	if sess.store != nil {
		return sess.store.RecordEntity(ctx, msg.RecordingID, msg.EntityPath, msg.Archetype, int64(msg.PayloadBytes()), msg.TimeNs)
	}
	return nil
}

func (sess *session) close(ctx context.Context) error {
	var errs []error
	if sess.recorder != nil {
		errs = append(errs, sess.recorder.Close())
	}
	if sess.store != nil {
		errs = append(errs, sess.store.UpsertRecording(ctx, sess.recording))
	}
	return errors.Join(errs...)
}
