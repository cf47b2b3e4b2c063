package report

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/sensorlog/internal/archetypes"
	"github.com/banshee-data/sensorlog/internal/components"
	"github.com/banshee-data/sensorlog/internal/fsutil"
	"github.com/banshee-data/sensorlog/internal/rec"
	"github.com/banshee-data/sensorlog/internal/security"
)

var (
	points3DName = archetypes.Points3D{}.ArchetypeName()
	imageName    = archetypes.Image{}.ArchetypeName()
)

// EntitySummary totals the messages logged at one entity path.
type EntitySummary struct {
	Path       string
	Archetype  string
	Messages   int
	Bytes      int
	LastTimeNs int64
}

// Summary describes a replayed recording.
type Summary struct {
	Header   rec.LogHeader
	Messages int
	Entities []EntitySummary
	// Latest holds the last message per entity path and archetype.
	Latest []*rec.LogMsg
}

// Summarize reads r from its current position to the end.
func Summarize(r *rec.Replayer) (*Summary, error) {
	s := &Summary{Header: r.Header()}
	entities := make(map[string]*EntitySummary)
	latest := make(map[string]*rec.LogMsg)

	for {
		msg, err := r.ReadMsg()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read message %d: %w", r.Current(), err)
		}
		s.Messages++

		key := msg.EntityPath + "\x00" + msg.Archetype
		e, ok := entities[key]
		if !ok {
			e = &EntitySummary{Path: msg.EntityPath, Archetype: msg.Archetype}
			entities[key] = e
		}
		e.Messages++
		e.Bytes += msg.PayloadBytes()
		e.LastTimeNs = msg.TimeNs
		latest[key] = msg
	}

	keys := make([]string, 0, len(entities))
	for k := range entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Entities = append(s.Entities, *entities[k])
		s.Latest = append(s.Latest, latest[k])
	}
	return s, nil
}

// WritePreviews renders the latest point cloud and image of every entity
// into dir and returns the files written. Other archetypes are skipped.
func WritePreviews(fs fsutil.FileSystem, dir string, s *Summary, opt Options) ([]string, error) {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preview dir: %w", err)
	}

	var written []string
	write := func(name string, render func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := fs.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		if err := render(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	for _, msg := range s.Latest {
		base := security.SanitizeFilename(strings.TrimPrefix(msg.EntityPath, "/"))
		switch msg.Archetype {
		case points3DName:
			cell, err := archetypes.FindCell(msg.Cells, components.NamePosition3D)
			if err != nil {
				return written, err
			}
			positions, err := archetypes.DecodePositions(cell)
			if err != nil {
				return written, err
			}
			popt := opt
			popt.Title = msg.EntityPath
			if err := write(base+"_points.png", func(w io.Writer) error {
				return WritePointsPNG(w, positions.Data(), popt)
			}); err != nil {
				return written, err
			}
			if err := write(base+"_points.html", func(w io.Writer) error {
				return WritePointsHTML(w, positions.Data(), popt)
			}); err != nil {
				return written, err
			}

		case imageName:
			shapeCell, err := archetypes.FindCell(msg.Cells, components.NameTensorShape)
			if err != nil {
				return written, err
			}
			dims, err := archetypes.DecodeShape(shapeCell)
			if err != nil {
				return written, err
			}
			dataCell, err := archetypes.FindCell(msg.Cells, components.NameTensorData)
			if err != nil {
				return written, err
			}
			if err := write(base+"_image.png", func(w io.Writer) error {
				return WriteTensorPNG(w, dims, dataCell.Payload)
			}); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}
