// Package catalog indexes received recordings and the entities logged in
// them in a sqlite database.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a recording is not in the catalog.
var ErrNotFound = errors.New("recording not found")

// Store is the recording catalog.
type Store struct {
	*sql.DB
}

// Recording is one cataloged recording.
type Recording struct {
	ID        string
	AppID     string
	Path      string
	StartNs   int64
	EndNs     int64
	Messages  int64
	Bytes     int64
	CreatedAt time.Time
}

// Entity summarizes what was logged under one entity path.
type Entity struct {
	RecordingID string
	Path        string
	Archetype   string
	Messages    int64
	Bytes       int64
	LastTimeNs  int64
}

// Open opens (or creates) the catalog at path and migrates it to the latest
// schema. Use ":memory:" for a throwaway catalog.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// sqlite serializes writers; one connection also keeps :memory: stable.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// UpsertRecording inserts or updates a recording row.
func (s *Store) UpsertRecording(ctx context.Context, r Recording) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO recordings (recording_id, app_id, path, start_ns, end_ns, messages, bytes, created_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(recording_id) DO UPDATE SET
			app_id = excluded.app_id,
			path = excluded.path,
			start_ns = excluded.start_ns,
			end_ns = excluded.end_ns,
			messages = excluded.messages,
			bytes = excluded.bytes
	`, r.ID, r.AppID, r.Path, r.StartNs, r.EndNs, r.Messages, r.Bytes, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert recording %s: %w", r.ID, err)
	}
	return nil
}

// RecordEntity adds one message to an entity's totals.
func (s *Store) RecordEntity(ctx context.Context, recordingID, path, archetype string, bytes, timeNs int64) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO entities (recording_id, entity_path, archetype, messages, bytes, last_time_ns)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(recording_id, entity_path) DO UPDATE SET
			archetype = excluded.archetype,
			messages = entities.messages + 1,
			bytes = entities.bytes + excluded.bytes,
			last_time_ns = MAX(entities.last_time_ns, excluded.last_time_ns)
	`, recordingID, path, archetype, bytes, timeNs)
	if err != nil {
		return fmt.Errorf("failed to record entity %s: %w", path, err)
	}
	return nil
}

// GetRecording returns one recording.
func (s *Store) GetRecording(ctx context.Context, id string) (Recording, error) {
	row := s.QueryRowContext(ctx, `
		SELECT recording_id, app_id, path, start_ns, end_ns, messages, bytes, created_ns
		FROM recordings WHERE recording_id = ?
	`, id)
	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Recording{}, fmt.Errorf("failed to get recording %s: %w", id, err)
	}
	return r, nil
}

// ListRecordings returns recordings, newest first. An empty appID lists all.
func (s *Store) ListRecordings(ctx context.Context, appID string) ([]Recording, error) {
	query := `
		SELECT recording_id, app_id, path, start_ns, end_ns, messages, bytes, created_ns
		FROM recordings`
	var args []any
	if appID != "" {
		query += ` WHERE app_id = ?`
		args = append(args, appID)
	}
	query += ` ORDER BY start_ns DESC, recording_id`

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListEntities returns a recording's entities ordered by path.
func (s *Store) ListEntities(ctx context.Context, recordingID string) ([]Entity, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT recording_id, entity_path, archetype, messages, bytes, last_time_ns
		FROM entities WHERE recording_id = ?
		ORDER BY entity_path
	`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.RecordingID, &e.Path, &e.Archetype, &e.Messages, &e.Bytes, &e.LastTimeNs); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteRecording removes a recording and its entities.
func (s *Store) DeleteRecording(ctx context.Context, id string) error {
	res, err := s.ExecContext(ctx, `DELETE FROM recordings WHERE recording_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recording %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(sc scanner) (Recording, error) {
	var r Recording
	var createdNs int64
	if err := sc.Scan(&r.ID, &r.AppID, &r.Path, &r.StartNs, &r.EndNs, &r.Messages, &r.Bytes, &createdNs); err != nil {
		return Recording{}, err
	}
	r.CreatedAt = time.Unix(0, createdNs)
	return r, nil
}
