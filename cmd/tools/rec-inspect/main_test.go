package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/sensorlog/internal/archetypes"
	"github.com/banshee-data/sensorlog/internal/batch"
	"github.com/banshee-data/sensorlog/internal/components"
	"github.com/banshee-data/sensorlog/internal/monitoring"
	"github.com/banshee-data/sensorlog/internal/rec"
	"github.com/banshee-data/sensorlog/internal/report"
	"github.com/banshee-data/sensorlog/internal/timeutil"
)

// writeRecording logs one point cloud per second, starting at t=100s.
func writeRecording(t *testing.T, n int) string {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	clock := timeutil.NewMockClock(time.Unix(100, 0))
	stream := rec.NewRecordingStream("inspect_test", rec.WithClock(clock))

	cfg := rec.DefaultRecorderConfig()
	cfg.Clock = clock
	path := filepath.Join(t.TempDir(), "inspect"+rec.FileExtension)
	if _, err := stream.Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	for i := 0; i < n; i++ {
		p := archetypes.NewPoints3D(batch.Of(components.Position3D{X: float32(i)}))
		if err := stream.Log("world/points", p); err != nil {
			t.Fatalf("log %d: %v", i, err)
		}
		clock.Advance(time.Second)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func TestInspectLog(t *testing.T) {
	path := writeRecording(t, 3)

	tests := []struct {
		name     string
		fromNs   int64
		want     []string
		dontWant string
	}{
		{
			name:     "whole recording",
			want:     []string{"Recording holds 3 messages over 2.00 seconds", "/world/points"},
			dontWant: "Summarized",
		},
		{
			name:   "from timestamp",
			fromNs: time.Unix(102, 0).UnixNano(),
			want:   []string{"Recording holds 3 messages", "Summarized 1 messages from 102000000000 ns"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := inspectLog(&out, path, tt.fromNs, "", report.DefaultOptions()); err != nil {
				t.Fatalf("inspectLog: %v", err)
			}
			got := out.String()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q:\n%s", w, got)
				}
			}
			if tt.dontWant != "" && strings.Contains(got, tt.dontWant) {
				t.Errorf("output contains %q:\n%s", tt.dontWant, got)
			}
		})
	}
}

func TestInspectLogMissing(t *testing.T) {
	var out bytes.Buffer
	if err := inspectLog(&out, filepath.Join(t.TempDir(), "none.sllog"), 0, "", report.DefaultOptions()); err == nil {
		t.Error("expected error for a missing recording")
	}
}
