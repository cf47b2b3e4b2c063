package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/sensorlog/internal/rec"
)

func TestDefaultExampleConfig(t *testing.T) {
	cfg := DefaultExampleConfig()

	if cfg.NumPoints == nil || *cfg.NumPoints != 1000 {
		t.Errorf("Expected NumPoints 1000, got %v", cfg.NumPoints)
	}
	if cfg.ViewerAddr == nil || *cfg.ViewerAddr != "localhost:9876" {
		t.Errorf("Expected ViewerAddr 'localhost:9876', got %v", cfg.ViewerAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	// Getters on an empty config agree with the populated defaults.
	empty := &ExampleConfig{}
	if empty.GetNumPoints() != cfg.GetNumPoints() {
		t.Errorf("GetNumPoints() = %d, want %d", empty.GetNumPoints(), cfg.GetNumPoints())
	}
	if empty.GetWidth() != 640 || empty.GetHeight() != 480 {
		t.Errorf("resolution = %vx%v, want 640x480", empty.GetWidth(), empty.GetHeight())
	}
	if empty.GetFocalLength() != 500 {
		t.Errorf("GetFocalLength() = %v, want 500", empty.GetFocalLength())
	}
	if empty.GetAppID() != cfg.GetAppID() {
		t.Errorf("GetAppID() = %q, want %q", empty.GetAppID(), cfg.GetAppID())
	}
	if empty.GetImagePath() != cfg.GetImagePath() {
		t.Errorf("GetImagePath() = %q, want %q", empty.GetImagePath(), cfg.GetImagePath())
	}
	if empty.GetConnectTimeout() != 5*time.Second {
		t.Errorf("GetConnectTimeout() = %v, want 5s", empty.GetConnectTimeout())
	}
	if empty.GetSavePath() != "" {
		t.Errorf("GetSavePath() = %q, want empty", empty.GetSavePath())
	}
	if empty.GetBorrowImage() {
		t.Errorf("GetBorrowImage() = true, want false")
	}
	if _, ok := empty.GetSeed(); ok {
		t.Errorf("GetSeed() reported a seed on an empty config")
	}
	if rc := empty.RecorderConfig(); rc.Compression != rec.CompressionZstd || rc.ChunkSize != 1000 {
		t.Errorf("RecorderConfig() = %+v, want zstd/1000", rc)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "example.json")

	testJSON := `{
  "app_id": "bench",
  "num_points": 50,
  "seed": 42,
  "image_path": "testdata/pixel.png",
  "borrow_image": true,
  "save_path": "/tmp/out.sllog",
  "compression": "none",
  "connect_timeout": "250ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadExampleConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetAppID() != "bench" {
		t.Errorf("GetAppID() = %q, want bench", cfg.GetAppID())
	}
	if cfg.GetNumPoints() != 50 {
		t.Errorf("GetNumPoints() = %d, want 50", cfg.GetNumPoints())
	}
	if seed, ok := cfg.GetSeed(); !ok || seed != 42 {
		t.Errorf("GetSeed() = %d, %v, want 42, true", seed, ok)
	}
	if !cfg.GetBorrowImage() {
		t.Errorf("GetBorrowImage() = false, want true")
	}
	if cfg.GetSavePath() != "/tmp/out.sllog" {
		t.Errorf("GetSavePath() = %q", cfg.GetSavePath())
	}
	if cfg.GetConnectTimeout() != 250*time.Millisecond {
		t.Errorf("GetConnectTimeout() = %v, want 250ms", cfg.GetConnectTimeout())
	}
	if cfg.RecorderConfig().Compression != rec.CompressionNone {
		t.Errorf("RecorderConfig().Compression = %q, want none", cfg.RecorderConfig().Compression)
	}

	// Omitted fields fall back to defaults.
	if cfg.Width != nil {
		t.Errorf("Expected Width unset, got %v", *cfg.Width)
	}
	if cfg.GetWidth() != 640 {
		t.Errorf("GetWidth() = %v, want 640", cfg.GetWidth())
	}
	if cfg.GetViewerAddr() != "localhost:9876" {
		t.Errorf("GetViewerAddr() = %q", cfg.GetViewerAddr())
	}
}

func TestLoadExampleConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, content string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("config.yaml", `{}`), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"bad json", write("bad.json", `{"num_points": `), "failed to parse"},
		{"negative points", write("neg.json", `{"num_points": -1}`), "num_points"},
		{"zero width", write("width.json", `{"width": 0}`), "width"},
		{"bad timeout", write("timeout.json", `{"connect_timeout": "soon"}`), "connect_timeout"},
		{"bad compression", write("comp.json", `{"compression": "lz4"}`), "unknown compression"},
		{"empty app id", write("app.json", `{"app_id": ""}`), "app_id"},
		{"too large", write("large.json", `{"app_id": "`+strings.Repeat("x", 1024*1024)+`"}`), "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadExampleConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGetConnectTimeoutFallsBackOnParseError(t *testing.T) {
	cfg := &ExampleConfig{ConnectTimeout: ptrString("forever")}
	if got := cfg.GetConnectTimeout(); got != 5*time.Second {
		t.Errorf("GetConnectTimeout() = %v, want 5s", got)
	}
}
