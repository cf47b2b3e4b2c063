package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/sensorlog/internal/rec"
)

// ExampleConfig is the configuration of the example driver. Every field is
// optional: the Get* methods return defaults for fields left unset, so a
// partial JSON file is safe.
type ExampleConfig struct {
	AppID *string `json:"app_id,omitempty"`

	// Sample data
	NumPoints   *int     `json:"num_points,omitempty"`
	Seed        *uint64  `json:"seed,omitempty"` // unset = time seeded
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	FocalLength *float64 `json:"focal_length,omitempty"`
	ImagePath   *string  `json:"image_path,omitempty"`
	BorrowImage *bool    `json:"borrow_image,omitempty"`

	// Destination. SavePath wins over ViewerAddr when both are set.
	ViewerAddr     *string `json:"viewer_addr,omitempty"`
	ConnectTimeout *string `json:"connect_timeout,omitempty"` // duration string like "5s"
	SavePath       *string `json:"save_path,omitempty"`
	Compression    *string `json:"compression,omitempty"`
	ChunkSize      *int    `json:"chunk_size,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultExampleConfig returns a config with every field set to its default.
func DefaultExampleConfig() *ExampleConfig {
	return &ExampleConfig{
		AppID:          ptrString("sensorlog_example"),
		NumPoints:      ptrInt(1000),
		Width:          ptrFloat64(640),
		Height:         ptrFloat64(480),
		FocalLength:    ptrFloat64(500),
		ImagePath:      ptrString("sensorlog-logo.png"),
		BorrowImage:    ptrBool(false),
		ViewerAddr:     ptrString("localhost:9876"),
		ConnectTimeout: ptrString("5s"),
		SavePath:       ptrString(""),
		Compression:    ptrString(rec.CompressionZstd),
		ChunkSize:      ptrInt(1000),
	}
}

// LoadExampleConfig loads an ExampleConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadExampleConfig(path string) (*ExampleConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ExampleConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ExampleConfig) Validate() error {
	if c.AppID != nil && *c.AppID == "" {
		return fmt.Errorf("app_id must not be empty")
	}
	if c.NumPoints != nil && *c.NumPoints < 0 {
		return fmt.Errorf("num_points must be non-negative, got %d", *c.NumPoints)
	}
	if c.Width != nil && *c.Width <= 0 {
		return fmt.Errorf("width must be positive, got %f", *c.Width)
	}
	if c.Height != nil && *c.Height <= 0 {
		return fmt.Errorf("height must be positive, got %f", *c.Height)
	}
	if c.FocalLength != nil && *c.FocalLength <= 0 {
		return fmt.Errorf("focal_length must be positive, got %f", *c.FocalLength)
	}
	if c.ConnectTimeout != nil && *c.ConnectTimeout != "" {
		if _, err := time.ParseDuration(*c.ConnectTimeout); err != nil {
			return fmt.Errorf("invalid connect_timeout '%s': %w", *c.ConnectTimeout, err)
		}
	}
	return c.RecorderConfig().Validate()
}

// GetAppID returns the app_id value or the default.
func (c *ExampleConfig) GetAppID() string {
	if c.AppID == nil {
		return "sensorlog_example"
	}
	return *c.AppID
}

// GetNumPoints returns the num_points value or the default.
func (c *ExampleConfig) GetNumPoints() int {
	if c.NumPoints == nil {
		return 1000
	}
	return *c.NumPoints
}

// GetSeed returns the seed and whether one was configured.
func (c *ExampleConfig) GetSeed() (uint64, bool) {
	if c.Seed == nil {
		return 0, false
	}
	return *c.Seed, true
}

// GetWidth returns the camera image width in pixels.
func (c *ExampleConfig) GetWidth() float64 {
	if c.Width == nil {
		return 640
	}
	return *c.Width
}

// GetHeight returns the camera image height in pixels.
func (c *ExampleConfig) GetHeight() float64 {
	if c.Height == nil {
		return 480
	}
	return *c.Height
}

// GetFocalLength returns the focal_length value or the default.
func (c *ExampleConfig) GetFocalLength() float64 {
	if c.FocalLength == nil {
		return 500
	}
	return *c.FocalLength
}

// GetImagePath returns the image_path value or the default.
func (c *ExampleConfig) GetImagePath() string {
	if c.ImagePath == nil {
		return "sensorlog-logo.png"
	}
	return *c.ImagePath
}

// GetBorrowImage reports whether the image buffer is logged without copying.
func (c *ExampleConfig) GetBorrowImage() bool {
	if c.BorrowImage == nil {
		return false
	}
	return *c.BorrowImage
}

// GetViewerAddr returns the viewer_addr value or the default.
func (c *ExampleConfig) GetViewerAddr() string {
	if c.ViewerAddr == nil {
		return "localhost:9876"
	}
	return *c.ViewerAddr
}

// GetConnectTimeout parses and returns the ConnectTimeout as a time.Duration.
func (c *ExampleConfig) GetConnectTimeout() time.Duration {
	if c.ConnectTimeout == nil || *c.ConnectTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.ConnectTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetSavePath returns the save_path value. Empty means stream to the viewer.
func (c *ExampleConfig) GetSavePath() string {
	if c.SavePath == nil {
		return ""
	}
	return *c.SavePath
}

// RecorderConfig returns the recorder settings used when saving to disk.
func (c *ExampleConfig) RecorderConfig() rec.RecorderConfig {
	cfg := rec.DefaultRecorderConfig()
	if c.Compression != nil {
		cfg.Compression = *c.Compression
	}
	if c.ChunkSize != nil {
		cfg.ChunkSize = *c.ChunkSize
	}
	return cfg
}
