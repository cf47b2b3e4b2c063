package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "recordings"), 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing subdir", filepath.Join(root, "recordings"), false},
		{"new file", filepath.Join(root, "recordings", "demo.sllog"), false},
		{"nested new dirs", filepath.Join(root, "a", "b", "c.sllog"), false},
		{"root itself", root, false},
		{"parent escape", filepath.Join(root, "..", "elsewhere"), true},
		{"dotdot inside", filepath.Join(root, "recordings", "..", "..", "x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, root)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePathWithinDirectory_Symlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if err := ValidatePathWithinDirectory(filepath.Join(link, "rec.sllog"), root); err == nil {
		t.Error("expected symlink escape to be rejected")
	}
}

func TestValidatePathWithinDirectory_MissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	if err := ValidatePathWithinDirectory(filepath.Join(missing, "x"), missing); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sensorlog_example_batch_adapters", "sensorlog_example_batch_adapters"},
		{"my app/v1", "my_app_v1"},
		{"../../etc/passwd", "etc_passwd"},
		{"a  b\t\tc", "a_b_c"},
		{"", "unknown"},
		{"...", "unknown"},
		{"caméra", "cam_ra"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := SanitizeFilename(strings.Repeat("x", 500))
	if len(long) != maxFilenameLen {
		t.Errorf("len(SanitizeFilename(long)) = %d, want %d", len(long), maxFilenameLen)
	}
}
