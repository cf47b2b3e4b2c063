package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	fsys := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "rec", "frames")

	if err := fsys.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if !fsys.Exists(dir) {
		t.Error("directory should exist after MkdirAll")
	}

	path := filepath.Join(dir, "chunk_0000.pb")
	w, err := fsys.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := w.Write([]byte("frame")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "frame" {
		t.Errorf("ReadFile() = %q, want %q", data, "frame")
	}

	header := filepath.Join(dir, "header.json")
	if err := fsys.WriteFile(header, []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if !fsys.Exists(header) {
		t.Error("header should exist")
	}
	if fsys.Exists(filepath.Join(dir, "missing")) {
		t.Error("missing file should not exist")
	}
}

func TestOSFileSystem_WriteFileReplaces(t *testing.T) {
	fsys := OSFileSystem{}
	dir := t.TempDir()
	path := filepath.Join(dir, "header.json")

	if err := fsys.WriteFile(path, []byte(`{"total_messages":1}`), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := fsys.WriteFile(path, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("contents = %q, want {}", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only header.json, temporary files left behind: %v", entries)
	}
}

func TestOSFileSystem_WriteFileMissingDir(t *testing.T) {
	err := OSFileSystem{}.WriteFile(filepath.Join(t.TempDir(), "nope", "header.json"), nil, 0644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("WriteFile() error = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("/logs/a/frames", 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	w, err := m.Create("/logs/a/frames/chunk_0000.pb")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	w.Write([]byte("hello "))
	w.Write([]byte("world"))

	data, err := m.ReadFile("/logs/a/frames/chunk_0000.pb")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) != 0 {
		t.Errorf("data visible before Close: %q", data)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	data, _ = m.ReadFile("/logs/a/frames/chunk_0000.pb")
	if string(data) != "hello world" {
		t.Errorf("ReadFile() = %q, want %q", data, "hello world")
	}

	if _, err := w.Write([]byte("x")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Write after Close error = %v, want ErrClosed", err)
	}
	if err := w.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("second Close error = %v, want ErrClosed", err)
	}
}

func TestMemoryFileSystem_RequiresParentDir(t *testing.T) {
	m := NewMemoryFileSystem()

	if _, err := m.Create("/nope/file"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Create() error = %v, want ErrNotExist", err)
	}
	if err := m.WriteFile("/nope/file", nil, 0644); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("WriteFile() error = %v, want ErrNotExist", err)
	}
	if _, err := m.ReadFile("/nope/file"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile() error = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_MkdirAllCreatesParents(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	for _, dir := range []string{"a", "a/b", "a/b/c"} {
		if !m.Exists(dir) {
			t.Errorf("Exists(%q) = false, want true", dir)
		}
	}
}

func TestMemoryFileSystem_DataIsolation(t *testing.T) {
	m := NewMemoryFileSystem()
	m.MkdirAll("/d", 0755)

	src := []byte("abc")
	if err := m.WriteFile("/d/f", src, os.FileMode(0644)); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	src[0] = 'X'

	got, _ := m.ReadFile("/d/f")
	if string(got) != "abc" {
		t.Errorf("stored data changed with source: %q", got)
	}
	got[1] = 'Y'
	again, _ := m.ReadFile("/d/f")
	if string(again) != "abc" {
		t.Errorf("stored data changed with returned slice: %q", again)
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	m := NewMemoryFileSystem()
	m.MkdirAll("/r/frames", 0755)
	m.WriteFile("/r/header.json", nil, 0644)
	m.WriteFile("/r/frames/chunk_0001.pb", nil, 0644)
	m.WriteFile("/r/frames/chunk_0000.pb", nil, 0644)

	got := m.Files("/r/frames")
	want := []string{"/r/frames/chunk_0000.pb", "/r/frames/chunk_0001.pb"}
	if len(got) != len(want) {
		t.Fatalf("Files() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Files()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
