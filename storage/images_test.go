package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalImageStoreLoad(t *testing.T) {
	root := t.TempDir()
	framePath := filepath.Join(root, "job1", "frames", "00001.jpg")
	if err := os.MkdirAll(filepath.Dir(framePath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(framePath, []byte("jpeg bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewLocalImageStore(root)
	data, err := s.Load(framePath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestLocalImageStoreRejectsEscape(t *testing.T) {
	s := NewLocalImageStore(t.TempDir())
	if _, err := s.Load("/etc/passwd"); err == nil {
		t.Fatal("expected error for path outside data root")
	}
}

func TestLocalImageStoreCleanup(t *testing.T) {
	root := t.TempDir()
	jobDir := filepath.Join(root, "job1")
	if err := os.MkdirAll(filepath.Join(jobDir, "frames"), 0755); err != nil {
		t.Fatal(err)
	}

	s := NewLocalImageStore(root)
	if err := s.Cleanup("job1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(jobDir); !os.IsNotExist(err) {
		t.Error("job dir should be removed")
	}

	if err := s.Cleanup(""); err == nil {
		t.Error("empty job id must be rejected")
	}
}
