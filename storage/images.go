package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ImageStore reads frame images back for transport and cleans up per-job
// scratch space. Frames are persisted as files at extraction time; nothing
// keeps the encoded bytes in memory between pipeline stages.
type ImageStore interface {
	Load(path string) ([]byte, error)
	Cleanup(jobID string) error
}

// LocalImageStore serves frame images from the data directory.
type LocalImageStore struct {
	root string
}

func NewLocalImageStore(root string) *LocalImageStore {
	return &LocalImageStore{root: root}
}

func (s *LocalImageStore) Load(path string) ([]byte, error) {
	// Frame paths are produced by the extractor, but refuse anything that
	// escapes the data root in case one arrives from a request.
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
		return nil, fmt.Errorf("image path outside data root: %s", path)
	}
	return os.ReadFile(abs)
}

func (s *LocalImageStore) Cleanup(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("empty job id")
	}
	return os.RemoveAll(filepath.Join(s.root, jobID))
}
