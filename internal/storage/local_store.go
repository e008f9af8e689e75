package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// LocalStore is the development BlobStore backed by a directory that the
// server exposes statically.
type LocalStore struct {
	baseDir      string
	publicPrefix string
}

func NewLocalStore(baseDir, publicPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{
		baseDir:      baseDir,
		publicPrefix: strings.TrimSuffix(publicPrefix, "/"),
	}, nil
}

func (s *LocalStore) Upload(_ context.Context, data []byte, path string, mime string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return s.publicPrefix + "/" + path, nil
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	err := os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// SniffMime detects the content type from the bytes themselves; the declared
// type from the client is not trusted.
func SniffMime(data []byte) string {
	return mimetype.Detect(data).String()
}
