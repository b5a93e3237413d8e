package abicache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
)

// FileStore should comply with the Store interface
var _ Store = &FileStore{}

// FileStore persists one JSON file per contract address under a directory.
// This is the default production backing, surviving across runs.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a FileStore over
// it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ABI cache dir %s: %w", dir, err)
	}

	return &FileStore{dir: dir}, nil
}

// DefaultDir returns the per-user cache directory for the tool.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(base, "chieftally"), nil
}

func (s *FileStore) Get(_ context.Context, address common.Address) (string, bool, error) {
	data, err := os.ReadFile(s.path(address))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return string(data), true, nil
}

func (s *FileStore) Put(_ context.Context, address common.Address, abiJSON string) error {
	return os.WriteFile(s.path(address), []byte(abiJSON), 0o644)
}

func (s *FileStore) path(address common.Address) string {
	return filepath.Join(s.dir, address.Hex()+".json")
}
