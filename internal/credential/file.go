package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists the token in a single file so it survives restarts.
// Writes go through a temp file and rename; the file is fsynced before the
// rename so Save is durable when it returns.
type FileStore struct {
	path   string
	sealer *Sealer
	mu     sync.Mutex
}

// NewFileStore returns a store rooted at path. A non-nil sealer encrypts the
// token at rest.
func NewFileStore(path string, sealer *Sealer) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("token file path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}

	return &FileStore{path: path, sealer: sealer}, nil
}

func (s *FileStore) Save(_ context.Context, token string) error {
	token, err := normalize(token)
	if err != nil {
		return err
	}

	payload := []byte(token)
	if s.sealer != nil {
		payload, err = s.sealer.Seal(payload)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeFileAtomic(s.path, payload)
}

func (s *FileStore) Read(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return absent()
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	if len(raw) == 0 {
		return absent()
	}

	if s.sealer != nil {
		raw, err = s.sealer.Open(raw)
		if err != nil {
			return "", err
		}
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return absent()
	}

	return token, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".token-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp token file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace token file: %w", err)
	}

	return nil
}
