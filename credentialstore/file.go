// credentialstore/file.go
package credentialstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/deploymenttheory/go-api-http-session/credential"
)

// FileStore persists the session triple as a single JSON document. Writes go to a
// temporary file in the same directory which is then renamed over the target, so a
// reader never observes a partially written session.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by the file at path. The file is created on first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the backing file.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(ctx context.Context) (string, error) {
	rec, err := f.load()
	if err != nil {
		return "", err
	}
	return rec.Token, nil
}

func (f *FileStore) GetRenewal(ctx context.Context) (string, error) {
	rec, err := f.load()
	if err != nil {
		return "", err
	}
	return rec.RefreshToken, nil
}

func (f *FileStore) GetIdentity(ctx context.Context) (*credential.Identity, error) {
	rec, err := f.load()
	if err != nil {
		return nil, err
	}
	return rec.User, nil
}

func (f *FileStore) Set(ctx context.Context, access, renewal string, identity credential.Identity) error {
	data, err := json.MarshalIndent(record{Token: access, RefreshToken: renewal, User: &identity}, "", "  ")
	if err != nil {
		return &StoreError{Op: "set", Backend: "file", Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeFileAtomic(f.path, data); err != nil {
		return &StoreError{Op: "set", Backend: "file", Err: err}
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StoreError{Op: "clear", Backend: "file", Err: err}
	}
	return nil
}

func (f *FileStore) load() (record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rec record
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return rec, nil
	}
	if err != nil {
		return rec, &StoreError{Op: "read", Backend: "file", Err: err}
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, &StoreError{Op: "read", Backend: "file", Err: err}
	}
	return rec, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
