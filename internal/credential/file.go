package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store persisted as a JSON object (identifier -> secret) at Path. The file and its directory are created with owner-only permissions on first Store.
type File struct {
	Path string

	mu sync.Mutex
}

// DefaultFilePath returns ~/.quicktypofix/credentials.json.
func DefaultFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".quicktypofix", "credentials.json"), nil
}

// NewFile returns a File store at path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Store implements Store.
func (f *File) Store(id string, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	m[id] = secret
	return f.write(m)
}

// Retrieve implements Store.
func (f *File) Retrieve(id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return "", err
	}
	secret, ok := m[id]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Delete implements Store. Deleting a missing identifier is not an error.
func (f *File) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := m[id]; !ok {
		return nil
	}
	delete(m, id)
	return f.write(m)
}

func (f *File) read() (map[string]string, error) {
	m := map[string]string{}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", f.Path, err)
	}
	return m, nil
}

func (f *File) write(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	// Write to a temp file and rename so a crash never leaves a truncated file.
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Memory is an in-memory Store. The zero value is ready to use.
type Memory struct {
	mu      sync.Mutex
	secrets map[string]string
}

// Store implements Store.
func (m *Memory) Store(id string, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secrets == nil {
		m.secrets = map[string]string{}
	}
	m.secrets[id] = secret
	return nil
}

// Retrieve implements Store.
func (m *Memory) Retrieve(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.secrets[id]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Delete implements Store.
func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, id)
	return nil
}
