package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jhoicas/nfe-emissor/internal/domain"
)

// LocalStore guarda artefactos bajo un directorio raíz.
type LocalStore struct {
	root string
}

// NewLocalStore root vacío usa "./storage".
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = "storage"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolver directorio: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: crear directorio: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", fmt.Errorf("storage: crear directorio: %w", err)
	}
	// Escritura atómica: archivo temporal + rename.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("storage: crear temporal: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: escribir %s: %w", k, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: cerrar %s: %w", k, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("storage: mover %s: %w", k, err)
	}
	return p, nil
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(k)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, k)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: leer %s: %w", k, err)
	}
	return data, nil
}
