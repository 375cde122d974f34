package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileStore persists each snapshot as a YAML document at
// <root>/<domain>/<key>.yaml.
type FileStore[T any] struct {
	root string
}

type fileDocument[T any] struct {
	Meta     Meta `yaml:"meta"`
	Snapshot T    `yaml:"snapshot"`
}

// NewFileStore returns a FileStore rooted at root. Directories are created on
// first save.
func NewFileStore[T any](root string) *FileStore[T] {
	return &FileStore[T]{root: root}
}

// Path returns the file backing ref.
func (s *FileStore[T]) Path(ref Ref) (string, error) {
	key, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)+".yaml"), nil
}

func (s *FileStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}
	path, err := s.Path(ref)
	if err != nil {
		return zero, Meta{}, false, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return zero, Meta{}, false, nil
	}
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	var doc fileDocument[T]
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return zero, Meta{}, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc.Snapshot, doc.Meta, true, nil
}

// Save writes through a temporary file so readers never observe a partial
// document.
func (s *FileStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	path, err := s.Path(ref)
	if err != nil {
		return Meta{}, err
	}
	raw, err := yaml.Marshal(fileDocument[T]{Meta: meta, Snapshot: snapshot})
	if err != nil {
		return Meta{}, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Meta{}, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return Meta{}, fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return Meta{}, fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return Meta{}, fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Meta{}, fmt.Errorf("rename %s: %w", path, err)
	}
	return cloneMeta(meta), nil
}
