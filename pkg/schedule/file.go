package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileStore persists specs as one YAML document on disk, suiting desktop
// installations where schedules must outlive the process without a database.
// Every mutation rewrites the file atomically (temp file plus rename), so a
// crash mid-save never leaves a torn document.
type FileStore struct {
	mu    sync.Mutex
	path  string
	specs map[uuid.UUID]*Spec
}

// fileDoc is the on-disk shape; a versioned wrapper leaves room for future
// format changes.
type fileDoc struct {
	Version int     `yaml:"version"`
	Specs   []*Spec `yaml:"specs"`
}

// NewFileStore opens or creates the spec file at path.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path:  path,
		specs: make(map[uuid.UUID]*Spec),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read spec file %s: %w", path, err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse spec file %s: %w", path, err)
	}

	for _, s := range doc.Specs {
		fs.specs[s.ID] = s
	}
	return fs, nil
}

// save rewrites the whole document. Caller holds the lock.
func (fs *FileStore) save() error {
	doc := fileDoc{Version: 1, Specs: make([]*Spec, 0, len(fs.specs))}
	for _, s := range fs.specs {
		doc.Specs = append(doc.Specs, s)
	}
	sort.Slice(doc.Specs, func(i, k int) bool {
		return doc.Specs[i].CreatedAt.Before(doc.Specs[k].CreatedAt)
	})

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode specs: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create spec dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".schedules-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp spec file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp spec file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp spec file: %w", err)
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace spec file: %w", err)
	}
	return nil
}

func (fs *FileStore) Create(ctx context.Context, spec *Spec) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.specs[spec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrSpecExists, spec.ID)
	}

	fs.specs[spec.ID] = cloneSpec(spec)
	if err := fs.save(); err != nil {
		delete(fs.specs, spec.ID)
		return err
	}
	return nil
}

func (fs *FileStore) Get(ctx context.Context, id uuid.UUID) (*Spec, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, ok := fs.specs[id]
	if !ok {
		return nil, ErrSpecNotFound
	}
	return cloneSpec(s), nil
}

func (fs *FileStore) Update(ctx context.Context, spec *Spec) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, ok := fs.specs[spec.ID]
	if !ok {
		return ErrSpecNotFound
	}

	fs.specs[spec.ID] = cloneSpec(spec)
	if err := fs.save(); err != nil {
		fs.specs[spec.ID] = prev
		return err
	}
	return nil
}

func (fs *FileStore) Delete(ctx context.Context, id uuid.UUID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, ok := fs.specs[id]
	if !ok {
		return ErrSpecNotFound
	}

	delete(fs.specs, id)
	if err := fs.save(); err != nil {
		fs.specs[id] = prev
		return err
	}
	return nil
}

func (fs *FileStore) List(ctx context.Context) ([]*Spec, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make([]*Spec, 0, len(fs.specs))
	for _, s := range fs.specs {
		out = append(out, cloneSpec(s))
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out, nil
}
