// Package storage gives each mod a private directory for save files.
//
// Every mod gets a directory under the data root named after its module
// file stem. All access goes through os.Root, so a guest path can never
// name a file outside that directory.
package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MaxFileSize bounds a single load so a guest cannot make the host read an
// arbitrarily large file into guest memory.
const MaxFileSize = 16 << 20

// Store hands out per-mod sandboxes below one data directory.
type Store struct {
	log  *zap.Logger
	dir  string
	open map[string]*Sandbox
	mu   sync.Mutex
}

// NewStore creates dir if needed.
func NewStore(dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{log: log, dir: dir, open: make(map[string]*Sandbox)}, nil
}

// Stem returns the sandbox name for a module path: the base name without
// its extension.
func Stem(modulePath string) string {
	base := filepath.Base(modulePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Sandbox returns the sandbox for name, creating its directory on first
// use. Reloads of the same module share one sandbox.
func (s *Store) Sandbox(name string) (*Sandbox, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid sandbox name %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sb, ok := s.open[name]; ok {
		return sb, nil
	}
	dir := filepath.Join(s.dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open sandbox: %w", err)
	}
	sb := &Sandbox{root: root, name: name, log: s.log.With(zap.String("sandbox", name))}
	s.open[name] = sb
	return sb, nil
}

// Close closes every open sandbox.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for name, sb := range s.open {
		if err := sb.root.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.open, name)
	}
	return first
}

// Sandbox is one mod's private directory.
type Sandbox struct {
	root *os.Root
	log  *zap.Logger
	name string
	mu   sync.Mutex
}

func (sb *Sandbox) Name() string { return sb.name }

// Load reads a file. A missing file is reported with fs.ErrNotExist.
func (sb *Sandbox) Load(path string) ([]byte, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	f, err := sb.root.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "load", Path: path, Err: fs.ErrInvalid}
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s: file of %d bytes exceeds limit", path, info.Size())
	}
	data := make([]byte, info.Size())
	if _, err := f.ReadAt(data, 0); err != nil && info.Size() > 0 {
		return nil, err
	}
	return data, nil
}

// Save writes data, creating parent directories inside the sandbox.
func (sb *Sandbox) Save(path string, data []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if len(data) > MaxFileSize {
		return fmt.Errorf("%s: %d bytes exceeds limit", path, len(data))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := sb.root.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := sb.root.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	sb.log.Debug("file saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}
