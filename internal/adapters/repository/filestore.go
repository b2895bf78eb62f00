package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/okian/immersivescaler/internal/domain/avatar"
	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/pkg/logger"
)

// Extension is the file extension of avatar documents.
const Extension = ".yaml"

// FileStore keeps one YAML document per avatar in a directory.
type FileStore struct {
	mu       sync.RWMutex
	dir      string
	resolver *bonemap.Resolver
	logger   logger.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string, opts ...Option) *FileStore {
	s := &FileStore{
		dir:      dir,
		resolver: bonemap.NewResolver(),
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name+Extension), nil
}

// Load reads and resolves the named avatar.
func (s *FileStore) Load(ctx context.Context, name string) (*avatar.Avatar, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	b, err := os.ReadFile(p)
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read avatar %s: %w", name, err)
	}
	a, err := Decode(bytes.NewReader(b), s.resolver)
	if err != nil {
		s.logger.Error(ctx, "avatar document rejected", logger.String("name", name), logger.Error(err))
		return nil, err
	}
	if a.Name == "" {
		a.Name = name
	}
	s.logger.Debug(ctx, "avatar loaded",
		logger.String("name", name),
		logger.Int("bound_roles", len(a.Bones)),
		logger.Bool("has_descriptor", a.Descriptor != nil),
		logger.Bool("has_component", a.Component != nil),
	)
	return a, nil
}

// Save writes the avatar under name. The document is written to a
// temporary file first and renamed over the old one.
func (s *FileStore) Save(ctx context.Context, name string, a *avatar.Avatar) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("save avatar %s: %w", name, err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("save avatar %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("save avatar %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("save avatar %s: %w", name, err)
	}
	s.logger.Info(ctx, "avatar saved", logger.String("name", name), logger.String("path", p))
	return nil
}

// List returns the stored names in lexical order. A missing directory is empty.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	entries, err := os.ReadDir(s.dir)
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list avatars: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Extension {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Extension))
	}
	sort.Strings(names)
	return names, nil
}
