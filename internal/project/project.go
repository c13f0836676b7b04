// Package project lays out repositories under a data directory: one root
// template tree and one repository per project.
package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/thiagokokada/tmplstore/internal/git/backend"
	"github.com/thiagokokada/tmplstore/internal/store"
)

const (
	TemplatesDirName = "templates"
	ProjectsDirName  = "projects"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrInvalidID = errors.New("invalid project id")
)

// OpenBackend returns a backend bound to a repository directory.
type OpenBackend func(path string) (backend.Backend, error)

// Manager hands out stores for the data directory. There is at most one
// Store per repository path so every mutation of a working tree goes through
// the same queue.
type Manager struct {
	dataDir   string
	open      OpenBackend
	storeOpts []store.Option

	mu     sync.Mutex
	stores map[string]*store.Store
}

type Option func(*Manager)

// WithBackend selects how repositories are opened. The default is the go-git
// backend.
func WithBackend(open OpenBackend) Option {
	return func(m *Manager) {
		if open != nil {
			m.open = open
		}
	}
}

func WithStoreOptions(opts ...store.Option) Option {
	return func(m *Manager) {
		m.storeOpts = append(m.storeOpts, opts...)
	}
}

func NewManager(dataDir string, opts ...Option) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory not set")
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	m := &Manager{
		dataDir: abs,
		open:    backend.OpenNative,
		stores:  make(map[string]*store.Store),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) DataDir() string { return m.dataDir }

func (m *Manager) TemplatesPath() string {
	return filepath.Join(m.dataDir, TemplatesDirName)
}

func (m *Manager) ProjectsPath() string {
	return filepath.Join(m.dataDir, ProjectsDirName)
}

// Templates returns the store of the root template tree.
func (m *Manager) Templates() (*store.Store, error) {
	return m.storeFor(m.TemplatesPath())
}

// Project returns the store of an existing project.
func (m *Manager) Project(id string) (*store.Store, error) {
	canonical, err := parseID(id)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(m.ProjectsPath(), canonical)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, fmt.Errorf("%s: %w", canonical, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("stat project %s: %w", canonical, err)
	}
	return m.storeFor(path)
}

// Create allocates a new project id and initializes its repository.
func (m *Manager) Create(ctx context.Context) (string, *store.Store, error) {
	id := uuid.NewString()
	path := filepath.Join(m.ProjectsPath(), id)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", nil, fmt.Errorf("create project %s: %w", id, err)
	}
	s, err := m.storeFor(path)
	if err != nil {
		return "", nil, err
	}
	if err := s.Init(ctx); err != nil {
		return "", nil, fmt.Errorf("init project %s: %w", id, err)
	}
	slog.Info("project created", slog.String("project", id), slog.String("path", path))
	return id, s, nil
}

// List returns the ids of all projects, sorted. Entries of the projects
// directory that are not project repositories are skipped.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.ProjectsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	ids := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := parseID(e.Name())
		if err != nil || id != e.Name() {
			slog.Debug("skipping non-project directory", slog.String("name", e.Name()))
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Manager) storeFor(path string) (*store.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[path]; ok {
		return s, nil
	}
	b, err := m.open(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	s := store.New(b, m.storeOpts...)
	m.stores[path] = s
	return s, nil
}

func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return parsed.String(), nil
}
