// Package store implements a transactional document store on top of a git
// repository. Documents are blobs, folders are implied by blob paths and every
// mutation is one commit on a branch.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/thiagokokada/tmplstore/internal/git/backend"
)

const (
	DefaultBranch    = "main"
	DefaultCacheSize = 256
)

type blobKey struct {
	commitID string
	path     string
}

// Store owns one repository and its working tree. Reads may run concurrently;
// mutations go through Run and are executed one at a time in FIFO order.
type Store struct {
	backend        backend.Backend
	path           string
	defaultBranch  string
	protectDefault bool
	cacheSize      int
	watchDelay     time.Duration
	logger         *slog.Logger

	initGroup singleflight.Group
	initDone  atomic.Bool

	trees *lru.Cache[string, []Entry]
	blobs *lru.Cache[blobKey, []byte]

	queue queue
}

type Option func(*Store)

func WithDefaultBranch(name string) Option {
	return func(s *Store) {
		if name = strings.TrimSpace(name); name != "" {
			s.defaultBranch = name
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCacheSize bounds the number of trees and blobs kept in memory. Zero or
// a negative size disables caching.
func WithCacheSize(n int) Option {
	return func(s *Store) { s.cacheSize = n }
}

// WithDefaultBranchProtection makes RenameBranch and DeleteBranch refuse to
// touch the default branch.
func WithDefaultBranchProtection(enabled bool) Option {
	return func(s *Store) { s.protectDefault = enabled }
}

func WithWatchDelay(d time.Duration) Option {
	return func(s *Store) { s.watchDelay = d }
}

func New(b backend.Backend, opts ...Option) *Store {
	s := &Store{
		backend:       b,
		path:          b.RepoPath(),
		defaultBranch: DefaultBranch,
		cacheSize:     DefaultCacheSize,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize > 0 {
		// lru.New only fails for a non-positive size.
		s.trees, _ = lru.New[string, []Entry](s.cacheSize)
		s.blobs, _ = lru.New[blobKey, []byte](s.cacheSize)
	}
	return s
}

// Open returns a Store for the repository at path backed by go-git. The
// repository is created on first use.
func Open(path string, opts ...Option) (*Store, error) {
	b, err := backend.OpenNative(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return New(b, opts...), nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) DefaultBranch() string { return s.defaultBranch }

// Init creates the repository with the default branch when it does not exist.
// Concurrent callers share one in-flight initialization; success is
// remembered, failures are retried by the next call.
func (s *Store) Init(ctx context.Context) error {
	if s.initDone.Load() {
		return nil
	}
	ch := s.initGroup.DoChan("init", func() (any, error) {
		if s.initDone.Load() {
			return nil, nil
		}
		if err := s.initRepository(); err != nil {
			return nil, err
		}
		s.initDone.Store(true)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) initRepository() error {
	exists, err := s.backend.Exists()
	if err != nil {
		return fmt.Errorf("check repository %s: %w", s.path, err)
	}
	if exists {
		return nil
	}
	if err := s.backend.Init(s.defaultBranch); err != nil {
		return fmt.Errorf("init repository %s: %w", s.path, err)
	}
	s.logger.Info("repository created",
		slog.String("path", s.path),
		slog.String("default_branch", s.defaultBranch),
	)
	return nil
}

// Run executes fn with a fresh transaction after every previously submitted
// unit of work has finished. When ctx ends first Run returns ctx.Err(), but
// the unit of work still runs once dequeued.
func (s *Store) Run(ctx context.Context, fn func(tx *Tx) error) error {
	if fn == nil {
		return &InvalidArgumentError{Msg: "unit of work not set"}
	}
	if err := s.Init(ctx); err != nil {
		return err
	}
	return s.enqueue(ctx, func() error {
		tx := newTx(s)
		start := time.Now()
		err := fn(tx)
		tx.close()
		if err != nil {
			tx.logger.Debug("unit of work failed",
				slog.Duration("elapsed", time.Since(start)),
				slog.Any("error", err),
			)
			return err
		}
		tx.logger.Debug("unit of work done", slog.Duration("elapsed", time.Since(start)))
		return nil
	})
}

func (s *Store) enqueue(ctx context.Context, job func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	s.queue.push(func() {
		done <- s.safeRun(job)
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) safeRun(job func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("unit of work panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("unit of work panicked: %v", r)
		}
	}()
	return job()
}

// resolve maps ref ("" meaning the default branch) to a commit id. ok is false
// when ref has no history.
func (s *Store) resolve(ref string) (commitID string, ok bool, err error) {
	commitID, err = s.backend.ResolveRef(s.refOrDefault(ref))
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return commitID, true, nil
}

func (s *Store) refOrDefault(ref string) string {
	if ref = strings.TrimSpace(ref); ref != "" {
		return ref
	}
	return s.defaultBranch
}
