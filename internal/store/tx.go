package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/thiagokokada/tmplstore/internal/git/backend"
)

// Tx stages changes to the working tree for a single commit. Filesystem
// changes happen immediately; the index is only touched by Commit.
//
// A Tx is only valid inside the function passed to Store.Run and must not be
// shared between goroutines.
type Tx struct {
	store  *Store
	id     string
	logger *slog.Logger

	branch      string
	addPaths    []string
	removePaths []string

	committed bool
	closed    bool
}

func newTx(s *Store) *Tx {
	id := uuid.NewString()
	return &Tx{
		store:  s,
		id:     id,
		logger: s.logger.With(slog.String("tx", id)),
	}
}

func (tx *Tx) ID() string { return tx.id }

// Branch reports the branch selected by Checkout, or "" before any checkout.
func (tx *Tx) Branch() string { return tx.branch }

func (tx *Tx) close() { tx.closed = true }

func (tx *Tx) usable() error {
	if tx.committed || tx.closed {
		return ErrTxClosed
	}
	return nil
}

// Checkout discards staged changes and forces the working tree to the tip of
// branch ref ("" meaning the default branch). In a repository without
// commits there is nothing to check out and Checkout does nothing.
func (tx *Tx) Checkout(ref string) error {
	if err := tx.usable(); err != nil {
		return err
	}
	s := tx.store
	ref = s.refOrDefault(ref)
	branches, err := s.backend.ListBranches()
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}
	if len(branches) == 0 {
		tx.logger.Debug("checkout skipped on empty repository", slog.String("ref", ref))
		return nil
	}
	if !slices.Contains(branches, ref) {
		return &InvalidCheckoutTargetError{Ref: ref}
	}
	if err := s.backend.ResetIndex(); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	if err := s.backend.CheckoutBranch(ref); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return &InvalidCheckoutTargetError{Ref: ref}
		}
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	tx.branch = ref
	tx.addPaths = nil
	tx.removePaths = nil
	tx.logger.Debug("checked out", slog.String("branch", ref))
	return nil
}

// Mkdir creates the folder p with a placeholder marker so it survives as
// long as it has no other content.
func (tx *Tx) Mkdir(p string) error {
	if err := tx.usable(); err != nil {
		return err
	}
	r, err := resolveFile(tx.store.path, p)
	if err != nil {
		return err
	}
	if err := confine(tx.store.path, r, true); err != nil {
		return err
	}
	if err := os.MkdirAll(r.Abs, 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", r.Rel, err)
	}
	marker := filepath.Join(r.Abs, backend.PlaceholderName)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return fmt.Errorf("create folder %s: %w", r.Rel, err)
	}
	tx.addPaths = append(tx.addPaths, path.Join(r.Rel, backend.PlaceholderName))
	tx.logger.Debug("mkdir", slog.String("path", r.Rel))
	return nil
}

func (tx *Tx) Write(p string, data []byte) error {
	if err := tx.usable(); err != nil {
		return err
	}
	r, err := resolveFile(tx.store.path, p)
	if err != nil {
		return err
	}
	if err := confine(tx.store.path, r, true); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.Abs), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", r.Rel, err)
	}
	if err := os.WriteFile(r.Abs, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", r.Rel, err)
	}
	tx.addPaths = append(tx.addPaths, r.Rel)
	tx.logger.Debug("write", slog.String("path", r.Rel), slog.Int("size", len(data)))
	return nil
}

// Rm deletes p, recursively when it is a folder.
func (tx *Tx) Rm(p string) error {
	if err := tx.usable(); err != nil {
		return err
	}
	r, err := resolveFile(tx.store.path, p)
	if err != nil {
		return err
	}
	if err := confine(tx.store.path, r, false); err != nil {
		return err
	}
	if err := os.RemoveAll(r.Abs); err != nil {
		return fmt.Errorf("remove %s: %w", r.Rel, err)
	}
	tx.removePaths = append(tx.removePaths, r.Rel)
	tx.logger.Debug("rm", slog.String("path", r.Rel))
	return nil
}

func (tx *Tx) Mv(src string, dst string) error {
	if err := tx.usable(); err != nil {
		return err
	}
	from, err := resolveFile(tx.store.path, src)
	if err != nil {
		return err
	}
	to, err := resolveFile(tx.store.path, dst)
	if err != nil {
		return err
	}
	if from.Abs == to.Abs {
		return &InvalidArgumentError{Msg: fmt.Sprintf("source and destination are the same: %q", from.Rel)}
	}
	if err := confine(tx.store.path, from, false); err != nil {
		return err
	}
	if err := confine(tx.store.path, to, false); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to.Abs), 0o755); err != nil {
		return fmt.Errorf("move %s: %w", from.Rel, err)
	}
	if err := os.Rename(from.Abs, to.Abs); err != nil {
		return fmt.Errorf("move %s: %w", from.Rel, err)
	}
	tx.addPaths = append(tx.addPaths, to.Rel)
	tx.removePaths = append(tx.removePaths, from.Rel)
	tx.logger.Debug("mv", slog.String("src", from.Rel), slog.String("dst", to.Rel))
	return nil
}

// Commit stages every removal, then every addition still present on disk,
// and commits them on the checked out branch. It returns the new commit id.
// A zero author time means now.
func (tx *Tx) Commit(message string, author backend.Signature) (string, error) {
	if err := tx.usable(); err != nil {
		return "", err
	}
	tx.committed = true
	b := tx.store.backend

	for _, p := range tx.removePaths {
		if err := b.StageRemove(p); err != nil {
			return "", fmt.Errorf("stage removal of %s: %w", p, err)
		}
	}
	adds, err := tx.pendingAdds()
	if err != nil {
		return "", err
	}
	if err := b.StageAdd(adds...); err != nil {
		return "", fmt.Errorf("stage additions: %w", err)
	}
	if author.When.IsZero() {
		author.When = time.Now()
	}
	id, err := b.CreateCommit(message, author)
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}
	tx.logger.Info("commit created",
		slog.String("commit", id),
		slog.String("branch", tx.branch),
		slog.Int("added", len(adds)),
		slog.Int("removed", len(tx.removePaths)),
	)
	return id, nil
}

// pendingAdds drops duplicates and paths a later Rm or Mv removed from disk.
func (tx *Tx) pendingAdds() ([]string, error) {
	seen := make(map[string]struct{}, len(tx.addPaths))
	adds := make([]string, 0, len(tx.addPaths))
	for _, p := range tx.addPaths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		_, err := os.Lstat(filepath.Join(tx.store.path, filepath.FromSlash(p)))
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		adds = append(adds, p)
	}
	return adds, nil
}
