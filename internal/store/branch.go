package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thiagokokada/tmplstore/internal/git/backend"
)

type BranchOptions struct {
	Name string
	// From is the ref the new branch points at. Empty means the current HEAD.
	From string
}

// Branch mutations go through the same queue as Run so they never move a
// branch under an open transaction.

func (s *Store) CreateBranch(ctx context.Context, opts BranchOptions) error {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return &InvalidArgumentError{Msg: "branch name not specified"}
	}
	if err := s.Init(ctx); err != nil {
		return err
	}
	return s.enqueue(ctx, func() error {
		if err := s.backend.CreateBranch(name, opts.From); err != nil {
			return branchError("create", name, err)
		}
		s.logger.Info("branch created", slog.String("branch", name), slog.String("from", opts.From))
		return nil
	})
}

func (s *Store) RenameBranch(ctx context.Context, from string, to string) error {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return &InvalidArgumentError{Msg: "branch name not specified"}
	}
	if s.protectDefault && from == s.defaultBranch {
		return fmt.Errorf("rename branch %s: %w", from, ErrProtectedBranch)
	}
	if err := s.Init(ctx); err != nil {
		return err
	}
	return s.enqueue(ctx, func() error {
		if err := s.backend.RenameBranch(from, to); err != nil {
			return branchError("rename", from, err)
		}
		s.logger.Info("branch renamed", slog.String("from", from), slog.String("to", to))
		return nil
	})
}

func (s *Store) DeleteBranch(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &InvalidArgumentError{Msg: "branch name not specified"}
	}
	if s.protectDefault && name == s.defaultBranch {
		return fmt.Errorf("delete branch %s: %w", name, ErrProtectedBranch)
	}
	if err := s.Init(ctx); err != nil {
		return err
	}
	return s.enqueue(ctx, func() error {
		if err := s.backend.DeleteBranch(name); err != nil {
			return branchError("delete", name, err)
		}
		s.logger.Info("branch deleted", slog.String("branch", name))
		return nil
	})
}

func branchError(verb string, name string, err error) error {
	if errors.Is(err, backend.ErrNotFound) {
		return fmt.Errorf("%s branch %s: %w", verb, name, &NotFoundError{What: fmt.Sprintf("branch or ref %q", name)})
	}
	return fmt.Errorf("%s branch %s: %w", verb, name, err)
}
