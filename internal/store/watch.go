package store

import (
	"context"
	"log/slog"

	"github.com/thiagokokada/tmplstore/internal/watch"
)

// Watch blocks until ctx is done, calling onChange whenever a branch or HEAD
// of the repository changes on disk. Bursts of changes are coalesced.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	if onChange == nil {
		return &InvalidArgumentError{Msg: "change callback not set"}
	}
	if err := s.Init(ctx); err != nil {
		return err
	}
	w, err := watch.New(s.path, s.watchDelay, onChange)
	if err != nil {
		return err
	}
	s.logger.Debug("watching repository", slog.String("path", s.path))
	<-ctx.Done()
	return w.Close()
}
