package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/thiagokokada/tmplstore/internal/git/backend"
)

type LogOptions struct {
	Ref  string
	Path string
}

type FindOptions struct {
	Ref              string
	RejectIfNotFound bool
}

// IsEmpty reports whether no commit is reachable from ref. Only a not found
// error from the backend counts as empty.
func (s *Store) IsEmpty(ctx context.Context, ref string) (bool, error) {
	if err := s.Init(ctx); err != nil {
		return false, err
	}
	_, ok, err := s.resolve(ref)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Branches lists branch names. A repository without commits reports only the
// default branch, which the first commit will create.
func (s *Store) Branches(ctx context.Context) ([]string, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	names, err := s.backend.ListBranches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	if len(names) == 0 {
		return []string{s.defaultBranch}, nil
	}
	return names, nil
}

// Files returns the flattened tree at ref.
func (s *Store) Files(ctx context.Context, ref string) ([]Entry, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	commitID, ok, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Entry{}, nil
	}
	if s.trees != nil {
		if entries, hit := s.trees.Get(commitID); hit {
			return cloneEntries(entries), nil
		}
	}
	entries, err := BuildTree(s.backend, commitID)
	if err != nil {
		return nil, err
	}
	if s.trees != nil {
		s.trees.Add(commitID, entries)
	}
	return cloneEntries(entries), nil
}

func (s *Store) GetFile(ctx context.Context, ref string, name string) ([]byte, error) {
	r, err := resolveFile(s.path, name)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	ref = s.refOrDefault(ref)
	commitID, ok, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{What: fmt.Sprintf("ref %q", ref)}
	}
	key := blobKey{commitID: commitID, path: r.Rel}
	if s.blobs != nil {
		if data, hit := s.blobs.Get(key); hit {
			return slices.Clone(data), nil
		}
	}
	data, err := s.backend.ReadBlob(commitID, r.Rel)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, &NotFoundError{What: fmt.Sprintf("%q at %s", r.Rel, ref)}
		}
		return nil, fmt.Errorf("read %s: %w", r.Rel, err)
	}
	if s.blobs != nil {
		s.blobs.Add(key, data)
	}
	return slices.Clone(data), nil
}

// Log returns the history of ref, newest first. With a path only commits
// that changed it are returned, following renames.
func (s *Store) Log(ctx context.Context, opts LogOptions) ([]backend.Commit, error) {
	var rel string
	if opts.Path != "" {
		r, err := resolveFile(s.path, opts.Path)
		if err != nil {
			return nil, err
		}
		rel = r.Rel
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	commitID, ok, err := s.resolve(opts.Ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []backend.Commit{}, nil
	}
	commits, err := s.backend.CommitLog(commitID, backend.LogOptions{
		Path:          rel,
		FollowRenames: rel != "",
	})
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", s.refOrDefault(opts.Ref), err)
	}
	if commits == nil {
		commits = []backend.Commit{}
	}
	return commits, nil
}

// FindFile looks for nameOrPath at ref, first as an exact path, then as a
// base name, then as a base name without extension. The first blob in
// listing order wins within each pass. When nothing matches FindFile returns
// "" unless opts.RejectIfNotFound is set.
func (s *Store) FindFile(ctx context.Context, nameOrPath string, opts FindOptions) (string, error) {
	r, err := resolveFile(s.path, nameOrPath)
	if err != nil {
		return "", err
	}
	if err := s.Init(ctx); err != nil {
		return "", err
	}
	notFound := func() (string, error) {
		if opts.RejectIfNotFound {
			return "", &NotFoundError{What: fmt.Sprintf("%q", nameOrPath)}
		}
		return "", nil
	}
	commitID, ok, err := s.resolve(opts.Ref)
	if err != nil {
		return "", err
	}
	if !ok {
		return notFound()
	}
	paths, err := s.backend.ListBlobPaths(commitID)
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	paths = slices.DeleteFunc(paths, func(p string) bool {
		return path.Base(p) == backend.PlaceholderName
	})
	if found, ok := matchFile(paths, r.Rel); ok {
		return found, nil
	}
	return notFound()
}

func matchFile(paths []string, query string) (string, bool) {
	base := path.Base(query)
	passes := []func(p string) bool{
		func(p string) bool { return p == query },
		func(p string) bool { return path.Base(p) == base },
		func(p string) bool { return stem(path.Base(p)) == stem(base) },
	}
	for _, match := range passes {
		if i := slices.IndexFunc(paths, match); i >= 0 {
			return paths[i], true
		}
	}
	return "", false
}

func stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}
