package store

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Resolved is a caller supplied path after sandboxing. Rel always uses "/"
// separators, matching the paths stored in the backend.
type Resolved struct {
	Abs string
	Rel string
}

// Resolve joins candidate onto base and fails with *PathEscapeError when the
// result is not inside base. It performs no I/O.
func Resolve(base string, candidate string) (Resolved, error) {
	abs := filepath.Join(base, candidate)
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return Resolved{}, &PathEscapeError{Path: candidate}
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return Resolved{}, &PathEscapeError{Path: candidate}
	}
	return Resolved{Abs: abs, Rel: rel}, nil
}

// resolveFile is Resolve for operations that need a path below the root,
// not the root itself.
func resolveFile(base string, candidate string) (Resolved, error) {
	r, err := Resolve(base, candidate)
	if err != nil {
		return Resolved{}, err
	}
	if r.Rel == "." {
		return Resolved{}, &InvalidArgumentError{Msg: "path refers to the repository root"}
	}
	if r.Rel == ".git" || strings.HasPrefix(r.Rel, ".git/") {
		return Resolved{}, &PathEscapeError{Path: candidate}
	}
	return r, nil
}

// confine rejects r when a symlink in the working tree would take filesystem
// I/O on it outside base. Symlinks that stay inside base are rejected too:
// the store never creates them. With followLast unset only the parent
// folders are checked, for operations that act on a symlink itself.
func confine(base string, r Resolved, followLast bool) error {
	dir := r.Rel
	if !followLast {
		dir = path.Dir(r.Rel)
	}
	want := filepath.Join(base, filepath.FromSlash(dir))
	got, err := securejoin.SecureJoin(base, filepath.FromSlash(dir))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", r.Rel, err)
	}
	if got != want {
		return &PathEscapeError{Path: r.Rel}
	}
	return nil
}
