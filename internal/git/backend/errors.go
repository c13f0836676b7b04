package backend

import "errors"

var (
	// ErrNotFound reports a ref, branch, commit or path that does not exist.
	// An unborn branch (no commits yet) also reports ErrNotFound.
	ErrNotFound = errors.New("not found")

	ErrAlreadyExists       = errors.New("already exists")
	ErrRepositoryNotExists = errors.New("repository does not exist")
)
