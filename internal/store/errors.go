package store

import (
	"errors"
	"fmt"
)

var (
	ErrPathEscape            = errors.New("path escapes repository root")
	ErrNotFound              = errors.New("not found")
	ErrInvalidCheckoutTarget = errors.New("invalid checkout target")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrProtectedBranch       = errors.New("default branch is protected")
	ErrTxClosed              = errors.New("transaction already committed")
)

// PathEscapeError reports a caller supplied path that resolves outside the
// repository root.
type PathEscapeError struct {
	Path string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrPathEscape, e.Path)
}

func (e *PathEscapeError) Is(target error) bool { return target == ErrPathEscape }

// NotFoundError reports a ref, branch or blob path that does not exist.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s", e.What, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidCheckoutTargetError reports a checkout of something that is not an
// existing branch.
type InvalidCheckoutTargetError struct {
	Ref string
}

func (e *InvalidCheckoutTargetError) Error() string {
	return fmt.Sprintf("%s: %q is not a branch", ErrInvalidCheckoutTarget, e.Ref)
}

func (e *InvalidCheckoutTargetError) Is(target error) bool { return target == ErrInvalidCheckoutTarget }

type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidArgument, e.Msg)
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }
