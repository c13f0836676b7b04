package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/thiagokokada/tmplstore/internal/git/backend"
)

type DiffOptions struct {
	From string
	To   string
	Path string
}

// Diff renders a unified diff of one document between two refs. A side where
// the ref or the document does not exist is treated as empty; it is an error
// only when neither side has the document.
func (s *Store) Diff(ctx context.Context, opts DiffOptions) (string, error) {
	r, err := resolveFile(s.path, opts.Path)
	if err != nil {
		return "", err
	}
	if err := s.Init(ctx); err != nil {
		return "", err
	}
	from, fromOK, err := s.blobAt(opts.From, r.Rel)
	if err != nil {
		return "", err
	}
	to, toOK, err := s.blobAt(opts.To, r.Rel)
	if err != nil {
		return "", err
	}
	if !fromOK && !toOK {
		return "", &NotFoundError{What: fmt.Sprintf("%q at %s and %s", r.Rel, s.refOrDefault(opts.From), s.refOrDefault(opts.To))}
	}
	if isBinary(from) || isBinary(to) {
		if bytes.Equal(from, to) {
			return "", nil
		}
		return fmt.Sprintf("Binary files a/%s and b/%s differ\n", r.Rel, r.Rel), nil
	}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(from)),
		B:        difflib.SplitLines(string(to)),
		FromFile: fmt.Sprintf("a/%s", r.Rel),
		ToFile:   fmt.Sprintf("b/%s", r.Rel),
		Context:  3,
	}
	if !fromOK {
		ud.A = []string{}
		ud.FromFile = "/dev/null"
	}
	if !toOK {
		ud.B = []string{}
		ud.ToFile = "/dev/null"
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", r.Rel, err)
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text, nil
}

func (s *Store) blobAt(ref string, rel string) ([]byte, bool, error) {
	commitID, ok, err := s.resolve(ref)
	if err != nil || !ok {
		return nil, false, err
	}
	data, err := s.backend.ReadBlob(commitID, rel)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", rel, err)
	}
	return data, true, nil
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}
