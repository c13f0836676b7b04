package backend

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// pathLog keeps the commits of iter that changed path compared to their first
// parent. With follow set, an exact rename (same blob under a path the child no
// longer has) switches tracking to the old name for older commits.
func pathLog(iter object.CommitIter, path string, follow bool) ([]Commit, error) {
	current := path
	var commits []Commit
	err := iter.ForEach(func(c *object.Commit) error {
		tree, err := c.Tree()
		if err != nil {
			return fmt.Errorf("read tree of %s: %w", c.Hash, err)
		}
		var parentTree *object.Tree
		if c.NumParents() > 0 {
			parent, err := c.Parent(0)
			if err != nil {
				return fmt.Errorf("read parent of %s: %w", c.Hash, err)
			}
			parentTree, err = parent.Tree()
			if err != nil {
				return fmt.Errorf("read tree of %s: %w", parent.Hash, err)
			}
		}
		hash, found := entryHash(tree, current)
		parentHash, parentFound := entryHash(parentTree, current)
		if !found && !parentFound {
			return nil
		}
		if found && parentFound && hash == parentHash {
			return nil
		}
		commits = append(commits, newCommit(c))
		if !follow || !found || parentFound || parentTree == nil {
			return nil
		}
		from, ok, err := renameSource(tree, parentTree, hash)
		if err != nil {
			return err
		}
		if ok {
			slog.Debug("log follows rename",
				slog.String("commit", c.Hash.String()),
				slog.String("from", from),
				slog.String("to", current),
			)
			current = from
		}
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	return commits, nil
}

func entryHash(tree *object.Tree, path string) (plumbing.Hash, bool) {
	if tree == nil {
		return plumbing.ZeroHash, false
	}
	entry, err := tree.FindEntry(path)
	if err != nil {
		return plumbing.ZeroHash, false
	}
	return entry.Hash, true
}

// renameSource finds a blob in parent with the given hash whose path no
// longer exists in tree.
func renameSource(tree, parent *object.Tree, hash plumbing.Hash) (string, bool, error) {
	var from string
	err := parent.Files().ForEach(func(f *object.File) error {
		if f.Hash != hash {
			return nil
		}
		if _, ok := entryHash(tree, f.Name); ok {
			return nil
		}
		from = f.Name
		return storer.ErrStop
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return "", false, fmt.Errorf("walk parent tree: %w", err)
	}
	return from, from != "", nil
}
