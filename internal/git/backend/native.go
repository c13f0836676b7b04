package backend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type native struct {
	// mu serializes access to the repository handle; index writes and
	// reference updates go through the same storer.
	mu   sync.Mutex
	path string
	repo *gitlib.Repository
}

// OpenNative returns a Backend for repoPath implemented on top of go-git. The
// repository does not need to exist yet; call Init to create it.
func OpenNative(repoPath string) (Backend, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	return &native{path: abs}, nil
}

func (n *native) RepoPath() string {
	if n == nil {
		return ""
	}
	return n.path
}

func (n *native) openLocked() (*gitlib.Repository, error) {
	if n.repo != nil {
		return n.repo, nil
	}
	if n.path == "" {
		return nil, fmt.Errorf("repository root not set")
	}
	repo, err := gitlib.PlainOpen(n.path)
	if err != nil {
		if errors.Is(err, gitlib.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("open repository %s: %w", n.path, ErrRepositoryNotExists)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	n.repo = repo
	return repo, nil
}

func (n *native) Exists() (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, err := n.openLocked()
	if errors.Is(err, ErrRepositoryNotExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (n *native) Init(defaultBranch string) error {
	defaultBranch = strings.TrimSpace(defaultBranch)
	if defaultBranch == "" {
		return fmt.Errorf("default branch not specified")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := os.MkdirAll(n.path, 0o755); err != nil {
		return fmt.Errorf("create repository directory: %w", err)
	}
	repo, err := gitlib.PlainInitWithOptions(n.path, &gitlib.PlainInitOptions{
		InitOptions: gitlib.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(defaultBranch),
		},
	})
	if errors.Is(err, gitlib.ErrRepositoryAlreadyExists) {
		_, err = n.openLocked()
		return err
	}
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	slog.Debug("repository initialized",
		slog.String("path", n.path),
		slog.String("default_branch", defaultBranch),
	)
	n.repo = repo
	return nil
}

func (n *native) ResolveRef(ref string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return "", err
	}
	hash, err := resolveRevision(repo, ref)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func resolveRevision(repo *gitlib.Repository, ref string) (plumbing.Hash, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return plumbing.ZeroHash, fmt.Errorf("ref not specified")
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, plumbing.ErrObjectNotFound) {
			return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", ref, ErrNotFound)
		}
		return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", ref, err)
	}
	return *hash, nil
}

func commitTree(repo *gitlib.Repository, commitID string) (*object.Tree, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(commitID))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("commit %s: %w", commitID, ErrNotFound)
		}
		return nil, fmt.Errorf("read commit %s: %w", commitID, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read tree of %s: %w", commitID, err)
	}
	return tree, nil
}

func (n *native) ListBlobPaths(commitID string) ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return nil, err
	}
	tree, err := commitTree(repo, commitID)
	if err != nil {
		return nil, err
	}
	var paths []string
	err = tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree of %s: %w", commitID, err)
	}
	return paths, nil
}

func (n *native) ReadBlob(commitID string, path string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return nil, err
	}
	tree, err := commitTree(repo, commitID)
	if err != nil {
		return nil, err
	}
	file, err := tree.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("%s at %s: %w", path, commitID, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	r, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (n *native) StageAdd(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := wt.AddWithOptions(&gitlib.AddOptions{Path: p, SkipStatus: true}); err != nil {
			return fmt.Errorf("stage %s: %w", p, err)
		}
	}
	return nil
}

// StageRemove drops path, or every entry below it when path is a directory,
// from the index. Paths that are not tracked are ignored.
func (n *native) StageRemove(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return err
	}
	idx, err := repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	prefix := strings.TrimSuffix(path, "/") + "/"
	kept := idx.Entries[:0]
	for _, e := range idx.Entries {
		if e.Name == path || strings.HasPrefix(e.Name, prefix) {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == len(idx.Entries) {
		return nil
	}
	idx.Entries = kept
	// The cached tree extension no longer matches the entries.
	idx.Cache = nil
	if err := repo.Storer.SetIndex(idx); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func (n *native) CreateCommit(message string, author Signature) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	hash, err := wt.Commit(message, &gitlib.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  author.When,
		},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return hash.String(), nil
}

func (n *native) ListBranches() ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return nil, err
	}
	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Close()
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func (n *native) CreateBranch(name string, from string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("branch not specified")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return err
	}
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := repo.Reference(refName, false); err == nil {
		return fmt.Errorf("branch %s: %w", name, ErrAlreadyExists)
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return fmt.Errorf("read branch %s: %w", name, err)
	}
	var hash plumbing.Hash
	if strings.TrimSpace(from) == "" {
		head, err := repo.Head()
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return fmt.Errorf("resolve HEAD: %w", ErrNotFound)
			}
			return fmt.Errorf("resolve HEAD: %w", err)
		}
		hash = head.Hash()
	} else {
		hash, err = resolveRevision(repo, from)
		if err != nil {
			return err
		}
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, hash)); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

func (n *native) RenameBranch(from string, to string) error {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return fmt.Errorf("branch not specified")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return err
	}
	oldName := plumbing.NewBranchReferenceName(from)
	newName := plumbing.NewBranchReferenceName(to)
	ref, err := repo.Reference(oldName, false)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("branch %s: %w", from, ErrNotFound)
		}
		return fmt.Errorf("read branch %s: %w", from, err)
	}
	if _, err := repo.Reference(newName, false); err == nil {
		return fmt.Errorf("branch %s: %w", to, ErrAlreadyExists)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(newName, ref.Hash())); err != nil {
		return fmt.Errorf("rename branch %s: %w", from, err)
	}
	if err := repo.Storer.RemoveReference(oldName); err != nil {
		return fmt.Errorf("rename branch %s: %w", from, err)
	}
	head, err := repo.Storer.Reference(plumbing.HEAD)
	if err == nil && head.Type() == plumbing.SymbolicReference && head.Target() == oldName {
		if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, newName)); err != nil {
			return fmt.Errorf("move HEAD to %s: %w", to, err)
		}
	}
	return nil
}

func (n *native) DeleteBranch(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("branch not specified")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return err
	}
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := repo.Reference(refName, false); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("branch %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("read branch %s: %w", name, err)
	}
	if err := repo.Storer.RemoveReference(refName); err != nil {
		return fmt.Errorf("delete branch %s: %w", name, err)
	}
	return nil
}

func (n *native) ResetIndex() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return err
	}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil
		}
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Reset(&gitlib.ResetOptions{Commit: head.Hash(), Mode: gitlib.MixedReset}); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	return nil
}

func (n *native) CheckoutBranch(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("branch not specified")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.Checkout(&gitlib.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Force:  true,
	})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("checkout %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("checkout %s: %w", name, err)
	}
	return nil
}

func (n *native) CommitLog(ref string, opts LogOptions) ([]Commit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	repo, err := n.openLocked()
	if err != nil {
		return nil, err
	}
	from, err := resolveRevision(repo, ref)
	if err != nil {
		return nil, err
	}
	iter, err := repo.Log(&gitlib.LogOptions{From: from, Order: gitlib.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("read commits: %w", err)
	}
	defer iter.Close()
	if opts.Path == "" {
		var commits []Commit
		err = iter.ForEach(func(c *object.Commit) error {
			commits = append(commits, newCommit(c))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("iterate commits: %w", err)
		}
		return commits, nil
	}
	return pathLog(iter, opts.Path, opts.FollowRenames)
}

func newCommit(c *object.Commit) Commit {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return Commit{
		ID:      c.Hash.String(),
		Message: c.Message,
		Author: Signature{
			Name:  c.Author.Name,
			Email: c.Author.Email,
			When:  c.Author.When,
		},
		Parents: parents,
	}
}
