package store

import (
	"errors"

	"github.com/thiagokokada/tmplstore/internal/git/backend"
)

type fakeBackend struct {
	repoPath string

	existsFunc        func() (bool, error)
	initFunc          func(defaultBranch string) error
	resolveRefFunc    func(ref string) (string, error)
	listBlobPathsFunc func(commitID string) ([]string, error)
	readBlobFunc      func(commitID string, path string) ([]byte, error)
	listBranchesFunc  func() ([]string, error)
	createBranchFunc  func(name string, from string) error
	renameBranchFunc  func(from string, to string) error
	deleteBranchFunc  func(name string) error
	commitLogFunc     func(ref string, opts backend.LogOptions) ([]backend.Commit, error)

	lastLogOptions *backend.LogOptions
}

var _ backend.Backend = (*fakeBackend)(nil)

// newReadyFake returns a fake whose repository already exists.
func newReadyFake() *fakeBackend {
	return &fakeBackend{
		existsFunc: func() (bool, error) { return true, nil },
	}
}

func (f *fakeBackend) RepoPath() string { return f.repoPath }

func (f *fakeBackend) Exists() (bool, error) {
	if f.existsFunc != nil {
		return f.existsFunc()
	}
	return false, errors.New("unexpected Exists call")
}

func (f *fakeBackend) Init(defaultBranch string) error {
	if f.initFunc != nil {
		return f.initFunc(defaultBranch)
	}
	return errors.New("unexpected Init call")
}

func (f *fakeBackend) ResolveRef(ref string) (string, error) {
	if f.resolveRefFunc != nil {
		return f.resolveRefFunc(ref)
	}
	return "", errors.New("unexpected ResolveRef call")
}

func (f *fakeBackend) ListBlobPaths(commitID string) ([]string, error) {
	if f.listBlobPathsFunc != nil {
		return f.listBlobPathsFunc(commitID)
	}
	return nil, errors.New("unexpected ListBlobPaths call")
}

func (f *fakeBackend) ReadBlob(commitID string, path string) ([]byte, error) {
	if f.readBlobFunc != nil {
		return f.readBlobFunc(commitID, path)
	}
	return nil, errors.New("unexpected ReadBlob call")
}

func (f *fakeBackend) StageAdd(paths ...string) error {
	return errors.New("unexpected StageAdd call")
}

func (f *fakeBackend) StageRemove(path string) error {
	return errors.New("unexpected StageRemove call")
}

func (f *fakeBackend) CreateCommit(message string, author backend.Signature) (string, error) {
	return "", errors.New("unexpected CreateCommit call")
}

func (f *fakeBackend) ListBranches() ([]string, error) {
	if f.listBranchesFunc != nil {
		return f.listBranchesFunc()
	}
	return nil, errors.New("unexpected ListBranches call")
}

func (f *fakeBackend) CreateBranch(name string, from string) error {
	if f.createBranchFunc != nil {
		return f.createBranchFunc(name, from)
	}
	return errors.New("unexpected CreateBranch call")
}

func (f *fakeBackend) RenameBranch(from string, to string) error {
	if f.renameBranchFunc != nil {
		return f.renameBranchFunc(from, to)
	}
	return errors.New("unexpected RenameBranch call")
}

func (f *fakeBackend) DeleteBranch(name string) error {
	if f.deleteBranchFunc != nil {
		return f.deleteBranchFunc(name)
	}
	return errors.New("unexpected DeleteBranch call")
}

func (f *fakeBackend) ResetIndex() error {
	return errors.New("unexpected ResetIndex call")
}

func (f *fakeBackend) CheckoutBranch(name string) error {
	return errors.New("unexpected CheckoutBranch call")
}

func (f *fakeBackend) CommitLog(ref string, opts backend.LogOptions) ([]backend.Commit, error) {
	f.lastLogOptions = &opts
	if f.commitLogFunc != nil {
		return f.commitLogFunc(ref, opts)
	}
	return nil, errors.New("unexpected CommitLog call")
}
