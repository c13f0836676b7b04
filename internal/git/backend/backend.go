package backend

// Backend abstracts the version-control primitives the template store is
// built on. A Backend is bound to a single repository directory.
//
// Two implementations ship with the package: OpenNative (pure Go, go-git) and
// OpenCLI (shells out to the git executable). Callers only depend on this
// interface so tests can swap in an in-memory double.
type Backend interface {
	RepoPath() string

	Exists() (bool, error)
	Init(defaultBranch string) error

	// ResolveRef returns the commit id a branch name (or commit id) points
	// to. A ref with no history reports ErrNotFound.
	ResolveRef(ref string) (string, error)
	ListBlobPaths(commitID string) ([]string, error)
	ReadBlob(commitID string, path string) ([]byte, error)

	StageAdd(paths ...string) error
	StageRemove(path string) error
	CreateCommit(message string, author Signature) (string, error)

	ListBranches() ([]string, error)
	CreateBranch(name string, from string) error
	RenameBranch(from string, to string) error
	DeleteBranch(name string) error

	ResetIndex() error
	CheckoutBranch(name string) error

	CommitLog(ref string, opts LogOptions) ([]Commit, error)
}

type LogOptions struct {
	// Path restricts the log to commits that touched it.
	Path string
	// FollowRenames keeps tracking Path across exact renames.
	FollowRenames bool
}
