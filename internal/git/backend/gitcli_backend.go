package backend

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const gitLogFormat = "%H%n%P%n%an%n%ae%n%aI%n%B"

func (g *gitCLI) Exists() (bool, error) {
	info, err := os.Stat(filepath.Join(g.path, ".git"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (g *gitCLI) Init(defaultBranch string) error {
	defaultBranch = strings.TrimSpace(defaultBranch)
	if defaultBranch == "" {
		return fmt.Errorf("default branch not specified")
	}
	if err := os.MkdirAll(g.path, 0o755); err != nil {
		return fmt.Errorf("create repository directory: %w", err)
	}
	_, err := g.runGitCommand([]string{"init", "--quiet", "--initial-branch=" + defaultBranch}, false, "git init")
	return err
}

func (g *gitCLI) ResolveRef(ref string) (string, error) {
	return g.resolveCommit(ref)
}

func (g *gitCLI) resolveCommit(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("ref not specified")
	}
	hash, err := g.verify(ref + "^{commit}")
	if err != nil {
		return "", err
	}
	if hash == "" {
		return "", fmt.Errorf("resolve %s: %w", ref, ErrNotFound)
	}
	return hash, nil
}

func (g *gitCLI) ListBlobPaths(commitID string) ([]string, error) {
	hash, err := g.resolveCommit(commitID)
	if err != nil {
		return nil, err
	}
	out, err := g.runGitCommand([]string{"ls-tree", "-r", "-z", "--name-only", hash}, false, "git ls-tree")
	if err != nil {
		return nil, err
	}
	var paths []string
	for p := range strings.SplitSeq(out, "\x00") {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (g *gitCLI) ReadBlob(commitID string, path string) ([]byte, error) {
	hash, err := g.resolveCommit(commitID)
	if err != nil {
		return nil, err
	}
	object, err := g.verify(hash + ":" + path)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return nil, fmt.Errorf("%s at %s: %w", path, commitID, ErrNotFound)
	}
	kind, err := g.runGitCommand([]string{"cat-file", "-t", object}, false, "git cat-file")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(kind) != "blob" {
		return nil, fmt.Errorf("%s at %s: %w", path, commitID, ErrNotFound)
	}
	out, err := g.runGitCommand([]string{"cat-file", "blob", object}, false, "git cat-file")
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (g *gitCLI) StageAdd(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := g.runGitCommand(args, false, "git add")
	return err
}

func (g *gitCLI) StageRemove(path string) error {
	_, err := g.runGitCommand([]string{"rm", "-r", "-q", "--cached", "--ignore-unmatch", "--", path}, false, "git rm")
	return err
}

func (g *gitCLI) CreateCommit(message string, author Signature) (string, error) {
	when := author.When
	if when.IsZero() {
		when = time.Now()
	}
	date := fmt.Sprintf("%d %s", when.Unix(), when.Format("-0700"))
	env := []string{
		"GIT_AUTHOR_NAME=" + author.Name,
		"GIT_AUTHOR_EMAIL=" + author.Email,
		"GIT_AUTHOR_DATE=" + date,
		"GIT_COMMITTER_NAME=" + author.Name,
		"GIT_COMMITTER_EMAIL=" + author.Email,
		"GIT_COMMITTER_DATE=" + date,
	}
	args := []string{"commit", "--quiet", "--allow-empty", "--allow-empty-message", "--no-verify", "--no-gpg-sign", "-m", message}
	if _, err := g.runGitCommandEnv(env, args, false, "git commit"); err != nil {
		return "", err
	}
	return g.resolveCommit("HEAD")
}

func (g *gitCLI) ListBranches() ([]string, error) {
	out, err := g.runGitCommand([]string{"for-each-ref", "--format=%(refname:short)", "refs/heads"}, false, "git for-each-ref")
	if err != nil {
		return nil, err
	}
	var names []string
	for line := range strings.SplitSeq(out, "\n") {
		name := strings.TrimSpace(line)
		if name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (g *gitCLI) branchExists(name string) (bool, error) {
	hash, err := g.verify("refs/heads/" + name)
	if err != nil {
		return false, err
	}
	return hash != "", nil
}

func (g *gitCLI) CreateBranch(name string, from string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("branch not specified")
	}
	exists, err := g.branchExists(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("branch %s: %w", name, ErrAlreadyExists)
	}
	if strings.TrimSpace(from) == "" {
		from = "HEAD"
	}
	hash, err := g.resolveCommit(from)
	if err != nil {
		return err
	}
	_, err = g.runGitCommand([]string{"update-ref", "refs/heads/" + name, hash, ""}, false, "git update-ref")
	return err
}

func (g *gitCLI) RenameBranch(from string, to string) error {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return fmt.Errorf("branch not specified")
	}
	exists, err := g.branchExists(from)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("branch %s: %w", from, ErrNotFound)
	}
	if exists, err = g.branchExists(to); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("branch %s: %w", to, ErrAlreadyExists)
	}
	_, err = g.runGitCommand([]string{"branch", "-m", from, to}, false, "git branch")
	return err
}

func (g *gitCLI) DeleteBranch(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("branch not specified")
	}
	exists, err := g.branchExists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("branch %s: %w", name, ErrNotFound)
	}
	_, err = g.runGitCommand([]string{"update-ref", "-d", "refs/heads/" + name}, false, "git update-ref")
	return err
}

func (g *gitCLI) ResetIndex() error {
	head, err := g.verify("HEAD")
	if err != nil {
		return err
	}
	if head == "" {
		return nil
	}
	_, err = g.runGitCommand([]string{"reset", "--quiet", "--mixed", "HEAD"}, false, "git reset")
	return err
}

func (g *gitCLI) CheckoutBranch(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("branch not specified")
	}
	exists, err := g.branchExists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("checkout %s: %w", name, ErrNotFound)
	}
	_, err = g.runGitCommand([]string{"checkout", "--quiet", "--force", name, "--"}, false, "git checkout")
	return err
}

func (g *gitCLI) CommitLog(ref string, opts LogOptions) ([]Commit, error) {
	hash, err := g.resolveCommit(ref)
	if err != nil {
		return nil, err
	}
	args := []string{"log", "-z", "--format=" + gitLogFormat}
	if opts.Path != "" && opts.FollowRenames {
		args = append(args, "--follow")
	}
	args = append(args, hash)
	if opts.Path != "" {
		args = append(args, "--", opts.Path)
	}
	out, err := g.runGitCommand(args, false, "git log")
	if err != nil {
		return nil, err
	}
	return parseGitLog([]byte(out))
}

func parseGitLog(out []byte) ([]Commit, error) {
	var commits []Commit
	for rec := range bytes.SplitSeq(out, []byte{0}) {
		if len(bytes.TrimSpace(rec)) == 0 {
			continue
		}
		commit, err := parseGitLogRecord(rec)
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// parseGitLogRecord parses one record produced by gitLogFormat: hash,
// parents, author name, author email, author date (strict ISO 8601), then
// the raw message body.
func parseGitLogRecord(rec []byte) (Commit, error) {
	rec = bytes.TrimLeft(rec, "\n")
	parts := bytes.SplitN(rec, []byte("\n"), 6)
	if len(parts) < 5 {
		return Commit{}, fmt.Errorf("unexpected git log record: %q", rec)
	}
	when, err := time.Parse(time.RFC3339, string(parts[4]))
	if err != nil {
		return Commit{}, fmt.Errorf("parse author date: %w", err)
	}
	commit := Commit{
		ID:      string(parts[0]),
		Parents: strings.Fields(string(parts[1])),
		Author: Signature{
			Name:  string(parts[2]),
			Email: string(parts[3]),
			When:  when,
		},
	}
	if len(parts) == 6 {
		commit.Message = string(parts[5])
	}
	return commit, nil
}
