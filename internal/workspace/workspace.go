// Package workspace reads and writes the checked-out pull request branch.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/alanmeadows/applybot/internal/patch"
	"github.com/alanmeadows/applybot/internal/store"
)

var (
	// ErrNoParent means the commit's parent is not in the local object
	// store, as happens in shallow clones.
	ErrNoParent = errors.New("parent commit not available")
	// ErrNothingToCommit means the listed paths have no changes.
	ErrNothingToCommit = errors.New("no changes to commit")
)

// Author identifies the committer of applied patches.
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor is used when config leaves the author empty.
var DefaultAuthor = Author{Name: "applybot[bot]", Email: "applybot[bot]@users.noreply.github.com"}

// Repo is a git working copy.
type Repo struct {
	root     string
	git      *git.Repository
	lockPath string
	author   Author
	// LockTimeout bounds how long file writes wait for the workspace lock.
	LockTimeout time.Duration
}

// Open opens the repository containing dir.
func Open(dir string, author Author) (*Repo, error) {
	r, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %s: %w", dir, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	root := wt.Filesystem.Root()

	if author.Name == "" {
		author.Name = DefaultAuthor.Name
	}
	if author.Email == "" {
		author.Email = DefaultAuthor.Email
	}

	lockPath := filepath.Join(root, ".git", "applybot")
	if info, err := os.Stat(filepath.Join(root, ".git")); err != nil || !info.IsDir() {
		lockPath = filepath.Join(os.TempDir(), "applybot-"+patch.HashContent([]byte(root))[:12])
	}

	return &Repo{
		root:        root,
		git:         r,
		lockPath:    lockPath,
		author:      author,
		LockTimeout: store.DefaultLockTimeout,
	}, nil
}

// Root returns the absolute path of the working tree.
func (r *Repo) Root() string {
	return r.root
}

// Head returns the commit hash HEAD points at.
func (r *Repo) Head() (string, error) {
	ref, err := r.git.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// ChangedFiles lists the paths added or modified by rev relative to its
// first parent. A root commit lists every file. Deleted paths are omitted.
func (r *Repo) ChangedFiles(rev string) ([]string, error) {
	commit, err := r.commit(rev)
	if err != nil {
		return nil, err
	}
	if commit.NumParents() == 0 {
		return r.allFiles(commit)
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoParent, rev, err)
	}
	return r.diff(parent, commit)
}

// DiffFiles lists the paths added or modified between base and rev.
func (r *Repo) DiffFiles(base, rev string) ([]string, error) {
	from, err := r.commit(base)
	if err != nil {
		return nil, err
	}
	to, err := r.commit(rev)
	if err != nil {
		return nil, err
	}
	return r.diff(from, to)
}

func (r *Repo) commit(rev string) (*object.Commit, error) {
	hash, err := r.git.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", rev, err)
	}
	commit, err := r.git.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", rev, err)
	}
	return commit, nil
}

func (r *Repo) diff(from, to *object.Commit) ([]string, error) {
	fromTree, err := from.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree of %s: %w", from.Hash, err)
	}
	toTree, err := to.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree of %s: %w", to.Hash, err)
	}
	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s: %w", from.Hash, to.Hash, err)
	}

	seen := make(map[string]bool)
	var paths []string
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		paths = append(paths, name)
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Repo) allFiles(commit *object.Commit) ([]string, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree of %s: %w", commit.Hash, err)
	}
	var paths []string
	err = tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", commit.Hash, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// abs maps a repository-relative path into the working tree, refusing
// paths that would escape it.
func (r *Repo) abs(path string) (string, error) {
	clean := filepath.FromSlash(strings.TrimPrefix(path, "/"))
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("path %q is outside the repository", path)
	}
	return filepath.Join(r.root, clean), nil
}

// ReadFile reads a file of the working tree.
func (r *Repo) ReadFile(path string) ([]byte, error) {
	p, err := r.abs(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// WriteFile replaces a file of the working tree atomically, keeping its mode.
func (r *Repo) WriteFile(ctx context.Context, path string, data []byte) error {
	p, err := r.abs(path)
	if err != nil {
		return err
	}
	perm := os.FileMode(0644)
	if info, err := os.Stat(p); err == nil {
		perm = info.Mode().Perm()
	}
	return store.WithLock(ctx, r.lockPath, r.LockTimeout, func() error {
		return store.AtomicWriteFile(p, data, perm)
	})
}

// ApplyPatch applies patchText to path in place. The file is only written
// when the result is StatusApplied.
func (r *Repo) ApplyPatch(ctx context.Context, path, patchText string, applier *patch.Applier) (patch.Result, error) {
	content, err := r.ReadFile(path)
	if err != nil {
		return patch.Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	res, err := applier.ApplyText(string(content), patchText)
	if err != nil {
		return res, fmt.Errorf("parsing patch for %s: %w", path, err)
	}
	if res.Status != patch.StatusApplied {
		return res, nil
	}
	if err := r.WriteFile(ctx, path, []byte(res.Content)); err != nil {
		return res, fmt.Errorf("writing %s: %w", path, err)
	}
	slog.Debug("patch written", "file", path, "offsets", res.Offsets)
	return res, nil
}

// Commit stages paths and commits them, returning the new commit hash.
func (r *Repo) Commit(message string, paths ...string) (string, error) {
	wt, err := r.git.Worktree()
	if err != nil {
		return "", fmt.Errorf("opening worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("git status: %w", err)
	}

	staged := 0
	for _, p := range paths {
		p = filepath.ToSlash(p)
		fs, ok := status[p]
		if !ok || (fs.Worktree == git.Unmodified && fs.Staging == git.Unmodified) {
			continue
		}
		if _, err := wt.Add(p); err != nil {
			return "", fmt.Errorf("git add %s: %w", p, err)
		}
		staged++
	}
	if staged == 0 {
		return "", ErrNothingToCommit
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.author.Name,
			Email: r.author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return hash.String(), nil
}

// Push pushes HEAD to branch on origin. The git CLI is used so the
// credentials configured by the CI checkout step apply.
func (r *Repo) Push(ctx context.Context, branch string) error {
	shortBranch := strings.TrimPrefix(branch, "refs/heads/")
	refspec := fmt.Sprintf("HEAD:refs/heads/%s", shortBranch)
	cmd := exec.CommandContext(ctx, "git", "push", "origin", refspec)
	cmd.Dir = r.root
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git push: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// CommitAndPush commits paths and pushes the commit to branch.
func (r *Repo) CommitAndPush(ctx context.Context, branch, message string, paths ...string) (string, error) {
	hash, err := r.Commit(message, paths...)
	if err != nil {
		return "", err
	}
	if err := r.Push(ctx, branch); err != nil {
		return hash, err
	}
	slog.Info("pushed commit", "commit", hash[:8], "branch", branch)
	return hash, nil
}
