// Package gitrepo is the git adapter: authenticated cloning, commit
// checkout, and change listing between commits. Clone directories are
// scoped: acquisition hands back a release function that always removes the
// directory, on every exit path.
package gitrepo

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
)

// Adapter performs git operations for the orchestrators.
type Adapter struct {
	// Token, when set, is injected into https clone URLs using the
	// x-access-token form GitHub app installations use.
	Token string
}

// New creates an adapter with an optional access token.
func New(token string) *Adapter {
	return &Adapter{Token: token}
}

// Clone clones a repository into a fresh temp directory and returns the
// opened repository, the directory, and a release function. The release
// function removes the directory; cleanup errors are logged, never
// propagated.
func (a *Adapter) Clone(ctx context.Context, cloneURL string, shallow bool) (*git.Repository, string, func(), error) {
	timer := logging.StartTimer(logging.CategoryGit, "Clone")
	defer timer.Stop()

	dir, err := os.MkdirTemp("", "reviewd-clone-*")
	if err != nil {
		return nil, "", nil, fmt.Errorf("create clone dir: %w", err)
	}
	release := func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logging.Get(logging.CategoryGit).Warn("failed to remove clone dir %s: %v", dir, rmErr)
		}
	}

	opts := &git.CloneOptions{URL: a.authURL(cloneURL)}
	if shallow {
		opts.Depth = 1
	}

	logging.Git("cloning %s (shallow=%v)", cloneURL, shallow)
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		release()
		return nil, "", nil, fmt.Errorf("clone %s: %w", cloneURL, err)
	}
	return repo, dir, release, nil
}

// Checkout moves the worktree to a specific commit.
func (a *Adapter) Checkout(repo *git.Repository, commitSHA string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(commitSHA)}); err != nil {
		return fmt.Errorf("checkout %s: %w", commitSHA, err)
	}
	logging.GitDebug("checked out %s", commitSHA)
	return nil
}

// HeadCommit resolves the current HEAD commit SHA.
func (a *Adapter) HeadCommit(repo *git.Repository) (string, error) {
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// ParentCommit resolves the first parent of a commit (HEAD~1 semantics).
// Shallow clones and root commits return an error; callers fall back to a
// full index.
func (a *Adapter) ParentCommit(repo *git.Repository, commitSHA string) (string, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(commitSHA))
	if err != nil {
		return "", fmt.Errorf("load commit %s: %w", commitSHA, err)
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return "", fmt.Errorf("parent of %s: %w", commitSHA, err)
	}
	return parent.Hash.String(), nil
}

// authURL rewrites an https clone URL to carry the access token.
func (a *Adapter) authURL(cloneURL string) string {
	if a.Token == "" {
		return cloneURL
	}
	u, err := url.Parse(cloneURL)
	if err != nil || u.Scheme != "https" {
		return cloneURL
	}
	u.User = url.UserPassword("x-access-token", a.Token)
	return u.String()
}

// commitTree loads the tree of a commit.
func commitTree(repo *git.Repository, sha string) (*object.Tree, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", sha, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", sha, err)
	}
	return tree, nil
}

// FileAt returns a file's content at a commit. Missing files return an
// empty string without error, which diff summaries rely on.
func (a *Adapter) FileAt(repo *git.Repository, sha, path string) (string, error) {
	tree, err := commitTree(repo, sha)
	if err != nil {
		return "", err
	}
	file, err := tree.File(path)
	if err != nil {
		if err == object.ErrFileNotFound {
			return "", nil
		}
		return "", fmt.Errorf("file %s at %s: %w", path, sha, err)
	}
	return file.Contents()
}

// normalizePath strips a leading "./" go-git never produces but callers may
// pass.
func normalizePath(p string) string {
	return strings.TrimPrefix(p, "./")
}
