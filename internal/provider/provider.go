// Package provider abstracts the version-control host API consumed by the
// review pipeline. The GitHub implementation is the only one shipped;
// everything above it programs against the Host interface.
package provider

import "context"

// PullRequestFile is one file entry of a PR's file listing.
type PullRequestFile struct {
	Filename  string
	Status    string // added, modified, removed, renamed
	Patch     string
	Additions int
	Deletions int
}

// ExistingComment is a review comment already present on the PR, used for
// deduplication.
type ExistingComment struct {
	Path string
	Line int
	Body string
}

// ReviewCommentInput is one comment of a batched review. Position is the
// diff position; line-based anchoring is forbidden at this layer.
type ReviewCommentInput struct {
	Path     string
	Position int
	Body     string
}

// ReviewEvent selects the review's overall verdict.
type ReviewEvent string

const (
	EventComment        ReviewEvent = "COMMENT"
	EventRequestChanges ReviewEvent = "REQUEST_CHANGES"
)

// ReviewInput is a batched review submission.
type ReviewInput struct {
	CommitSHA string
	Body      string
	Event     ReviewEvent
	Comments  []ReviewCommentInput
}

// Host is the provider contract.
type Host interface {
	ListPullRequestFiles(ctx context.Context, owner, repo string, prNumber int) ([]PullRequestFile, error)
	GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error)
	ListReviewComments(ctx context.Context, owner, repo string, prNumber int) ([]ExistingComment, error)
	ListIssueComments(ctx context.Context, owner, repo string, prNumber int) ([]string, error)
	CreateReview(ctx context.Context, owner, repo string, prNumber int, review ReviewInput) error
	CreateReviewComment(ctx context.Context, owner, repo string, prNumber int, commitSHA string, comment ReviewCommentInput) error
	CreateIssueComment(ctx context.Context, owner, repo string, prNumber int, body string) error
}
