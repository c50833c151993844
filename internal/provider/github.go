package provider

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
)

// GitHub implements Host over the GitHub REST API.
type GitHub struct {
	client *github.Client
}

// NewGitHub creates a Host authenticated with a token. An empty token yields
// an unauthenticated client, good enough for public repositories in tests.
func NewGitHub(ctx context.Context, token string) *GitHub {
	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = github.NewClient(nil)
	}
	return &GitHub{client: client}
}

// ListPullRequestFiles pages through the PR's file listing.
func (g *GitHub) ListPullRequestFiles(ctx context.Context, owner, repo string, prNumber int) ([]PullRequestFile, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "ListPullRequestFiles")
	defer timer.Stop()

	var files []PullRequestFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := g.client.PullRequests.ListFiles(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("list PR files: %w", err)
		}
		for _, f := range page {
			files = append(files, PullRequestFile{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Patch:     f.GetPatch(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	logging.APIDebug("PR %s/%s#%d: %d files", owner, repo, prNumber, len(files))
	return files, nil
}

// GetFileContent fetches a file's content at a ref.
func (g *GitHub) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	file, _, _, err := g.client.Repositories.GetContents(ctx, owner, repo, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("get %s@%s: %w", path, ref, err)
	}
	if file == nil {
		return "", fmt.Errorf("get %s@%s: not a file", path, ref)
	}
	content, err := file.GetContent()
	if err != nil {
		// Large files come back base64 without decoding support.
		if file.Content != nil {
			if raw, decErr := base64.StdEncoding.DecodeString(*file.Content); decErr == nil {
				return string(raw), nil
			}
		}
		return "", fmt.Errorf("decode %s@%s: %w", path, ref, err)
	}
	return content, nil
}

// ListReviewComments returns the PR's existing inline review comments.
func (g *GitHub) ListReviewComments(ctx context.Context, owner, repo string, prNumber int) ([]ExistingComment, error) {
	var comments []ExistingComment
	opts := &github.PullRequestListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		page, resp, err := g.client.PullRequests.ListComments(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("list review comments: %w", err)
		}
		for _, c := range page {
			comments = append(comments, ExistingComment{
				Path: c.GetPath(),
				Line: c.GetLine(),
				Body: c.GetBody(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

// ListIssueComments returns the PR's general discussion comments.
func (g *GitHub) ListIssueComments(ctx context.Context, owner, repo string, prNumber int) ([]string, error) {
	var bodies []string
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		page, resp, err := g.client.Issues.ListComments(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("list issue comments: %w", err)
		}
		for _, c := range page {
			bodies = append(bodies, c.GetBody())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return bodies, nil
}

// CreateReview submits a batched review with position-anchored comments.
func (g *GitHub) CreateReview(ctx context.Context, owner, repo string, prNumber int, review ReviewInput) error {
	timer := logging.StartTimer(logging.CategoryAPI, "CreateReview")
	defer timer.Stop()

	comments := make([]*github.DraftReviewComment, 0, len(review.Comments))
	for _, c := range review.Comments {
		comments = append(comments, &github.DraftReviewComment{
			Path:     github.String(c.Path),
			Position: github.Int(c.Position),
			Body:     github.String(c.Body),
		})
	}
	req := &github.PullRequestReviewRequest{
		CommitID: github.String(review.CommitSHA),
		Body:     github.String(review.Body),
		Event:    github.String(string(review.Event)),
		Comments: comments,
	}
	if _, _, err := g.client.PullRequests.CreateReview(ctx, owner, repo, prNumber, req); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// CreateReviewComment posts a single position-anchored comment.
func (g *GitHub) CreateReviewComment(ctx context.Context, owner, repo string, prNumber int, commitSHA string, comment ReviewCommentInput) error {
	c := &github.PullRequestComment{
		Path:     github.String(comment.Path),
		Position: github.Int(comment.Position),
		Body:     github.String(comment.Body),
		CommitID: github.String(commitSHA),
	}
	if _, _, err := g.client.PullRequests.CreateComment(ctx, owner, repo, prNumber, c); err != nil {
		return fmt.Errorf("create review comment: %w", err)
	}
	return nil
}

// CreateIssueComment posts a general PR comment (the review summary).
func (g *GitHub) CreateIssueComment(ctx context.Context, owner, repo string, prNumber int, body string) error {
	c := &github.IssueComment{Body: github.String(body)}
	if _, _, err := g.client.Issues.CreateComment(ctx, owner, repo, prNumber, c); err != nil {
		return fmt.Errorf("create issue comment: %w", err)
	}
	return nil
}
