// Package comments converts validated findings into review comments,
// deduplicates them against what is already on the PR, and posts them as a
// batched review with a per-comment fallback.
package comments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/diffanalyzer"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/provider"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/retry"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// dedupBodyPrefix is how much of a normalized body participates in the
// duplicate check.
const dedupBodyPrefix = 100

// fallbackPacing spaces out per-comment posting when batch submission
// failed, to stay under secondary rate limits.
const fallbackPacing = time.Second

// severityMap converts finding severity to comment severity.
var severityMap = map[types.FindingSeverity]types.CommentSeverity{
	types.SeverityCritical: types.CommentError,
	types.SeverityWarning:  types.CommentWarning,
	types.SeverityInfo:     types.CommentInfo,
}

// severityBadges lead each comment body.
var severityBadges = map[types.CommentSeverity]string{
	types.CommentError:   "🔴 **Critical**",
	types.CommentWarning: "🟡 **Warning**",
	types.CommentInfo:    "🔵 **Info**",
}

// Manager converts, validates, and posts review comments.
type Manager struct {
	host provider.Host
}

// New creates a Manager.
func New(host provider.Host) *Manager {
	return &Manager{host: host}
}

// Convert maps findings to position-anchored comments using the file's
// line-to-position map. Findings without a mapping are dropped.
func (m *Manager) Convert(f *diffanalyzer.ProcessedFile, findings []types.ReviewFinding) []types.ReviewComment {
	var comments []types.ReviewComment
	for _, finding := range findings {
		position, ok := f.DiffAnalysis.PositionFor(finding.Line)
		if !ok {
			logging.CommentsDebug("dropping finding at %s:%d: no diff position", f.Path, finding.Line)
			continue
		}
		severity, ok := severityMap[finding.Severity]
		if !ok {
			severity = types.CommentInfo
		}
		comments = append(comments, types.ReviewComment{
			Path:     f.Path,
			Line:     finding.Line,
			Position: position,
			Body:     buildBody(finding, severity),
			Severity: severity,
			Category: finding.Category,
		})
	}
	return comments
}

// buildBody renders the markdown comment body.
func buildBody(f types.ReviewFinding, severity types.CommentSeverity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s `%s`\n\n%s\n", severityBadges[severity], f.Category, f.Message)
	if f.Suggestion != "" {
		fmt.Fprintf(&b, "\n```suggestion\n%s\n```\n", f.Suggestion)
	}
	if f.Explanation != "" {
		fmt.Fprintf(&b, "\n%s\n", f.Explanation)
	}
	return b.String()
}

// Dedup removes comments already present on the PR, comparing (path, line,
// normalized body prefix).
func (m *Manager) Dedup(ctx context.Context, owner, repo string, prNumber int, comments []types.ReviewComment) ([]types.ReviewComment, error) {
	existing, err := m.host.ListReviewComments(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch existing comments: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[dedupKey(c.Path, c.Line, c.Body)] = true
	}

	kept := lo.Filter(comments, func(c types.ReviewComment, _ int) bool {
		return !seen[dedupKey(c.Path, c.Line, c.Body)]
	})
	if dropped := len(comments) - len(kept); dropped > 0 {
		logging.Comments("deduplicated %d comments already on PR #%d", dropped, prNumber)
	}
	return kept, nil
}

func dedupKey(path string, line int, body string) string {
	normalized := strings.Join(strings.Fields(body), " ")
	if len(normalized) > dedupBodyPrefix {
		normalized = normalized[:dedupBodyPrefix]
	}
	return fmt.Sprintf("%s:%d:%s", path, line, normalized)
}

// Validate keeps only comments whose line is a valid diff line of its file.
func (m *Manager) Validate(comments []types.ReviewComment, files map[string]*diffanalyzer.ProcessedFile) []types.ReviewComment {
	return lo.Filter(comments, func(c types.ReviewComment, _ int) bool {
		f, ok := files[c.Path]
		if !ok || !f.DiffAnalysis.ValidDiffLines[c.Line] {
			logging.CommentsDebug("dropping invalid comment at %s:%d", c.Path, c.Line)
			return false
		}
		return true
	})
}

// Summary produces the prose summary comment: counts per severity plus the
// leading categories.
func (m *Manager) Summary(comments []types.ReviewComment, filesReviewed int) string {
	if len(comments) == 0 {
		return fmt.Sprintf("Automated review of %d file(s) found no issues to flag.", filesReviewed)
	}

	bySeverity := lo.CountValuesBy(comments, func(c types.ReviewComment) types.CommentSeverity {
		return c.Severity
	})
	byCategory := lo.CountValuesBy(comments, func(c types.ReviewComment) types.FindingCategory {
		return c.Category
	})

	type catCount struct {
		name  types.FindingCategory
		count int
	}
	cats := make([]catCount, 0, len(byCategory))
	for name, count := range byCategory {
		cats = append(cats, catCount{name, count})
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].count != cats[j].count {
			return cats[i].count > cats[j].count
		}
		return cats[i].name < cats[j].name
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Automated review of %d file(s): %d comment(s)", filesReviewed, len(comments))
	parts := []string{}
	for _, sev := range []types.CommentSeverity{types.CommentError, types.CommentWarning, types.CommentInfo} {
		if n := bySeverity[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString(".")
	if len(cats) > 0 {
		top := cats
		if len(top) > 3 {
			top = top[:3]
		}
		names := lo.Map(top, func(c catCount, _ int) string {
			return fmt.Sprintf("%s (%d)", c.name, c.count)
		})
		fmt.Fprintf(&b, " Top categories: %s.", strings.Join(names, ", "))
	}
	return b.String()
}

// Post submits the comments as a single review; on failure it falls back to
// posting one comment at a time with pacing and rate-limit backoff. When the
// batched review succeeds, the summary is its body; otherwise (fallback, or
// no comments at all) the summary goes out as a general issue comment.
// Returns how many comments were posted.
func (m *Manager) Post(ctx context.Context, owner, repo string, prNumber int, commitSHA string, comments []types.ReviewComment, summary string) (int, error) {
	timer := logging.StartTimer(logging.CategoryComments, "Post")
	defer timer.Stop()

	event := provider.EventComment
	for _, c := range comments {
		if c.Severity == types.CommentError {
			event = provider.EventRequestChanges
			break
		}
	}

	posted := 0
	if len(comments) > 0 {
		inputs := lo.Map(comments, func(c types.ReviewComment, _ int) provider.ReviewCommentInput {
			return provider.ReviewCommentInput{Path: c.Path, Position: c.Position, Body: c.Body}
		})
		err := m.host.CreateReview(ctx, owner, repo, prNumber, provider.ReviewInput{
			CommitSHA: commitSHA,
			Body:      summary,
			Event:     event,
			Comments:  inputs,
		})
		if err == nil {
			posted = len(comments)
			logging.Comments("posted review with %d comments on PR #%d", posted, prNumber)
			return posted, nil
		}

		logging.Get(logging.CategoryComments).Warn("batch review failed (%v), falling back to per-comment posting", err)
		posted = m.postIndividually(ctx, owner, repo, prNumber, commitSHA, comments)
	}

	if err := m.host.CreateIssueComment(ctx, owner, repo, prNumber, summary); err != nil {
		logging.Get(logging.CategoryComments).Warn("summary comment failed: %v", err)
	}
	return posted, nil
}

// postIndividually posts comments one at a time, pacing each post and
// retrying rate-limit failures with exponential backoff.
func (m *Manager) postIndividually(ctx context.Context, owner, repo string, prNumber int, commitSHA string, comments []types.ReviewComment) int {
	policy := retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Classify: func(err error) retry.Class {
			if isRateLimit(err) {
				return retry.ClassRetryable
			}
			return retry.ClassFatal
		},
	}

	posted := 0
	for i, c := range comments {
		if i > 0 {
			select {
			case <-ctx.Done():
				return posted
			case <-time.After(fallbackPacing):
			}
		}
		input := provider.ReviewCommentInput{Path: c.Path, Position: c.Position, Body: c.Body}
		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			return m.host.CreateReviewComment(ctx, owner, repo, prNumber, commitSHA, input)
		})
		if err != nil {
			logging.Get(logging.CategoryComments).Warn("comment at %s:%d failed: %v", c.Path, c.Line, err)
			continue
		}
		posted++
	}
	logging.Comments("fallback posted %d/%d comments", posted, len(comments))
	return posted
}

func isRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "too many requests")
}
