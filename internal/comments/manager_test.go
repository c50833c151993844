package comments

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/diffanalyzer"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/provider"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// fakeHost records provider calls and simulates failures.
type fakeHost struct {
	existing          []provider.ExistingComment
	failBatch         bool
	reviews           []provider.ReviewInput
	singleComments    []provider.ReviewCommentInput
	issueComments     []string
	singleCommentErrs int
}

func (f *fakeHost) ListPullRequestFiles(ctx context.Context, owner, repo string, prNumber int) ([]provider.PullRequestFile, error) {
	return nil, nil
}

func (f *fakeHost) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	return "", nil
}

func (f *fakeHost) ListReviewComments(ctx context.Context, owner, repo string, prNumber int) ([]provider.ExistingComment, error) {
	return f.existing, nil
}

func (f *fakeHost) ListIssueComments(ctx context.Context, owner, repo string, prNumber int) ([]string, error) {
	return f.issueComments, nil
}

func (f *fakeHost) CreateReview(ctx context.Context, owner, repo string, prNumber int, review provider.ReviewInput) error {
	if f.failBatch {
		return errors.New("422 unprocessable")
	}
	f.reviews = append(f.reviews, review)
	return nil
}

func (f *fakeHost) CreateReviewComment(ctx context.Context, owner, repo string, prNumber int, commitSHA string, comment provider.ReviewCommentInput) error {
	if f.singleCommentErrs > 0 {
		f.singleCommentErrs--
		return errors.New("403 rate limit")
	}
	f.singleComments = append(f.singleComments, comment)
	return nil
}

func (f *fakeHost) CreateIssueComment(ctx context.Context, owner, repo string, prNumber int, body string) error {
	f.issueComments = append(f.issueComments, body)
	return nil
}

// processedFile builds a file whose patch adds lines 1-3.
func processedFile(t *testing.T, path string) *diffanalyzer.ProcessedFile {
	t.Helper()
	patch := "@@ -0,0 +1,3 @@\n+one\n+two\n+three"
	f := diffanalyzer.BuildProcessedFile(path, "one\ntwo\nthree", "", patch, "typescript", true, false)
	if f == nil {
		t.Fatal("processed file must have valid positions")
	}
	return f
}

func TestConvert_MapsLineToPositionAndSeverity(t *testing.T) {
	m := New(&fakeHost{})
	f := processedFile(t, "a.ts")

	findings := []types.ReviewFinding{
		{Line: 2, Severity: types.SeverityCritical, Category: types.CategoryBug, Message: "broken", Suggestion: "fix()", Explanation: "because"},
		{Line: 99, Severity: types.SeverityInfo, Category: types.CategoryBug, Message: "unmappable"},
	}
	comments := m.Convert(f, findings)
	if len(comments) != 1 {
		t.Fatalf("unmappable finding must drop; got %d comments", len(comments))
	}
	c := comments[0]
	if c.Position != f.DiffAnalysis.LineToPosition[2] {
		t.Errorf("position = %d, want %d", c.Position, f.DiffAnalysis.LineToPosition[2])
	}
	if c.Severity != types.CommentError {
		t.Errorf("critical must map to error, got %s", c.Severity)
	}
	if !strings.Contains(c.Body, "broken") || !strings.Contains(c.Body, "```suggestion") ||
		!strings.Contains(c.Body, "because") {
		t.Errorf("body missing sections: %q", c.Body)
	}
}

func TestDedup_DropsExistingComments(t *testing.T) {
	f := processedFile(t, "a.ts")
	m := New(&fakeHost{})
	fresh := m.Convert(f, []types.ReviewFinding{
		{Line: 1, Severity: types.SeverityWarning, Category: types.CategoryBug, Message: "dup"},
		{Line: 2, Severity: types.SeverityWarning, Category: types.CategoryBug, Message: "new"},
	})

	host := &fakeHost{existing: []provider.ExistingComment{
		{Path: "a.ts", Line: 1, Body: fresh[0].Body},
	}}
	m = New(host)

	kept, err := m.Dedup(context.Background(), "o", "r", 1, fresh)
	if err != nil {
		t.Fatalf("dedup: %v", err)
	}
	if len(kept) != 1 || kept[0].Line != 2 {
		t.Errorf("expected only the new comment, got %+v", kept)
	}
}

func TestDedup_NormalizesWhitespace(t *testing.T) {
	f := processedFile(t, "a.ts")
	m := New(&fakeHost{})
	fresh := m.Convert(f, []types.ReviewFinding{
		{Line: 1, Severity: types.SeverityInfo, Category: types.CategoryBug, Message: "same text"},
	})

	spaced := strings.ReplaceAll(fresh[0].Body, " ", "   \n")
	host := &fakeHost{existing: []provider.ExistingComment{{Path: "a.ts", Line: 1, Body: spaced}}}
	m = New(host)

	kept, err := m.Dedup(context.Background(), "o", "r", 1, fresh)
	if err != nil {
		t.Fatalf("dedup: %v", err)
	}
	if len(kept) != 0 {
		t.Errorf("whitespace-differing duplicate must drop, got %+v", kept)
	}
}

func TestValidate_RequiresValidDiffLine(t *testing.T) {
	f := processedFile(t, "a.ts")
	m := New(&fakeHost{})

	comments := []types.ReviewComment{
		{Path: "a.ts", Line: 2, Position: 2, Body: "ok"},
		{Path: "a.ts", Line: 50, Position: 1, Body: "bad line"},
		{Path: "missing.ts", Line: 1, Position: 1, Body: "unknown file"},
	}
	valid := m.Validate(comments, map[string]*diffanalyzer.ProcessedFile{"a.ts": f})
	if len(valid) != 1 || valid[0].Line != 2 {
		t.Errorf("expected only the valid comment, got %+v", valid)
	}
}

func TestSummary(t *testing.T) {
	m := New(&fakeHost{})

	empty := m.Summary(nil, 3)
	if !strings.Contains(empty, "no issues") {
		t.Errorf("empty summary should say no issues: %q", empty)
	}

	comments := []types.ReviewComment{
		{Severity: types.CommentError, Category: types.CategorySecurity},
		{Severity: types.CommentWarning, Category: types.CategoryBug},
		{Severity: types.CommentWarning, Category: types.CategoryBug},
	}
	got := m.Summary(comments, 2)
	for _, want := range []string{"3 comment(s)", "1 error", "2 warning", "bug (2)"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}
}

func TestPost_BatchSuccess(t *testing.T) {
	host := &fakeHost{}
	m := New(host)
	f := processedFile(t, "a.ts")
	comments := m.Convert(f, []types.ReviewFinding{
		{Line: 1, Severity: types.SeverityCritical, Category: types.CategoryBug, Message: "x"},
	})

	posted, err := m.Post(context.Background(), "o", "r", 1, "sha", comments, "summary")
	if err != nil || posted != 1 {
		t.Fatalf("posted = %d, err = %v", posted, err)
	}
	if len(host.reviews) != 1 {
		t.Fatalf("expected one batched review, got %d", len(host.reviews))
	}
	if host.reviews[0].Event != provider.EventRequestChanges {
		t.Errorf("error severity must request changes, got %s", host.reviews[0].Event)
	}
	if len(host.issueComments) != 0 {
		t.Errorf("batch path posts the summary inside the review, got %v", host.issueComments)
	}
}

func TestPost_FallbackPerComment(t *testing.T) {
	host := &fakeHost{failBatch: true, singleCommentErrs: 1}
	m := New(host)
	f := processedFile(t, "a.ts")
	comments := m.Convert(f, []types.ReviewFinding{
		{Line: 1, Severity: types.SeverityInfo, Category: types.CategoryBug, Message: "a"},
		{Line: 2, Severity: types.SeverityInfo, Category: types.CategoryBug, Message: "b"},
	})

	posted, err := m.Post(context.Background(), "o", "r", 1, "sha", comments, "summary")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if posted != 2 {
		t.Errorf("rate-limited comment must retry and post; posted = %d", posted)
	}
	if len(host.issueComments) != 1 {
		t.Errorf("fallback must post the summary as an issue comment, got %v", host.issueComments)
	}
}
