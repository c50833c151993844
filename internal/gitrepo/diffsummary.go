package gitrepo

import (
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
)

// ChangeStatus describes how a file changed between two commits.
type ChangeStatus string

const (
	ChangeAdded    ChangeStatus = "added"
	ChangeModified ChangeStatus = "modified"
	ChangeDeleted  ChangeStatus = "deleted"
	ChangeRenamed  ChangeStatus = "renamed"
)

// FileChange is one entry of a commit-to-commit change listing.
type FileChange struct {
	Path      string
	OldPath   string
	Status    ChangeStatus
	Additions int
	Deletions int
}

// DiffSummary aggregates the change listing between two commits.
type DiffSummary struct {
	BaseSHA   string
	HeadSHA   string
	Files     []FileChange
	Additions int
	Deletions int
}

// ChangedFiles lists the files that differ between two commits, with
// per-file line counts computed by the diff engine.
func (a *Adapter) ChangedFiles(repo *git.Repository, baseSHA, headSHA string) (*DiffSummary, error) {
	timer := logging.StartTimer(logging.CategoryGit, "ChangedFiles")
	defer timer.Stop()

	baseTree, err := commitTree(repo, baseSHA)
	if err != nil {
		return nil, err
	}
	headTree, err := commitTree(repo, headSHA)
	if err != nil {
		return nil, err
	}

	changes, err := baseTree.Diff(headTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	summary := &DiffSummary{BaseSHA: baseSHA, HeadSHA: headSHA}
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("change action: %w", err)
		}

		fc := FileChange{}
		switch action {
		case merkletrie.Insert:
			fc.Status = ChangeAdded
			fc.Path = normalizePath(change.To.Name)
		case merkletrie.Delete:
			fc.Status = ChangeDeleted
			fc.Path = normalizePath(change.From.Name)
		case merkletrie.Modify:
			fc.Status = ChangeModified
			fc.Path = normalizePath(change.To.Name)
			if change.From.Name != change.To.Name {
				fc.Status = ChangeRenamed
				fc.OldPath = normalizePath(change.From.Name)
			}
		}

		var oldContent, newContent string
		if fc.Status != ChangeAdded {
			from := fc.OldPath
			if from == "" {
				from = fc.Path
			}
			oldContent, _ = a.FileAt(repo, baseSHA, from)
		}
		if fc.Status != ChangeDeleted {
			newContent, _ = a.FileAt(repo, headSHA, fc.Path)
		}
		fc.Additions, fc.Deletions = countLineChanges(oldContent, newContent)

		summary.Files = append(summary.Files, fc)
		summary.Additions += fc.Additions
		summary.Deletions += fc.Deletions
	}

	logging.GitDebug("diff %s..%s: %d files, +%d -%d",
		shortSHA(baseSHA), shortSHA(headSHA), len(summary.Files), summary.Additions, summary.Deletions)
	return summary, nil
}

// countLineChanges counts added and deleted lines between two contents
// using a line-level reduction to avoid newline boundary artifacts.
func countLineChanges(oldContent, newContent string) (added, deleted int) {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		lines := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += lines
		case diffmatchpatch.DiffDelete:
			deleted += lines
		}
	}
	return added, deleted
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			n++
		}
	}
	if text[len(text)-1] != '\n' {
		n++
	}
	return n
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
