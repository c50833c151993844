// Package diffanalyzer parses provider unified patches into line/position
// bookkeeping for review comments. It is the sole authority for the mapping
// between file line numbers and diff positions: review comments are anchored
// by position, and a position is valid iff this package says so.
package diffanalyzer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
)

// DiffAnalysis captures everything the review pipeline needs to know about
// one file's patch.
//
// Invariants:
//   - AddedLines ⊆ ChangedLines ⊆ ValidDiffLines
//   - DeletedLines ∩ ValidDiffLines = ∅
//   - LineToPosition and PositionToLine are mutual inverses on their domains.
type DiffAnalysis struct {
	ChangedLines   map[int]bool
	AddedLines     map[int]bool
	DeletedLines   map[int]bool
	ValidDiffLines map[int]bool
	ValidPositions map[int]bool
	LineToPosition map[int]int
	PositionToLine map[int]int
}

// hunkHeaderRe matches "@@ -oldStart[,oldLen] +newStart[,newLen] @@".
var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Analyze walks a unified patch and builds the full line/position
// bookkeeping. The diff position counts every line after the first hunk
// header, including subsequent hunk headers, matching the provider's
// review-comment anchoring.
func Analyze(patch string) *DiffAnalysis {
	a := &DiffAnalysis{
		ChangedLines:   make(map[int]bool),
		AddedLines:     make(map[int]bool),
		DeletedLines:   make(map[int]bool),
		ValidDiffLines: make(map[int]bool),
		ValidPositions: make(map[int]bool),
		LineToPosition: make(map[int]int),
		PositionToLine: make(map[int]int),
	}
	if patch == "" {
		return a
	}

	var (
		currentOldLine int
		currentNewLine int
		diffPosition   int
		inHunk         bool
	)

	for _, line := range strings.Split(patch, "\n") {
		if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
			if inHunk {
				// Later hunk headers occupy a position themselves.
				diffPosition++
			}
			inHunk = true
			currentOldLine, _ = strconv.Atoi(m[1])
			currentNewLine, _ = strconv.Atoi(m[3])
			continue
		}
		if !inHunk {
			continue // preamble: file mode lines, index lines
		}
		if line == "" {
			continue
		}

		switch line[0] {
		case '+':
			diffPosition++
			a.AddedLines[currentNewLine] = true
			a.ChangedLines[currentNewLine] = true
			a.markValid(currentNewLine, diffPosition)
			currentNewLine++
		case '-':
			diffPosition++
			a.DeletedLines[currentOldLine] = true
			currentOldLine++
		case ' ':
			diffPosition++
			a.markValid(currentNewLine, diffPosition)
			currentOldLine++
			currentNewLine++
		case '\\':
			// "\ No newline at end of file" still consumes a position.
			diffPosition++
		}
	}

	logging.DiffDebug("analyzed patch: %d valid lines, %d added, %d deleted, %d positions",
		len(a.ValidDiffLines), len(a.AddedLines), len(a.DeletedLines), len(a.ValidPositions))
	return a
}

func (a *DiffAnalysis) markValid(line, position int) {
	a.ValidDiffLines[line] = true
	a.ValidPositions[position] = true
	a.LineToPosition[line] = position
	a.PositionToLine[position] = line
}

// PositionFor returns the diff position for a file line, if commentable.
func (a *DiffAnalysis) PositionFor(line int) (int, bool) {
	pos, ok := a.LineToPosition[line]
	return pos, ok
}

// HasValidPositions reports whether any line of the patch is commentable.
// Files without valid positions are skipped by the review pipeline.
func (a *DiffAnalysis) HasValidPositions() bool {
	return len(a.ValidPositions) > 0
}

// ChangedRanges collapses the changed line set into sorted contiguous
// [start, end] ranges, used by the context retriever to seed direct-change
// contexts.
func (a *DiffAnalysis) ChangedRanges() [][2]int {
	if len(a.ChangedLines) == 0 {
		return nil
	}
	lines := make([]int, 0, len(a.ChangedLines))
	for l := range a.ChangedLines {
		lines = append(lines, l)
	}
	sort.Ints(lines)

	var ranges [][2]int
	start, prev := lines[0], lines[0]
	for _, l := range lines[1:] {
		if l == prev+1 {
			prev = l
			continue
		}
		ranges = append(ranges, [2]int{start, prev})
		start, prev = l, l
	}
	ranges = append(ranges, [2]int{start, prev})
	return ranges
}
