package diffanalyzer

import (
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
)

// CorrectionConfig controls how LLM-reported line numbers are snapped onto
// commentable diff lines.
type CorrectionConfig struct {
	MaxCorrectionDistance int
	PreferChangedLines    bool
}

// DefaultCorrectionConfig matches the documented policy defaults.
func DefaultCorrectionConfig() CorrectionConfig {
	return CorrectionConfig{MaxCorrectionDistance: 5, PreferChangedLines: true}
}

// CorrectLine applies the line-number correction policy to a finding's line.
// Returns the corrected line and true, or 0 and false when the finding must
// be dropped.
//
// Policy, in order:
//  1. Clamp to [1, totalLines].
//  2. If not a valid diff line, adopt the nearest valid line (preferring
//     changed lines at equal distance) when within MaxCorrectionDistance,
//     else drop.
//  3. If the line is a comment line and a nearer non-comment valid line
//     exists within range, adopt it.
//  4. With PreferChangedLines, move to the nearest changed line within range
//     when the current line is not itself changed.
//  5. Keep only if the final line is a valid diff line.
func (f *ProcessedFile) CorrectLine(line int, cfg CorrectionConfig) (int, bool) {
	analysis := f.DiffAnalysis
	total := f.TotalLines()

	if line < 1 {
		line = 1
	}
	if total > 0 && line > total {
		line = total
	}

	if !analysis.ValidDiffLines[line] {
		corrected, ok := nearestLine(line, analysis.ValidDiffLines, analysis.ChangedLines, cfg.MaxCorrectionDistance)
		if !ok {
			logging.DiffDebug("dropping finding at line %d: no valid line within %d", line, cfg.MaxCorrectionDistance)
			return 0, false
		}
		line = corrected
	}

	if f.CommentLines[line] {
		if better, ok := nearestNonComment(line, analysis.ValidDiffLines, f.CommentLines, cfg.MaxCorrectionDistance); ok {
			line = better
		}
	}

	if cfg.PreferChangedLines && !analysis.ChangedLines[line] {
		if changed, ok := nearestLine(line, analysis.ChangedLines, nil, cfg.MaxCorrectionDistance); ok {
			line = changed
		}
	}

	if !analysis.ValidDiffLines[line] {
		return 0, false
	}
	return line, true
}

// nearestLine finds the closest member of candidates to line within
// maxDistance. When preferred is non-nil, a preferred member wins over a
// plain member at the same distance.
func nearestLine(line int, candidates, preferred map[int]bool, maxDistance int) (int, bool) {
	for d := 0; d <= maxDistance; d++ {
		// Check both directions at this distance; prefer preferred members,
		// then the lower line number.
		var hits []int
		for _, cand := range []int{line - d, line + d} {
			if cand >= 1 && candidates[cand] {
				hits = append(hits, cand)
			}
		}
		if len(hits) == 0 {
			continue
		}
		if preferred != nil {
			for _, h := range hits {
				if preferred[h] {
					return h, true
				}
			}
		}
		return hits[0], true
	}
	return 0, false
}

// nearestNonComment finds the closest valid line that is not a comment line,
// strictly nearer than staying put.
func nearestNonComment(line int, valid, comments map[int]bool, maxDistance int) (int, bool) {
	for d := 1; d <= maxDistance; d++ {
		for _, cand := range []int{line - d, line + d} {
			if cand >= 1 && valid[cand] && !comments[cand] {
				return cand, true
			}
		}
	}
	return 0, false
}
