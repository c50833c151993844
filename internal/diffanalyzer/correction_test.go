package diffanalyzer

import (
	"strings"
	"testing"
)

// correctionFile builds a ProcessedFile with hand-set diff bookkeeping.
func correctionFile(totalLines int, valid, changed, comments []int) *ProcessedFile {
	analysis := &DiffAnalysis{
		ChangedLines:   make(map[int]bool),
		AddedLines:     make(map[int]bool),
		DeletedLines:   make(map[int]bool),
		ValidDiffLines: make(map[int]bool),
		ValidPositions: make(map[int]bool),
		LineToPosition: make(map[int]int),
		PositionToLine: make(map[int]int),
	}
	for i, line := range valid {
		analysis.ValidDiffLines[line] = true
		analysis.LineToPosition[line] = i + 1
		analysis.PositionToLine[i+1] = line
		analysis.ValidPositions[i+1] = true
	}
	for _, line := range changed {
		analysis.ChangedLines[line] = true
	}
	commentSet := make(map[int]bool)
	for _, line := range comments {
		commentSet[line] = true
	}
	return &ProcessedFile{
		Path:         "example.ts",
		Content:      strings.Repeat("x\n", totalLines-1) + "x",
		DiffAnalysis: analysis,
		CommentLines: commentSet,
	}
}

func TestCorrectLine_NearestValidThenChanged(t *testing.T) {
	// Finding at line 4 with valid={2,3,7}, changed={2}, maxDistance=5.
	f := correctionFile(10, []int{2, 3, 7}, []int{2}, nil)

	cfg := CorrectionConfig{MaxCorrectionDistance: 5, PreferChangedLines: false}
	line, ok := f.CorrectLine(4, cfg)
	if !ok || line != 3 {
		t.Errorf("without preferChangedLines: expected 3, got %d (ok=%v)", line, ok)
	}

	cfg.PreferChangedLines = true
	line, ok = f.CorrectLine(4, cfg)
	if !ok || line != 2 {
		t.Errorf("with preferChangedLines: expected 2, got %d (ok=%v)", line, ok)
	}
}

func TestCorrectLine_AlreadyValid(t *testing.T) {
	f := correctionFile(10, []int{5}, []int{5}, nil)
	line, ok := f.CorrectLine(5, DefaultCorrectionConfig())
	if !ok || line != 5 {
		t.Errorf("expected 5 kept, got %d (ok=%v)", line, ok)
	}
}

func TestCorrectLine_TooFarDropped(t *testing.T) {
	f := correctionFile(100, []int{50}, nil, nil)
	if _, ok := f.CorrectLine(10, DefaultCorrectionConfig()); ok {
		t.Error("expected finding 40 lines away to be dropped")
	}
}

func TestCorrectLine_ClampsOutOfRange(t *testing.T) {
	f := correctionFile(10, []int{9, 10}, nil, nil)
	line, ok := f.CorrectLine(500, CorrectionConfig{MaxCorrectionDistance: 5})
	if !ok || line != 10 {
		t.Errorf("expected clamp to 10, got %d (ok=%v)", line, ok)
	}
}

func TestCorrectLine_MovesOffCommentLine(t *testing.T) {
	f := correctionFile(10, []int{4, 5}, nil, []int{4})
	line, ok := f.CorrectLine(4, CorrectionConfig{MaxCorrectionDistance: 5})
	if !ok || line != 5 {
		t.Errorf("expected move off comment line to 5, got %d (ok=%v)", line, ok)
	}
}

func TestCorrectLine_FinalMustBeValid(t *testing.T) {
	f := correctionFile(10, nil, nil, nil)
	if _, ok := f.CorrectLine(3, DefaultCorrectionConfig()); ok {
		t.Error("no valid lines: every finding must drop")
	}
}
