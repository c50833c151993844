package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledByDefault(t *testing.T) {
	t.Setenv("REVIEWD_DEBUG", "")
	if err := Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if IsDebugMode() {
		t.Error("debug mode must be off without REVIEWD_DEBUG")
	}

	// Logging through a no-op logger must not panic or create files.
	l := Get(CategoryReview)
	l.Info("ignored %d", 1)
	l.Error("ignored too")
}

func TestWritesCategoryFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REVIEWD_DEBUG", "1")
	t.Setenv("REVIEWD_LOG_DIR", dir)
	t.Setenv("REVIEWD_LOG_LEVEL", "debug")
	t.Setenv("REVIEWD_LOG_JSON", "")

	if err := Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer CloseAll()

	Chunker("parsed %d chunks", 4)
	ChunkerDebug("details")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var chunkerLog string
	for _, e := range entries {
		if strings.Contains(e.Name(), "chunker") {
			chunkerLog = filepath.Join(dir, e.Name())
		}
	}
	if chunkerLog == "" {
		t.Fatalf("no chunker log file in %v", entries)
	}
	data, err := os.ReadFile(chunkerLog)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "parsed 4 chunks") || !strings.Contains(content, "[INFO]") {
		t.Errorf("log content missing entries: %q", content)
	}
	if !strings.Contains(content, "[DEBUG] details") {
		t.Errorf("debug entry missing at debug level: %q", content)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REVIEWD_DEBUG", "1")
	t.Setenv("REVIEWD_LOG_DIR", dir)
	t.Setenv("REVIEWD_LOG_LEVEL", "warn")

	if err := Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer CloseAll()

	l := Get(CategoryStore)
	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if !strings.Contains(e.Name(), "store") {
			continue
		}
		data, _ := os.ReadFile(filepath.Join(dir, e.Name()))
		if strings.Contains(string(data), "hidden") {
			t.Errorf("below-level entries leaked: %q", string(data))
		}
		if !strings.Contains(string(data), "visible") {
			t.Errorf("warn entry missing: %q", string(data))
		}
	}
}

func TestTimer(t *testing.T) {
	t.Setenv("REVIEWD_DEBUG", "")
	_ = Initialize()
	timer := StartTimer(CategoryGraph, "op")
	if d := timer.Stop(); d < 0 {
		t.Error("duration must be non-negative")
	}
}
