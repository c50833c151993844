package embedding

import (
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// skipExtensions are binary or non-semantic formats never worth embedding.
var skipExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".tiff": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true, ".o": true,
	".class": true, ".jar": true, ".war": true, ".pyc": true, ".wasm": true,
	".pdf": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
}

// skipPatternLines are gitignore-style path patterns for generated or
// vendored content.
var skipPatternLines = []string{
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"out/",
	".git/",
	"coverage/",
	"*.min.js",
	"*.min.css",
	"*.map",
	"*.lock",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"*.snap",
}

const (
	svgNamespace        = "http://www.w3.org/2000/svg"
	controlScanWindow   = 1000
	controlCharMaxRatio = 0.10
)

// SkipPolicy decides whether a (filename, text) pair is embeddable.
type SkipPolicy struct {
	patterns *gitignore.GitIgnore
}

// NewSkipPolicy compiles the built-in skip patterns.
func NewSkipPolicy() *SkipPolicy {
	return &SkipPolicy{patterns: gitignore.CompileIgnoreLines(skipPatternLines...)}
}

// Check returns a non-empty reason when the input must be skipped.
func (p *SkipPolicy) Check(filename, text string) string {
	if strings.TrimSpace(text) == "" {
		return "empty content"
	}
	if ext := strings.ToLower(filepath.Ext(filename)); skipExtensions[ext] {
		return "skipped extension " + ext
	}
	if filename != "" && p.patterns.MatchesPath(filename) {
		return "matches skip pattern"
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "<svg") || strings.Contains(text, svgNamespace) {
		return "svg content"
	}
	if looksBinary(text) {
		return "binary content"
	}
	return ""
}

// looksBinary samples the first bytes and flags content where more than 10%
// are control characters other than tab, LF, or CR.
func looksBinary(text string) bool {
	window := text
	if len(window) > controlScanWindow {
		window = window[:controlScanWindow]
	}
	if len(window) == 0 {
		return false
	}
	control := 0
	for i := 0; i < len(window); i++ {
		b := window[i]
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			control++
		}
	}
	return float64(control)/float64(len(window)) > controlCharMaxRatio
}
