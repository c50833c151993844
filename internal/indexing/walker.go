package indexing

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// skipDirs are directory names never descended into during the file walk.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"coverage":     true,
	".next":        true,
	".cache":       true,
}

// binaryExtensions are skipped at walk time; content-level filtering happens
// again in the embedding skip policy.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".zip": true, ".tar": true, ".gz": true, ".jar": true, ".class": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".wasm": true,
	".pdf": true, ".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".lock": true,
}

// ShouldProcessFile decides whether a repository-relative path is worth
// indexing.
func ShouldProcessFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if binaryExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if skipDirs[part] {
			return false
		}
	}
	return true
}

// WalkRepository enumerates processable files under a clone directory,
// returning repository-relative slash paths.
func WalkRepository(cloneDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(cloneDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || (d.Name() != "." && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(cloneDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if ShouldProcessFile(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
