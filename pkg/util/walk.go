package util

import (
	"fmt"
	"path/filepath"

	"github.com/boyter/gocodewalker"
)

// WalkOptions narrows which files WalkFiles reports.
type WalkOptions struct {
	// Extensions limits the walk to these file extensions (without the dot).
	Extensions []string
	// ExcludeDirectory holds exact directory names to skip.
	ExcludeDirectory []string
	// ExcludePatterns holds filepath.Match patterns checked against base names.
	ExcludePatterns []string
	IncludeHidden   bool
}

// WalkFiles calls fn for every file under dir that survives opts and the
// directory's .gitignore/.ignore rules. rel is slash-separated and relative to dir.
// The first error returned by fn stops the walk.
func WalkFiles(dir string, opts WalkOptions, fn func(path, rel string) error) error {
	fileQueue := make(chan *gocodewalker.File, 256)
	walker := gocodewalker.NewFileWalker(dir, fileQueue)
	walker.IncludeHidden = opts.IncludeHidden
	walker.AllowListExtensions = append(walker.AllowListExtensions, opts.Extensions...)
	walker.ExcludeDirectory = append(walker.ExcludeDirectory, opts.ExcludeDirectory...)

	errChan := make(chan error, 1)
	go func() {
		errChan <- walker.Start()
	}()

	var fnErr error
	for f := range fileQueue {
		if fnErr != nil {
			// drain so the walker goroutine can exit
			continue
		}
		if matchesAny(opts.ExcludePatterns, filepath.Base(f.Location)) {
			continue
		}
		rel, err := filepath.Rel(dir, f.Location)
		if err != nil {
			fnErr = err
			walker.Terminate()
			continue
		}
		if err := fn(f.Location, filepath.ToSlash(rel)); err != nil {
			fnErr = err
			walker.Terminate()
		}
	}

	if err := <-errChan; err != nil {
		return fmt.Errorf("directory walk failed: %w", err)
	}
	return fnErr
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}
