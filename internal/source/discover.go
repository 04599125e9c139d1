package source

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	verrors "github.com/dmwm/wmviews/internal/errors"
)

// Discover returns the regular files under root that match any include
// pattern and no exclude pattern. Patterns use doublestar syntax and are
// matched against slash-separated paths relative to root. The result holds
// paths joined onto root, sorted and free of duplicates.
func Discover(root string, include, exclude []string) ([]string, error) {
	if err := ValidatePatterns(append(slices.Clone(include), exclude...)); err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, verrors.New(verrors.ErrCodeFileNotFound, "input directory not found: "+root, err)
		}
		return nil, verrors.New(verrors.ErrCodeFilePermission, "cannot access input directory: "+root, err)
	}
	if !info.IsDir() {
		return nil, verrors.New(verrors.ErrCodeInvalidInput, "not a directory: "+root, nil)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, verrors.ValidationError("invalid glob pattern: "+pattern, err)
		}
		for _, rel := range matches {
			if seen[rel] || Excluded(rel, exclude) {
				continue
			}
			seen[rel] = true
			files = append(files, rel)
		}
	}

	slices.Sort(files)
	for i, rel := range files {
		files[i] = filepath.Join(root, filepath.FromSlash(rel))
	}
	return files, nil
}

// Match reports whether rel, a slash-separated path relative to the
// discovery root, would be returned by Discover with the same patterns.
func Match(rel string, include, exclude []string) bool {
	rel = filepath.ToSlash(rel)
	if Excluded(rel, exclude) {
		return false
	}
	for _, pattern := range include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Excluded reports whether rel matches any exclude pattern.
func Excluded(rel string, exclude []string) bool {
	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// ValidatePatterns rejects malformed glob patterns.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return verrors.ValidationError("invalid glob pattern: "+p, nil).
				WithSuggestion("Patterns use doublestar syntax, e.g. **/*.json")
		}
	}
	return nil
}
