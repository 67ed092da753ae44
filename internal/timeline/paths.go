package timeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolveUnderRoot resolves a track location against the storage root and
// returns the absolute path. Locations are always relative; an absolute
// location or one that escapes the root via parent traversal is rejected
// with ErrInvalidLocation before any filesystem access happens.
func ResolveUnderRoot(root, location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("%w: empty location", ErrInvalidLocation)
	}
	if filepath.IsAbs(location) {
		return "", fmt.Errorf("%w: %s", ErrInvalidLocation, location)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving storage root: %w", err)
	}

	resolved := filepath.Join(absRoot, filepath.Clean(location))

	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidLocation, location)
	}

	return resolved, nil
}
