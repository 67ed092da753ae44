package timeline

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestResolveUnderRoot(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name     string
		location string
		wantErr  bool
	}{
		{"simple file", "clip.mp4", false},
		{"nested file", "project-1/clip.mp4", false},
		{"dot segments that stay inside", "project-1/./clip.mp4", false},
		{"empty location", "", true},
		{"absolute path", "/etc/passwd", true},
		{"parent traversal", "../outside.mp4", true},
		{"nested traversal", "project-1/../../outside.mp4", true},
		{"bare parent", "..", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := ResolveUnderRoot(root, tt.location)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ResolveUnderRoot(%q) expected error, got %q", tt.location, resolved)
				}
				if !errors.Is(err, ErrInvalidLocation) {
					t.Errorf("expected ErrInvalidLocation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveUnderRoot(%q) unexpected error: %v", tt.location, err)
			}

			absRoot, _ := filepath.Abs(root)
			rel, err := filepath.Rel(absRoot, resolved)
			if err != nil || rel == ".." || filepath.IsAbs(rel) {
				t.Errorf("resolved path %q escapes root %q", resolved, absRoot)
			}
		})
	}
}
