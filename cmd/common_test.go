package cmd

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"dir/b.png", true},
		{"c.webp", true},
		{"notes.txt", false},
		{"noext", false},
	}

	for _, tc := range tests {
		if got := isImageFile(tc.path); got != tc.want {
			t.Errorf("isImageFile(%q) = %v; want %v", tc.path, got, tc.want)
		}
	}
}

func TestCollectImagePaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.txt", "sub/c.jpg"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	explicit := filepath.Join(dir, "b.txt")

	paths, err := collectImagePaths([]string{dir, explicit})
	if err != nil {
		t.Fatalf("collectImagePaths failed: %v", err)
	}

	want := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "sub", "c.jpg"), explicit}
	if !slices.Equal(paths, want) {
		t.Errorf("paths = %v; want %v", paths, want)
	}
}

func TestCollectImagePathsMissing(t *testing.T) {
	if _, err := collectImagePaths([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for missing path")
	}
}
