package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/image-classifier/pkg/types"
)

func TestParseBox(t *testing.T) {
	box, err := ParseBox("0.1, 0.2,0.5,0.25")
	if err != nil {
		t.Fatalf("ParseBox failed: %v", err)
	}
	if box != (types.Box{X: 0.1, Y: 0.2, W: 0.5, H: 0.25}) {
		t.Errorf("Unexpected box %+v", box)
	}

	for _, bad := range []string{"", "0,0,1", "a,0,1,1", "0,0,1.5,1", "0,0,0,1", "-0.1,0,1,1"} {
		if _, err := ParseBox(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.webp"} {
		if !IsImageFile(name) {
			t.Errorf("%s should be an image", name)
		}
	}
	for _, name := range []string{"a.txt", "b", "c.gif"} {
		if IsImageFile(name) {
			t.Errorf("%s should not be an image", name)
		}
	}
}

func TestIsURL(t *testing.T) {
	if !IsURL("https://example.com/a.jpg") || !IsURL("http://x") {
		t.Error("Expected http(s) sources to be URLs")
	}
	if IsURL("/tmp/a.jpg") || IsURL("ftp://x") {
		t.Error("Expected non-http sources not to be URLs")
	}
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if FileExists(dir) {
		t.Error("Directory should not count as file")
	}

	file := filepath.Join(dir, "f.txt")
	os.WriteFile(file, []byte("x"), 0o644)
	if !FileExists(file) {
		t.Error("Expected file to exist")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", size, got, want)
		}
	}
}
