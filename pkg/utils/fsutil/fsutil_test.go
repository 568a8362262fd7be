package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSafeJoin(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		rel     string
		wantErr bool
	}{
		{rel: "a.txt"},
		{rel: "dir/b.txt"},
		{rel: "dir/../c.txt"},
		{rel: "../escape.txt", wantErr: true},
		{rel: "dir/../../escape.txt", wantErr: true},
		{rel: "/etc/passwd", wantErr: true},
		{rel: "..", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, err := SafeJoin(base, tt.rel)
			if tt.wantErr {
				if !errors.Is(err, ErrPathEscape) {
					t.Fatalf("SafeJoin(%q) = %q, %v; want escape error", tt.rel, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if filepath.Dir(got) != base && filepath.Dir(filepath.Dir(got)) != base {
				t.Fatalf("joined path %q not under %q", got, base)
			}
		})
	}
}

func TestClearDirAndCopyTree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	if err := os.MkdirAll(filepath.Join(src, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "nested", "f.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(root, "dst")
	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("copy tree: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "nested", "f.txt"))
	if err != nil || string(data) != "x" {
		t.Fatalf("copied content = %q, %v", data, err)
	}

	if err := ClearDir(dst); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ := os.ReadDir(dst)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(entries))
	}
}

func TestMove(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a")
	if err := os.WriteFile(src, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(root, "b")
	if err := Move(src, dst); err != nil {
		t.Fatalf("move: %v", err)
	}
	if Exists(src) || !Exists(dst) {
		t.Fatal("file not moved")
	}
}
