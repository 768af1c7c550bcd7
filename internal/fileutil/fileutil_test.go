package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateTaskWorkspace(t *testing.T) {
	base := t.TempDir()
	dir, err := CreateTaskWorkspace(base, "abc-123")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(dir), "task-abc-123-") {
		t.Fatalf("dir = %s", dir)
	}

	other, err := CreateTaskWorkspace(base, "abc-123")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if other == dir {
		t.Fatal("workspaces for the same task must not collide")
	}
}

func TestRemoveWorkspace(t *testing.T) {
	base := t.TempDir()
	dir, err := CreateTaskWorkspace(base, "x")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "media.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveWorkspace(dir); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("workspace should be gone")
	}

	if err := RemoveWorkspace(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"abc-123":        "abc-123",
		"a/b\\c":         "a_b_c",
		"..":             "__",
		"":               "task",
		"UUID_ok-Fine42": "UUID_ok-Fine42",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
