package preflight

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("Scratch", dir)
	if !result.Passed {
		t.Fatalf("writable temp dir should pass: %+v", result)
	}

	missing := CheckDirectoryAccess("Scratch", filepath.Join(dir, "nope"))
	if missing.Passed {
		t.Fatal("missing directory should fail")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	notDir := CheckDirectoryAccess("Scratch", file)
	if notDir.Passed {
		t.Fatal("regular file should fail")
	}
}

func TestCheckBinaries(t *testing.T) {
	statuses := CheckBinaries([]BinaryRequirement{
		{Name: "shell", Command: "sh"},
		{Name: "missing", Command: "no-such-binary-xyzzy"},
		{Name: "blank", Command: "  "},
	})
	if len(statuses) != 3 {
		t.Fatalf("statuses = %d", len(statuses))
	}
	if !statuses[0].Available || statuses[0].Detail == "" {
		t.Fatalf("sh should resolve: %+v", statuses[0])
	}
	if statuses[1].Available {
		t.Fatalf("nonexistent binary should fail: %+v", statuses[1])
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Fatalf("blank command should fail: %+v", statuses[2])
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("Space", dir, 1); !result.Passed {
		t.Fatalf("one byte should be available: %+v", result)
	}
	if result := CheckFreeSpace("Space", dir, 1<<62); result.Passed {
		t.Fatal("absurd requirement should fail")
	}
	if result := CheckFreeSpace("Space", filepath.Join(dir, "nope"), 1); result.Passed {
		t.Fatal("missing path should fail")
	}
}
