package fileutil

import (
	"fmt"
	"os"
	"strings"
)

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("ensure dir: empty path")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", dir, err)
	}
	return nil
}

// CreateTaskWorkspace makes a fresh scratch directory for one task. The
// random suffix keeps a redelivered task from colliding with leftovers of
// an earlier attempt.
func CreateTaskWorkspace(baseDir, taskID string) (string, error) {
	if err := EnsureDir(baseDir); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(baseDir, "task-"+SanitizeName(taskID)+"-")
	if err != nil {
		return "", fmt.Errorf("create task workspace: %w", err)
	}
	return dir, nil
}

// RemoveWorkspace deletes a task workspace and everything in it.
func RemoveWorkspace(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", dir, err)
	}
	return nil
}

// SanitizeName reduces a string to characters safe in a file name.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "task"
	}
	return b.String()
}
