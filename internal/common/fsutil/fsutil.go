package fsutil

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' or '~user' to that user's home directory.
// An unknown user leaves path unchanged.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	name, rest := path[1:], ""
	if i := strings.IndexAny(name, "/"+string(filepath.Separator)); i >= 0 {
		name, rest = name[:i], name[i+1:]
	}
	var home string
	if name == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home dir: %w", err)
		}
		home = h
	} else {
		u, err := user.Lookup(name)
		if err != nil {
			return path, nil
		}
		home = u.HomeDir
	}
	if rest == "" {
		return home, nil
	}
	return filepath.Join(home, rest), nil
}

// PathExists reports whether path can be stat'ed.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir expands path and creates it (and parents) if missing.
// Returns the expanded path. Calling it on an existing directory is a no-op.
func EnsureDir(path string) (string, error) {
	p, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("create dir %s: %w", p, err)
	}
	return p, nil
}

// SafeName turns a hub-style model id ("org/name") into a single path segment.
func SafeName(id string) string {
	return strings.ReplaceAll(id, "/", "-")
}
