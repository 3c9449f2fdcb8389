package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bootforge/internal/services"
)

// Workspace is the disposable directory tree staging one preview fetch. It
// is destroyed and recreated on every fetch, so nothing survives between
// attempts.
type Workspace struct {
	root     string
	unzipDir string
}

// NewWorkspace describes a workspace rooted at dir.
func NewWorkspace(dir string) *Workspace {
	return &Workspace{
		root:     dir,
		unzipDir: filepath.Join(dir, "unzipped"),
	}
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// UnzipDir returns the directory holding extracted entries.
func (w *Workspace) UnzipDir() string { return w.unzipDir }

// Reset discards the workspace and recreates it empty. It is idempotent.
func (w *Workspace) Reset() error {
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("clear workspace: %w", err)
	}
	for _, dir := range []string{w.root, w.unzipDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create workspace dir %q: %w", dir, err)
		}
	}
	return nil
}

// ResolveEntry maps an archive entry name to its extraction path, rejecting
// anything that would escape the workspace. Entry names come from an
// untrusted archive, so this guard runs on extraction and read-back alike.
func (w *Workspace) ResolveEntry(name string) (string, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if cleaned == "" {
		return "", services.Wrap(services.ErrPathTraversal, "preview", "resolve entry", "empty entry name", nil)
	}
	if strings.HasPrefix(cleaned, "/") {
		return "", services.Wrap(services.ErrPathTraversal, "preview", "resolve entry",
			fmt.Sprintf("entry name %q is absolute", name), nil)
	}
	for _, segment := range strings.Split(cleaned, "/") {
		if segment == ".." {
			return "", services.Wrap(services.ErrPathTraversal, "preview", "resolve entry",
				fmt.Sprintf("entry name %q contains a parent segment", name), nil)
		}
	}

	resolved := filepath.Join(w.unzipDir, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(w.unzipDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", services.Wrap(services.ErrPathTraversal, "preview", "resolve entry",
			fmt.Sprintf("entry name %q escapes the workspace", name), nil)
	}
	return resolved, nil
}
