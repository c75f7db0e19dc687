// Package workspace models the editor state the helpers read: the workspace
// folders and the open editor tabs.
package workspace

import (
	"path/filepath"
	"strings"
)

// SolidityExt is the suffix that marks an open tab as a Solidity source.
const SolidityExt = ".sol"

// Context is the set of workspace folders the host associates with the
// current project. Only the first folder is ever searched.
type Context struct {
	Folders []string
}

// New returns a Context for the given folders, dropping empty entries.
func New(folders ...string) Context {
	ctx := Context{}
	for _, f := range folders {
		if strings.TrimSpace(f) == "" {
			continue
		}
		ctx.Folders = append(ctx.Folders, filepath.Clean(f))
	}
	return ctx
}

// Root returns the first workspace folder. ok is false when the workspace
// has no folders.
func (c Context) Root() (root string, ok bool) {
	if len(c.Folders) == 0 {
		return "", false
	}
	return c.Folders[0], true
}

// Contains reports whether location lies inside the workspace root once
// symlinks are resolved. Path components that do not exist yet are kept as
// written.
func (c Context) Contains(location string) bool {
	root, ok := c.Root()
	if !ok {
		return false
	}
	rel, err := filepath.Rel(resolve(root), resolve(filepath.Clean(location)))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolve evaluates symlinks in the longest existing prefix of path.
func resolve(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path
	}
	return filepath.Join(resolve(parent), filepath.Base(path))
}
