package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Reader serves note content from the vault by relative path. Paths are
// resolved against the vault root and rejected when they escape it.
type Reader struct {
	root string
}

// NewReader creates a reader rooted at the given vault directory.
func NewReader(root string) (*Reader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}
	return &Reader{root: abs}, nil
}

// Read returns the content of a note identified by its vault-relative path.
func (r *Reader) Read(relPath string) ([]byte, error) {
	abs, err := r.Resolve(relPath)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read note %s: %w", relPath, err)
	}
	return content, nil
}

// Resolve maps a vault-relative path to an absolute one, rejecting paths
// that escape the vault root.
func (r *Reader) Resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("empty note path")
	}
	abs := filepath.Join(r.root, filepath.FromSlash(relPath))
	abs = filepath.Clean(abs)
	if abs != r.root && !strings.HasPrefix(abs, r.root+string(filepath.Separator)) {
		return "", fmt.Errorf("note path escapes vault: %s", relPath)
	}
	return abs, nil
}
