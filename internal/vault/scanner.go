// Package vault tracks the on-disk state of a markdown note vault.
//
// The scanner walks the vault root, fingerprints every markdown file and
// mirrors the result into the file_states table. The watcher keeps that
// mirror fresh by triggering rescans when files change on disk. The reader
// serves note content to the processing pipeline with traversal protection.
package vault

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// ScanResult summarizes a single pass over the vault.
type ScanResult struct {
	Scanned  int           `json:"scanned"`
	Updated  int           `json:"updated"`
	Removed  int           `json:"removed"`
	Duration time.Duration `json:"-"`
}

// Scanner diffs the vault directory against the file_states table.
type Scanner struct {
	root  string
	store storage.FileStateStore
}

// NewScanner creates a scanner rooted at the given vault directory.
func NewScanner(root string, store storage.FileStateStore) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root is not a directory: %s", abs)
	}
	return &Scanner{root: abs, store: store}, nil
}

// Root returns the absolute vault root directory.
func (s *Scanner) Root() string {
	return s.root
}

// ScanAll walks the vault root, upserts a file_states row for every new or
// modified markdown file and deletes rows for files gone from disk. Hidden
// directories (.obsidian, .trash, .git) are skipped. Files whose stored
// modification time matches disk are not re-read.
func (s *Scanner) ScanAll(ctx context.Context) (*ScanResult, error) {
	start := time.Now()

	existing, err := s.store.ListFileStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}
	known := make(map[string]*types.FileState, len(existing))
	for _, fst := range existing {
		known[fst.Path] = fst
	}

	result := &ScanResult{}
	seen := make(map[string]bool)

	walkErr := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			// Skip hidden directories (.obsidian, .trash, .git)
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".md" && ext != ".markdown" {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		seen[rel] = true
		result.Scanned++

		info, err := d.Info()
		if err != nil {
			log.Printf("WARNING: vault: cannot stat %s: %v", rel, err)
			return nil
		}
		modified := info.ModTime().UTC()

		prev, tracked := known[rel]
		if tracked && prev.LastModified.Equal(modified) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			log.Printf("WARNING: vault: cannot read %s: %v", rel, err)
			return nil
		}
		hash := fmt.Sprintf("%x", sha256.Sum256(content))
		if tracked && prev.ContentHash == hash {
			// Touched but unchanged, refresh the timestamp only.
			if err := s.store.UpsertFileState(ctx, &types.FileState{Path: rel, ContentHash: hash, LastModified: modified}); err != nil {
				return fmt.Errorf("failed to track %s: %w", rel, err)
			}
			return nil
		}

		if err := s.store.UpsertFileState(ctx, &types.FileState{Path: rel, ContentHash: hash, LastModified: modified}); err != nil {
			return fmt.Errorf("failed to track %s: %w", rel, err)
		}
		result.Updated++
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("vault scan failed: %w", walkErr)
	}

	for path := range known {
		if seen[path] {
			continue
		}
		if err := s.store.DeleteFileState(ctx, path); err != nil {
			return nil, fmt.Errorf("failed to untrack %s: %w", path, err)
		}
		result.Removed++
	}

	result.Duration = time.Since(start)
	log.Printf("vault: scanned %d files (%d updated, %d removed) in %v",
		result.Scanned, result.Updated, result.Removed, result.Duration.Round(time.Millisecond))
	return result, nil
}
