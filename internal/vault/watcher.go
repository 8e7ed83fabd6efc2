package vault

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period the watcher waits for after the last
// file event before triggering a rescan. Editors tend to emit bursts of
// writes, so a single rescan per burst is enough.
const DefaultDebounce = 2 * time.Second

// Watcher triggers vault rescans when markdown files change on disk. It
// watches the vault tree recursively, coalesces event bursts with a debounce
// window and runs one ScanAll per quiet period.
type Watcher struct {
	scanner  *Scanner
	debounce time.Duration
	onScan   func(*ScanResult)

	watcher *fsnotify.Watcher
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewWatcher creates a watcher for the scanner's vault root. onScan may be
// nil; when set it is called after every successful rescan.
func NewWatcher(scanner *Scanner, debounce time.Duration, onScan func(*ScanResult)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		scanner:  scanner,
		debounce: debounce,
		onScan:   onScan,
	}
}

// Start begins watching the vault tree. Events are processed on a background
// goroutine until Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.watcher = watcher
	w.done = make(chan struct{})

	if err := w.addTree(w.scanner.Root()); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch vault: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.loop(loopCtx)
	return nil
}

// Stop shuts down the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		w.cancel()
		w.watcher.Close()
		<-w.done
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case <-timer.C:
			pending = false
			w.rescan(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("vault: watcher error: %v", err)

		case <-ctx.Done():
			return
		}
	}
}

// relevant reports whether an event should schedule a rescan. Directory
// creations also register the new subtree with the watcher.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				log.Printf("WARNING: vault: cannot watch new directory %s: %v", event.Name, err)
			}
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(base))
	return ext == ".md" || ext == ".markdown"
}

func (w *Watcher) rescan(ctx context.Context) {
	result, err := w.scanner.ScanAll(ctx)
	if err != nil {
		log.Printf("WARNING: vault: rescan failed: %v", err)
		return
	}
	if w.onScan != nil {
		w.onScan(result)
	}
}

// addTree registers a directory and all its non-hidden subdirectories.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}
