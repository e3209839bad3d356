// Package watcher uploads PDF files as they appear in a directory tree.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"

	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
)

// UploadFunc handles one settled file. Returning a fatal error stops Run.
type UploadFunc func(ctx context.Context, path string) error

// Watcher watches a directory recursively and hands every new or rewritten
// PDF to an UploadFunc once the file has stopped changing for the debounce
// period. Uploads run one at a time on the Run goroutine.
type Watcher struct {
	dir      string
	debounce time.Duration
	upload   UploadFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must be quiet before it is uploaded.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a Watcher for dir.
func New(dir string, upload UploadFunc, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("directory", dir)
		}
		return nil, errors.WrapIO("stat", dir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError("dir", dir, "not a directory")
	}
	if upload == nil {
		return nil, errors.NewValidationError("upload", nil, "upload function is required")
	}

	w := &Watcher{
		dir:      dir,
		debounce: constants.WatchDebounce,
		upload:   upload,
		pending:  make(map[string]*time.Timer),
		ready:    make(chan string, 64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is done or an upload fails fatally.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapResource("create", "watcher", w.dir, err)
	}
	defer fsw.Close()
	defer w.stopTimers()

	if err := w.addTree(fsw, w.dir); err != nil {
		return err
	}

	logger := logging.Ctx(ctx).With().Str("dir", w.dir).Logger()
	logger.Info().Dur("debounce", w.debounce).Msg("Watching for new files")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Watcher error")

		case path := <-w.ready:
			if err := w.upload(ctx, path); err != nil {
				if errors.IsFatal(err) {
					return err
				}
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn().Err(err).Str("file", path).Msg("Upload of watched file failed")
			}
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fsw, event.Name); err != nil {
				logging.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
			return
		}
	}

	if strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
		w.schedule(event.Name)
	}
}

// schedule (re)starts the quiet period of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ready <- path
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// addTree watches root and every directory below it. PDFs already present
// in a newly created directory are scheduled too.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	isNew := root != w.dir
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if err := fsw.Add(path); err != nil {
					return errors.WrapResource("watch", "directory", path, err)
				}
				return nil
			}
			if isNew && de.IsRegular() && strings.EqualFold(filepath.Ext(path), ".pdf") {
				w.schedule(path)
			}
			return nil
		},
	})
	if err != nil {
		return errors.WrapIO("walk", root, err)
	}
	return nil
}
