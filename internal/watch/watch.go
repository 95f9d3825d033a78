// Package watch notices spreadsheet edits in the data directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

// Change is a settled batch of edited spreadsheets.
type Change struct {
	Files []string
	At    time.Time
}

// Watcher watches one directory and reports spreadsheet changes once writes have been quiet
// for the debounce window. Editors save in bursts, so one save yields one Change.
type Watcher struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	dir     string
	quiet   time.Duration
	log     *zap.Logger
	pending map[string]time.Time
	changes chan Change
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New creates a watcher for dir. A quiet window of zero means 500ms.
func New(dir string, quiet time.Duration, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if quiet <= 0 {
		quiet = 500 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		fsw:     fsw,
		dir:     dir,
		quiet:   quiet,
		log:     log.Named("watch"),
		pending: make(map[string]time.Time),
		changes: make(chan Change, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Changes delivers settled batches. A batch not yet received is merged with the next one.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Start begins watching in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.log.Warn("could not create data dir", zap.String("dir", w.dir), zap.Error(err))
	}
	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("watching for spreadsheet changes", zap.String("dir", w.dir), zap.Duration("quiet", w.quiet))
	go w.run(ctx)
	return nil
}

// Stop ends the watch loop and releases the underlying watcher. It is safe to call twice.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.fsw.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.fsw.Close(); err != nil {
		w.log.Error("closing watcher", zap.Error(err))
	}
	w.log.Debug("watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.quiet / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("watch error", zap.Error(err))
		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !sheet.IsSpreadsheet(ev.Name) {
		return
	}
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	w.log.Debug("spreadsheet event", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
	w.pending[ev.Name] = time.Now()
}

// flush emits the pending files once none has changed within the quiet window.
func (w *Watcher) flush(now time.Time) {
	if len(w.pending) == 0 {
		return
	}
	for _, at := range w.pending {
		if now.Sub(at) < w.quiet {
			return
		}
	}
	files := make([]string, 0, len(w.pending))
	for f := range w.pending {
		files = append(files, f)
	}
	w.pending = make(map[string]time.Time)

	select {
	case prev := <-w.changes:
		files = mergeFiles(prev.Files, files)
	default:
	}
	sort.Strings(files)
	w.changes <- Change{Files: files, At: now}
}

func mergeFiles(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, f := range append(append([]string{}, a...), b...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
