// Package watch triggers processing as input files land in a directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/suykerbuyk/logsift/internal/discover"
)

// DefaultDebounce is the quiet period after the last write before a file is handled.
const DefaultDebounce = 500 * time.Millisecond

// HandleFunc processes one settled input file.
type HandleFunc func(ctx context.Context, path string)

// Watcher calls Handle for each matching file created or written in Dir,
// once writes to it have been quiet for Debounce.
type Watcher struct {
	Dir      string
	Patterns []string
	Debounce time.Duration
	Handle   HandleFunc
	Log      *slog.Logger

	// Ready, when set, is closed once the directory is being watched.
	Ready chan struct{}
}

// Run watches until ctx is done. Handle is called from Run's goroutine, so
// files are handled one at a time in settle order.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.Log
	if log == nil {
		log = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}
	log.Info("watching", "dir", w.Dir, "patterns", w.Patterns)
	if w.Ready != nil {
		close(w.Ready)
	}

	d := newDebouncer(debounce, ctx.Done())
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !discover.Match(filepath.Base(ev.Name), w.Patterns) {
				continue
			}
			d.touch(ev.Name)

		case s := <-d.settled:
			if !d.accept(s) {
				continue
			}
			info, err := os.Stat(s.path)
			if err != nil || !info.Mode().IsRegular() {
				continue // removed or replaced before it settled
			}
			log.Debug("file settled", "path", s.path)
			w.Handle(ctx, s.path)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)
		}
	}
}

type settle struct {
	path string
	gen  uint64
}

type pending struct {
	timer *time.Timer
	gen   uint64
}

// debouncer delivers a path on settled once it has been quiet for delay.
// Every touch starts a new generation; only the latest generation of a path
// is accepted, so a timer that fired before a later touch is ignored.
type debouncer struct {
	delay   time.Duration
	done    <-chan struct{}
	settled chan settle
	pending map[string]pending
	gen     uint64
}

func newDebouncer(delay time.Duration, done <-chan struct{}) *debouncer {
	return &debouncer{
		delay:   delay,
		done:    done,
		settled: make(chan settle, 64),
		pending: make(map[string]pending),
	}
}

func (d *debouncer) touch(path string) {
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
	}
	d.gen++
	s := settle{path: path, gen: d.gen}
	d.pending[path] = pending{
		gen: s.gen,
		timer: time.AfterFunc(d.delay, func() {
			select {
			case d.settled <- s:
			case <-d.done:
			}
		}),
	}
}

// accept reports whether s is the latest generation for its path and, if so,
// forgets the path.
func (d *debouncer) accept(s settle) bool {
	p, ok := d.pending[s.path]
	if !ok || p.gen != s.gen {
		return false
	}
	delete(d.pending, s.path)
	return true
}

func (d *debouncer) stop() {
	for _, p := range d.pending {
		p.timer.Stop()
	}
}
