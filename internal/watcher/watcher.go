// Package watcher re-runs a callback when the record files of a directory
// source change.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is the quiet period after the last event before onChange fires.
const DefaultDebounce = 250 * time.Millisecond

// Config controls which events trigger a callback.
type Config struct {
	Logger   *zerolog.Logger
	Debounce time.Duration
	// Pattern is a filepath.Match pattern applied to file base names ("*.json").
	// Empty matches everything.
	Pattern string
	// Ignore lists base name patterns that never trigger a callback.
	Ignore []string
}

// Watcher monitors a directory and calls onChange once per burst of
// create, write, remove or rename events on matching files.
type Watcher struct {
	root     string
	cfg      Config
	onChange func()
	logger   *zerolog.Logger
	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	inflight sync.WaitGroup // armed or running onChange callbacks
	mu       sync.Mutex
	running  bool
}

// New creates a Watcher for root. The watcher stops when ctx is cancelled or
// Stop is called.
func New(ctx context.Context, root string, onChange func(), cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &log.Logger
	}

	wctx, cancel := context.WithCancel(ctx)
	return &Watcher{
		root:     filepath.Clean(root),
		cfg:      cfg,
		onChange: onChange,
		logger:   logger,
		watcher:  fsw,
		ctx:      wctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It fails if root is not an existing directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", w.root)
	}
	if err := w.watcher.Add(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	w.running = true
	go w.watchLoop()
	w.logger.Info().Str("path", w.root).Str("pattern", w.cfg.Pattern).Msg("Watching for changes")
	return nil
}

// Stop stops the watcher and waits for the event loop and any running
// onChange callback to return. onChange must not call Stop.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cancel()
	if !w.running {
		return nil
	}
	w.running = false
	err := w.watcher.Close()
	<-w.done
	w.inflight.Wait()
	return err
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// relevant reports whether an event should (re)arm the debounce timer.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	path := filepath.Clean(event.Name)
	if filepath.Dir(path) != w.root {
		return false
	}
	name := filepath.Base(path)
	for _, pattern := range w.cfg.Ignore {
		if ok, _ := filepath.Match(pattern, name); ok {
			return false
		}
	}
	if w.cfg.Pattern == "" {
		return true
	}
	ok, _ := filepath.Match(w.cfg.Pattern, name)
	return ok
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	// Every armed timer holds one inflight slot, released either by fire or
	// by a Stop that prevented it from firing.
	var debounceTimer *time.Timer
	disarm := func() {
		if debounceTimer != nil && debounceTimer.Stop() {
			w.inflight.Done()
		}
	}
	defer disarm()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == w.root && event.Has(fsnotify.Remove) {
				w.logger.Warn().Str("path", w.root).Msg("Watched directory removed")
				continue
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Source changed")
			disarm()
			w.inflight.Add(1)
			debounceTimer = time.AfterFunc(w.cfg.Debounce, w.fire)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) fire() {
	defer w.inflight.Done()
	if w.ctx.Err() != nil || w.onChange == nil {
		return
	}
	w.onChange()
}
