// Package feed replays captured planner payloads from a directory.
//
// The directory holds one JSON body per collection, named after the
// collection: tasks.json, buckets.json, labels.json and
// labelassociations.json. Each file is delivered to a sink exactly as the
// interceptor would deliver the matching response, and redelivered whenever
// it is rewritten.
package feed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"plannercolors/internal/intercept"
	"plannercolors/internal/logging"
	"plannercolors/internal/model"
)

// DefaultDebounce is how long a file must stay quiet before it is reloaded.
const DefaultDebounce = 100 * time.Millisecond

// FileName returns the payload file name for a collection.
func FileName(res model.Resource) string {
	return res.String() + ".json"
}

// Stats tracks feed activity.
type Stats struct {
	Delivered int
	Rejected  int
	Errors    int
	LastPath  string
	LastEvent time.Time
}

// Dir feeds one payload directory into a sink.
type Dir struct {
	path     string
	sink     intercept.Sink
	debounce time.Duration
	seq      atomic.Uint64

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending map[model.Resource]time.Time
	stats   Stats
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a feed for path. A debounce of zero selects DefaultDebounce.
func New(path string, sink intercept.Sink, debounce time.Duration) *Dir {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Dir{
		path:     path,
		sink:     sink,
		debounce: debounce,
		pending:  make(map[model.Resource]time.Time),
	}
}

// Path returns the watched directory.
func (d *Dir) Path() string { return d.path }

// Stats returns a copy of the activity counters.
func (d *Dir) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// LoadAll delivers every collection file present in the directory and
// returns how many were applied. Missing files are skipped; decode failures
// are collected and returned together.
func (d *Dir) LoadAll() (int, error) {
	applied := 0
	var errs []error
	for _, res := range model.Resources {
		ok, err := d.Load(res)
		if errors.Is(err, os.ErrNotExist) {
			logging.Get(logging.CategoryFeed).Debug("no %s in %s", FileName(res), d.path)
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			applied++
		}
	}
	return applied, errors.Join(errs...)
}

// Load reads and delivers one collection file.
func (d *Dir) Load(res model.Resource) (bool, error) {
	file := filepath.Join(d.path, FileName(res))
	body, err := os.ReadFile(file)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", file, err)
	}

	ok, err := intercept.Dispatch(d.sink, res, d.seq.Add(1), body)

	d.mu.Lock()
	d.stats.LastPath = file
	d.stats.LastEvent = time.Now()
	switch {
	case err != nil:
		d.stats.Errors++
	case ok:
		d.stats.Delivered++
	default:
		d.stats.Rejected++
	}
	d.mu.Unlock()

	if err != nil {
		return false, fmt.Errorf("decode %s: %w", file, err)
	}
	logging.Feed("Delivered %s (%d bytes, applied=%v)", FileName(res), len(body), ok)
	return ok, nil
}

// Start begins watching the directory. It is non-blocking; changes are
// processed on a goroutine until ctx is cancelled or Stop is called.
func (d *Dir) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(d.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", d.path, err)
	}

	d.watcher = watcher
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	logging.Feed("Watching payload directory: %s", d.path)

	go d.run(ctx)
	return nil
}

// Stop ends watching and waits for the watcher goroutine to exit.
func (d *Dir) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Done is closed when the watcher goroutine has exited. It is nil before
// Start.
func (d *Dir) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doneCh
}

func (d *Dir) run(ctx context.Context) {
	d.mu.Lock()
	watcher, stopCh, doneCh := d.watcher, d.stopCh, d.doneCh
	d.mu.Unlock()

	defer close(doneCh)
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.FeedWarn("closing watcher: %v", err)
		}
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	ticker := time.NewTicker(d.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Feed("Feed stopped: %v", ctx.Err())
			return
		case <-stopCh:
			logging.Feed("Feed stopped")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			d.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.FeedWarn("watcher error: %v", err)
			d.mu.Lock()
			d.stats.Errors++
			d.mu.Unlock()
		case <-ticker.C:
			d.processSettled()
		}
	}
}

func (d *Dir) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	res, ok := resourceForFile(filepath.Base(event.Name))
	if !ok {
		return
	}
	logging.Get(logging.CategoryFeed).Debug("%s event for %s", event.Op, event.Name)

	d.mu.Lock()
	d.pending[res] = time.Now()
	d.mu.Unlock()
}

// processSettled reloads files that have been quiet for the debounce window.
func (d *Dir) processSettled() {
	d.mu.Lock()
	now := time.Now()
	var ready []model.Resource
	for res, at := range d.pending {
		if now.Sub(at) >= d.debounce {
			ready = append(ready, res)
			delete(d.pending, res)
		}
	}
	d.mu.Unlock()

	for _, res := range ready {
		if _, err := d.Load(res); err != nil {
			logging.FeedWarn("reload failed: %v", err)
		}
	}
}

func resourceForFile(name string) (model.Resource, bool) {
	for _, res := range model.Resources {
		if FileName(res) == name {
			return res, true
		}
	}
	return 0, false
}
