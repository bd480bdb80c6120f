// Package watcher picks up recordings as they land in a directory and hands
// each one to the batch processor once it has stopped growing.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/audio"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/metrics"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/processor"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/stabilizer"
)

const (
	DefaultPollInterval = time.Second
	DefaultStableWindow = 5 * time.Second
	DefaultMaxBytes     = 500 * 1024 * 1024
)

// BatchRunner processes a list of files.
type BatchRunner interface {
	RunBatch(ctx context.Context, files []audio.File, req processor.Request) (processor.Result, error)
}

// Config configures a Watcher.
type Config struct {
	Dir          string
	Request      processor.Request
	PollInterval time.Duration
	StableWindow time.Duration
	MaxBytes     int64
	// QueueSize > 0 decouples detection from processing: stable files are
	// queued and handled by Workers goroutines while polling continues.
	QueueSize int
	Workers   int
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StableWindow < 0 {
		c.StableWindow = DefaultStableWindow
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
}

// Watcher polls a directory and processes each new recording once.
type Watcher struct {
	config  Config
	runner  BatchRunner
	tracker *stabilizer.Tracker
	log     logging.Logger
	now     func() time.Time

	start time.Time
	queue chan audio.File
	wg    sync.WaitGroup

	mu     sync.Mutex
	totals processor.Result
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// New creates a Watcher.
func New(runner BatchRunner, cfg Config, opts ...Option) *Watcher {
	cfg.applyDefaults()
	w := &Watcher{
		config:  cfg,
		runner:  runner,
		tracker: stabilizer.NewTracker(cfg.StableWindow),
		log:     logging.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled and then returns processor.ErrCancelled
// once queued work has drained. Only files modified after Run starts are
// considered, so a backlog is left to the process command.
func (w *Watcher) Run(ctx context.Context) error {
	if info, err := os.Stat(w.config.Dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", audio.ErrNotADirectory, w.config.Dir)
	}

	w.Begin()
	w.log.Info("directory watcher started",
		logging.String("dir", w.config.Dir),
		logging.Duration("stable", w.config.StableWindow),
		logging.Duration("poll", w.config.PollInterval),
		logging.Int64("max_bytes", w.config.MaxBytes),
		logging.Bool("reprocess", w.config.Request.Reprocess),
		logging.Int("queue", w.config.QueueSize))

	wake := w.notify(ctx)
	if w.config.QueueSize > 0 {
		w.startWorkers(ctx)
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return processor.ErrCancelled
		case <-timer.C:
		case <-wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if err := w.Tick(ctx); err != nil {
			w.shutdown()
			return err
		}
		timer.Reset(w.config.PollInterval)
	}
}

// Begin records the admission cut-off. Run calls it; tests driving Tick
// directly call it themselves.
func (w *Watcher) Begin() {
	w.start = w.now()
}

// Tick runs one poll: list, prune, observe sizes and dispatch stable files.
func (w *Watcher) Tick(ctx context.Context) error {
	now := w.now()

	files, err := audio.Discover(w.config.Dir)
	if err != nil {
		w.log.Warn("failed to list watch directory", logging.String("error", err.Error()))
		files = nil
	}

	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.Path] = struct{}{}
	}
	for _, gone := range w.tracker.Prune(present) {
		w.log.Debug("file removed, forgetting state", logging.String("path", gone))
	}

	for _, f := range files {
		if ctx.Err() != nil {
			return processor.ErrCancelled
		}
		// Processed and oversized files stay where they are until removed.
		switch w.tracker.State(f.Path, now) {
		case stabilizer.Processed, stabilizer.SkippedTooLarge:
			continue
		}
		if !f.ModTime.After(w.start) {
			continue
		}

		if f.Size > w.config.MaxBytes {
			if w.tracker.FlagTooLarge(f.Path) {
				metrics.OversizedFilesTotal.Inc()
				w.log.Warn("skipping file, exceeds size limit",
					logging.String("file", f.Name),
					logging.Int64("size", f.Size),
					logging.Int64("max_bytes", w.config.MaxBytes))
			}
			continue
		}

		if !w.tracker.Stable(w.tracker.Observe(f.Path, f.Size, now)) {
			continue
		}

		if err := w.dispatch(ctx, f); err != nil {
			return err
		}
	}

	metrics.WatchedFiles.Set(float64(w.tracker.Len()))
	if w.queue != nil {
		metrics.WatcherQueueDepth.Set(float64(len(w.queue)))
	}
	return nil
}

// Totals returns the counts accumulated since the watcher started.
func (w *Watcher) Totals() processor.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totals
}

// dispatch hands a stable file off. It is marked processed whatever the
// outcome so a failing file is not retried every tick.
func (w *Watcher) dispatch(ctx context.Context, f audio.File) error {
	w.log.Info("detected stable file", logging.String("file", f.Name), logging.Int64("size", f.Size))

	if w.queue == nil {
		w.tracker.MarkProcessed(f.Path)
		return w.handle(ctx, f)
	}

	select {
	case w.queue <- f:
		w.tracker.MarkProcessed(f.Path)
	default:
		w.log.Debug("work queue full, retrying next tick", logging.String("file", f.Name))
	}
	return nil
}

func (w *Watcher) handle(ctx context.Context, f audio.File) error {
	res, err := w.runner.RunBatch(ctx, []audio.File{f}, w.config.Request)

	w.mu.Lock()
	w.totals.Add(res)
	w.mu.Unlock()

	if err != nil {
		if errors.Is(err, processor.ErrCancelled) {
			return err
		}
		w.log.Error("failed to handle file", err, logging.String("file", f.Name))
		return nil
	}

	w.log.Info("completed file",
		logging.String("file", f.Name),
		logging.Int("processed", res.Processed),
		logging.Int("skipped", res.Skipped),
		logging.Int("failed", res.Failed))
	return nil
}

func (w *Watcher) startWorkers(ctx context.Context) {
	w.queue = make(chan audio.File, w.config.QueueSize)
	for i := 0; i < w.config.Workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for f := range w.queue {
				if ctx.Err() != nil {
					continue
				}
				w.handle(ctx, f)
				metrics.WatcherQueueDepth.Set(float64(len(w.queue)))
			}
		}()
	}
}

func (w *Watcher) shutdown() {
	if w.queue != nil {
		close(w.queue)
		w.wg.Wait()
		w.queue = nil
	}
	t := w.Totals()
	w.log.Info("directory watcher stopped",
		logging.Int("processed", t.Processed),
		logging.Int("skipped", t.Skipped),
		logging.Int("failed", t.Failed))
}

// notify returns a channel that fires when files are created or renamed
// into the directory, so new recordings are observed before the next tick.
// Stability itself is still measured by polling. If fsnotify is
// unavailable the channel never fires.
func (w *Watcher) notify(ctx context.Context) <-chan struct{} {
	wake := make(chan struct{}, 1)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("fsnotify unavailable, polling only", logging.String("error", err.Error()))
		return wake
	}
	if err := fw.Add(w.config.Dir); err != nil {
		fw.Close()
		w.log.Warn("fsnotify unavailable, polling only", logging.String("error", err.Error()))
		return wake
	}

	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 || !audio.IsSupported(ev.Name) {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.log.Warn("fsnotify error", logging.String("error", err.Error()))
			}
		}
	}()

	return wake
}
