package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/audio"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/metrics"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/notes"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/output"
)

// ErrCancelled is returned by RunBatch when the context is cancelled
// before every file was handled.
var ErrCancelled = errors.New("processing cancelled")

// Request describes one batch run.
type Request struct {
	OutputDir string
	Reprocess bool
	Modes     Modes
}

// Result counts what a batch did. Failed files are included in Processed:
// they still produced a placeholder transcript.
type Result struct {
	Processed int
	Skipped   int
	Failed    int
}

// Total is the number of files accounted for.
func (r Result) Total() int {
	return r.Processed + r.Skipped
}

// Add merges another result into r.
func (r *Result) Add(o Result) {
	r.Processed += o.Processed
	r.Skipped += o.Skipped
	r.Failed += o.Failed
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeProcessed
	outcomeFailed
	outcomeCancelled
)

func (o outcome) String() string {
	switch o {
	case outcomeProcessed:
		return metrics.OutcomeProcessed
	case outcomeFailed:
		return metrics.OutcomeFailed
	case outcomeCancelled:
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeSkipped
	}
}

// Processor runs the per-file state machine over a batch.
type Processor struct {
	transcriber Transcriber
	notes       NotesGenerator
	linker      CalendarLinker
	archiver    Archiver
	log         logging.Logger
	opts        options

	claims *claims
}

type options struct {
	Ext     string
	Workers int
}

// Option configures a Processor.
type Option func(*Processor)

// WithNotes enables mode artifacts.
func WithNotes(n NotesGenerator) Option {
	return func(p *Processor) { p.notes = n }
}

// WithCalendar enables calendar-based naming and metadata.
func WithCalendar(l CalendarLinker) Option {
	return func(p *Processor) { p.linker = l }
}

// WithArchiver moves recordings away after a successful transcription.
func WithArchiver(a Archiver) Option {
	return func(p *Processor) { p.archiver = a }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Processor) { p.log = l }
}

// WithExt sets the artifact extension (default "md").
func WithExt(ext string) Option {
	return func(p *Processor) { p.opts.Ext = output.NormalizeExt(ext) }
}

// WithWorkers bounds how many files are handled at once (default 1).
func WithWorkers(n int) Option {
	return func(p *Processor) { p.opts.Workers = n }
}

// New creates a Processor around a Transcriber.
func New(t Transcriber, opts ...Option) *Processor {
	p := &Processor{
		transcriber: t,
		log:         logging.Nop(),
		opts:        options{Ext: output.DefaultExt, Workers: 1},
		claims:      newClaims(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.opts.Workers < 1 {
		p.opts.Workers = 1
	}
	return p
}

// Ext returns the configured artifact extension.
func (p *Processor) Ext() string {
	return p.opts.Ext
}

// RunBatch handles files in order, or with up to Workers at once.
// A file-level failure never stops the batch; cancellation does, and is
// reported as ErrCancelled together with the counts so far.
func (p *Processor) RunBatch(ctx context.Context, files []audio.File, req Request) (Result, error) {
	var processed, skipped, failed atomic.Int64
	var interrupted atomic.Bool

	record := func(o outcome) {
		switch o {
		case outcomeCancelled:
			interrupted.Store(true)
		case outcomeProcessed:
			processed.Add(1)
		case outcomeFailed:
			processed.Add(1)
			failed.Add(1)
		case outcomeSkipped:
			skipped.Add(1)
		}
		metrics.FilesTotal.WithLabelValues(o.String()).Inc()
	}

	if p.opts.Workers == 1 {
		for _, f := range files {
			if ctx.Err() != nil {
				interrupted.Store(true)
				break
			}
			record(p.handleFile(ctx, f, req))
		}
	} else {
		sem := newSemaphore(p.opts.Workers)
		var wg sync.WaitGroup
		for _, f := range files {
			if err := sem.acquire(ctx); err != nil {
				interrupted.Store(true)
				break
			}
			wg.Add(1)
			go func(f audio.File) {
				defer wg.Done()
				defer sem.release()
				record(p.handleFile(ctx, f, req))
			}(f)
		}
		wg.Wait()
	}

	res := Result{
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	if interrupted.Load() {
		return res, ErrCancelled
	}
	return res, nil
}

func (p *Processor) handleFile(ctx context.Context, f audio.File, req Request) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic while processing file", fmt.Errorf("%v", r), logging.String("file", f.Name))
			result = outcomeFailed
		}
	}()

	l := p.link(ctx, f)
	t, release, err := p.claims.claim(func() (Target, error) {
		return p.place(f, req.OutputDir, l)
	})
	if err != nil {
		p.log.Error("failed to resolve output path", err, logging.String("file", f.Name))
		return outcomeFailed
	}
	defer release()

	if t.Cancelled {
		p.log.Info("skipping file, calendar selection declined", logging.String("file", f.Name))
		return outcomeSkipped
	}

	modes := req.Modes.Resolve(f)
	o := p.processSafely(ctx, f, t, modes, req.Reprocess)

	p.log.Debug("file handled",
		logging.String("file", f.Name),
		logging.String("target", t.Path),
		logging.String("outcome", o.String()))
	return o
}

// processSafely runs process with the claim on t held. A panic is turned
// into a placeholder transcript so the file still shows up as attempted.
func (p *Processor) processSafely(ctx context.Context, f audio.File, t Target, modes notes.ModeSet, reprocess bool) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			p.log.Error("panic while processing file", err, logging.String("file", f.Name))
			if !output.Exists(t.Path) {
				content := output.Prepend(t.Metadata, Placeholder(f, err))
				if werr := output.Write(context.WithoutCancel(ctx), t.Path, content); werr != nil {
					p.log.Error("failed to write placeholder", werr, logging.String("file", f.Name), logging.String("output", t.Path))
				}
			}
			result = outcomeFailed
		}
	}()
	return p.process(ctx, f, t, modes, reprocess)
}

// process is the per-file state machine over the existing artifacts.
func (p *Processor) process(ctx context.Context, f audio.File, t Target, modes notes.ModeSet, reprocess bool) outcome {
	stem := output.StemOf(t.Path)
	baseDir := filepath.Dir(t.Path)

	if output.Exists(t.Path) {
		if !reprocess {
			return p.fillMissingModes(ctx, f, t, modes, stem, baseDir)
		}
		if content, err := output.ReadText(t.Path); err == nil && IsPlaceholder(f, content) {
			p.log.Info("retrying failed transcription", logging.String("file", f.Name), logging.String("output", t.Path))
			return p.transcribe(ctx, f, t, modes, stem, baseDir, true)
		}
		return p.regenerateModes(ctx, f, t, modes, stem, baseDir)
	}

	if !reprocess && t.LegacyPath != "" && t.LegacyPath != t.Path && output.Exists(t.LegacyPath) {
		return p.migrate(ctx, f, t, modes, stem, baseDir)
	}

	return p.transcribe(ctx, f, t, modes, stem, baseDir, reprocess)
}

// fillMissingModes generates only the mode artifacts that are absent.
func (p *Processor) fillMissingModes(ctx context.Context, f audio.File, t Target, modes notes.ModeSet, stem, baseDir string) outcome {
	missing := p.missingModes(modes, stem, baseDir)
	if len(missing) == 0 {
		p.log.Info("skipping file, output already exists", logging.String("file", f.Name), logging.String("output", t.Path))
		return outcomeSkipped
	}

	content, err := output.ReadText(t.Path)
	if err != nil {
		p.log.Error("failed to read existing transcript", err, logging.String("file", f.Name), logging.String("output", t.Path))
		return outcomeFailed
	}

	metrics.BranchTotal.WithLabelValues("notes").Inc()
	p.log.Info("generating missing notes", logging.String("file", f.Name), logging.String("modes", missing.String()))
	p.generate(ctx, content, missing, stem, baseDir, false)
	return outcomeProcessed
}

// regenerateModes rebuilds every requested mode from the existing
// transcript without calling the transcriber.
func (p *Processor) regenerateModes(ctx context.Context, f audio.File, t Target, modes notes.ModeSet, stem, baseDir string) outcome {
	content, err := output.ReadText(t.Path)
	if err != nil {
		p.log.Error("failed to read existing transcript", err, logging.String("file", f.Name), logging.String("output", t.Path))
		return outcomeFailed
	}

	metrics.BranchTotal.WithLabelValues("regenerate").Inc()
	p.log.Info("regenerating notes from existing transcript", logging.String("file", f.Name), logging.String("modes", modes.String()))
	p.generate(ctx, content, modes, stem, baseDir, true)
	return outcomeProcessed
}

// migrate moves a plain-named transcript onto its calendar name.
func (p *Processor) migrate(ctx context.Context, f audio.File, t Target, modes notes.ModeSet, stem, baseDir string) outcome {
	legacy, err := output.ReadText(t.LegacyPath)
	if err != nil {
		p.log.Error("failed to read legacy transcript", err, logging.String("file", f.Name), logging.String("legacy", t.LegacyPath))
		return outcomeFailed
	}

	content := output.Prepend(t.Metadata, legacy)
	if err := output.Write(context.WithoutCancel(ctx), t.Path, content); err != nil {
		p.log.Error("failed to write migrated transcript", err, logging.String("file", f.Name), logging.String("output", t.Path))
		return outcomeFailed
	}
	if err := os.Remove(t.LegacyPath); err != nil {
		p.log.Warn("failed to remove legacy transcript", logging.String("legacy", t.LegacyPath), logging.String("error", err.Error()))
	}
	p.moveLegacyModes(modes, output.StemOf(t.LegacyPath), filepath.Dir(t.LegacyPath), stem, baseDir)

	metrics.BranchTotal.WithLabelValues("migrate").Inc()
	p.log.Info("migrated transcript to calendar name",
		logging.String("file", f.Name),
		logging.String("from", t.LegacyPath),
		logging.String("to", t.Path))

	p.generate(ctx, content, modes, stem, baseDir, false)
	return outcomeProcessed
}

// transcribe calls the transcriber and writes the result. A failure is
// written as a placeholder so the file shows up as attempted. reprocess
// overwrites mode artifacts left from an earlier attempt.
func (p *Processor) transcribe(ctx context.Context, f audio.File, t Target, modes notes.ModeSet, stem, baseDir string, reprocess bool) outcome {
	metrics.BranchTotal.WithLabelValues("transcribe").Inc()
	p.log.Info("transcribing", logging.String("file", f.Name), logging.Int64("size", f.Size))

	start := time.Now()
	text, err := p.transcriber.Transcribe(ctx, f.Path)
	metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())

	failed := false
	if err != nil {
		if ctx.Err() != nil {
			p.log.Info("transcription interrupted", logging.String("file", f.Name))
			return outcomeCancelled
		}
		p.log.Error("transcription failed", err, logging.String("file", f.Name))
		text = Placeholder(f, err)
		failed = true
	}

	content := output.Prepend(t.Metadata, text)
	if err := output.Write(context.WithoutCancel(ctx), t.Path, content); err != nil {
		p.log.Error("failed to write transcript", err, logging.String("file", f.Name), logging.String("output", t.Path))
		return outcomeFailed
	}
	p.log.Info("transcript saved",
		logging.String("file", f.Name),
		logging.String("output", t.Path),
		logging.Duration("elapsed", time.Since(start).Round(time.Millisecond)))

	p.generate(ctx, content, modes, stem, baseDir, reprocess)

	if failed {
		return outcomeFailed
	}

	if p.archiver != nil {
		dest, err := p.archiver.Archive(ctx, f.Path)
		if err != nil {
			p.log.Error("failed to archive recording", err, logging.String("file", f.Name))
		} else {
			p.log.Info("recording archived", logging.String("file", f.Name), logging.String("archive", dest))
		}
	}
	return outcomeProcessed
}

func (p *Processor) missingModes(modes notes.ModeSet, stem, baseDir string) notes.ModeSet {
	missing := notes.ModeSet{}
	if p.notes == nil {
		return missing
	}
	for _, m := range modes.Sorted() {
		if !output.Exists(p.notes.ArtifactPath(m, stem, baseDir)) {
			missing[m] = struct{}{}
		}
	}
	return missing
}

func (p *Processor) generate(ctx context.Context, content string, modes notes.ModeSet, stem, baseDir string, reprocess bool) {
	if p.notes == nil || len(modes) == 0 || ctx.Err() != nil {
		return
	}

	written := p.notes.GenerateForModes(ctx, content, modes, stem, baseDir, reprocess)
	for _, m := range modes.Sorted() {
		result := "ok"
		if _, ok := written[m]; !ok {
			result = "failed"
		}
		metrics.ModeArtifactsTotal.WithLabelValues(string(m), result).Inc()
	}
}

// moveLegacyModes renames mode artifacts written under the old stem so
// finished notes follow the transcript instead of being regenerated.
func (p *Processor) moveLegacyModes(modes notes.ModeSet, oldStem, oldDir, newStem, newDir string) {
	if p.notes == nil {
		return
	}
	for _, m := range modes.Sorted() {
		from := p.notes.ArtifactPath(m, oldStem, oldDir)
		to := p.notes.ArtifactPath(m, newStem, newDir)
		if from == to || !output.Exists(from) || output.Exists(to) {
			continue
		}
		if err := os.Rename(from, to); err != nil {
			p.log.Warn("failed to move legacy notes", logging.String("from", from), logging.String("error", err.Error()))
		}
	}
}

// Placeholder is the transcript written when transcription fails.
func Placeholder(f audio.File, err error) string {
	return fmt.Sprintf("%s\n\nReason: %v\n", placeholderHeader(f), err)
}

// IsPlaceholder reports whether content is a failure placeholder for f,
// with or without a metadata block in front.
func IsPlaceholder(f audio.File, content string) bool {
	header := placeholderHeader(f)
	for _, line := range strings.Split(content, "\n") {
		if line == header {
			return true
		}
	}
	return false
}

func placeholderHeader(f audio.File) string {
	return fmt.Sprintf("Error: Could not process %s.", f.Name)
}
