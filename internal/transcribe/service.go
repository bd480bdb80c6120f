package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/archive"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/audio"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/calendar"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/client"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/metrics"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/notes"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/pidfile"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/processor"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/watcher"
)

// LogPrefix names the daily log files.
const LogPrefix = "meetscribe"

// Service wires configuration to the processor and watcher.
type Service struct {
	config    *Config
	logger    *logging.FileLogger
	processor *processor.Processor
	pid       *pidfile.File

	notesEnabled    bool
	calendarEnabled bool
}

type serviceOptions struct {
	transcriber processor.Transcriber
	completer   notes.Completer
	source      calendar.EventSource
	chooser     calendar.EventChooser
	console     io.Writer
	pid         *pidfile.File
}

// ServiceOption configures NewService.
type ServiceOption func(*serviceOptions)

// WithTranscriber replaces the Whisper client.
func WithTranscriber(t processor.Transcriber) ServiceOption {
	return func(o *serviceOptions) { o.transcriber = t }
}

// WithCompleter replaces the Gemini client.
func WithCompleter(c notes.Completer) ServiceOption {
	return func(o *serviceOptions) { o.completer = c }
}

// WithEventSource replaces the Google Calendar client.
func WithEventSource(s calendar.EventSource) ServiceOption {
	return func(o *serviceOptions) { o.source = s }
}

// WithEventChooser is used when calendar.select_interactively is set.
func WithEventChooser(c calendar.EventChooser) ServiceOption {
	return func(o *serviceOptions) { o.chooser = c }
}

// WithConsole mirrors log output to w in a human-readable form.
func WithConsole(w io.Writer) ServiceOption {
	return func(o *serviceOptions) { o.console = w }
}

// WithPIDFile makes Watch hold pf while it runs.
func WithPIDFile(pf *pidfile.File) ServiceOption {
	return func(o *serviceOptions) { o.pid = pf }
}

// NewService validates cfg and builds every enabled collaborator.
// Notes are enabled when API keys are configured, calendar linking when
// calendar.enabled is set and a client can be created.
func NewService(ctx context.Context, cfg *Config, opts ...ServiceOption) (*Service, error) {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg, o.console)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	s := &Service{config: cfg, logger: logger, pid: o.pid}

	transcriber := o.transcriber
	if transcriber == nil {
		transcriber = newWhisperTranscriber(cfg, logger.WithComponent("whisper"))
	}

	popts := []processor.Option{
		processor.WithLogger(logger.WithComponent("processor")),
		processor.WithExt(cfg.Processing.OutputExt),
		processor.WithWorkers(cfg.Processing.Workers),
	}

	if gen, err := s.newGenerator(o.completer); err != nil {
		logger.Warn("notes disabled", logging.String("error", err.Error()))
	} else {
		popts = append(popts, processor.WithNotes(gen))
		s.notesEnabled = true
	}

	if cfg.Calendar.Enabled {
		if linker, err := s.newLinker(ctx, o.source, o.chooser); err != nil {
			logger.Warn("calendar linking disabled", logging.String("error", err.Error()))
		} else {
			popts = append(popts, processor.WithCalendar(linker))
			s.calendarEnabled = true
		}
	}

	if cfg.Paths.ArchiveDir != "" {
		popts = append(popts, processor.WithArchiver(archive.NewFileArchiver(cfg.Paths.ArchiveDir)))
	}

	s.processor = processor.New(transcriber, popts...)
	return s, nil
}

func newLogger(cfg *Config, console io.Writer) (*logging.FileLogger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig().WithMinLevel(level)
	if cfg.Logging.Dir != "" {
		lc.LogDir = cfg.Logging.Dir
	}
	lc.Prefix = LogPrefix
	lc.RetentionDays = cfg.Logging.RetentionDays
	lc.Component = "service"
	lc.Console = console
	return logging.New(lc)
}

func newWhisperTranscriber(cfg *Config, log logging.Logger) *client.Transcriber {
	asr := client.NewWhisperASRClient(cfg.Whisper.URL,
		client.WithTimeout(cfg.WhisperTimeout()),
		client.WithOutputFormat(client.ParseOutputFormat(cfg.Whisper.OutputFormat)))
	retry := client.NewRetryClient(asr,
		client.WithRetryCount(cfg.Whisper.Retries),
		client.WithLogger(log))
	return client.NewTranscriber(retry, client.TranscribeOptions{Language: cfg.Whisper.Language})
}

func (s *Service) newGenerator(c notes.Completer) (*notes.Generator, error) {
	if c == nil {
		gc, err := notes.NewGeminiCompleter(notes.GeminiConfig{
			APIKeys:     s.config.Notes.APIKeys,
			Model:       s.config.Notes.Model,
			Temperature: s.config.Notes.Temperature,
		}, s.logger.WithComponent("gemini"))
		if err != nil {
			return nil, err
		}
		c = gc
	}

	return notes.NewGenerator(c, notes.Config{
		Prompts:    s.config.NotesPrompts(),
		OutputDirs: s.config.NotesOutputDirs(),
		Ext:        s.config.Processing.OutputExt,
		Docx:       s.config.Notes.Docx,
	}, s.logger.WithComponent("notes")), nil
}

func (s *Service) newLinker(ctx context.Context, source calendar.EventSource, chooser calendar.EventChooser) (*calendar.Linker, error) {
	cc := s.config.Calendar
	if source == nil {
		gs, err := calendar.NewGoogleSource(ctx, calendar.GoogleConfig{
			CredentialsFile: cc.CredentialsFile,
			TokenFile:       cc.TokenFile,
			CalendarID:      cc.CalendarID,
		})
		if err != nil {
			return nil, err
		}
		source = gs
	}
	if !cc.SelectInteractively {
		chooser = nil
	}
	return calendar.NewLinker(source, chooser, calendar.Config{
		Tolerance:       s.config.MatchTolerance(),
		MaxResults:      cc.MaxResults,
		GroupEventsOnly: cc.GroupEventsOnly,
	}, s.logger.WithComponent("calendar")), nil
}

// Logger returns the service logger.
func (s *Service) Logger() logging.Logger {
	return s.logger
}

// LogPath is the file currently being written.
func (s *Service) LogPath() string {
	return s.logger.LogPath()
}

// NotesEnabled reports whether mode artifacts can be generated.
func (s *Service) NotesEnabled() bool {
	return s.notesEnabled
}

// CalendarEnabled reports whether calendar linking is active.
func (s *Service) CalendarEnabled() bool {
	return s.calendarEnabled
}

// Candidates lists recordings in the input folder that still need work.
// override replaces paths.input_dir when non-empty.
func (s *Service) Candidates(override string, reprocess bool) (string, []audio.File, error) {
	dir, err := processor.ResolveInputDir(override, s.config.Paths.InputDir)
	if err != nil {
		return "", nil, err
	}
	files, err := audio.Discover(dir)
	if err != nil {
		return dir, nil, err
	}
	outputDir := processor.ExpandHome(s.config.Paths.OutputDir)
	return dir, processor.FilesToProcess(files, reprocess, outputDir, s.processor.Ext(), s.logger), nil
}

// Decide applies the configured soft and hard limits to count.
func (s *Service) Decide(count int) processor.Decision {
	return processor.Decide(count, s.config.Processing.SoftLimit, s.config.Processing.HardLimit)
}

// Process runs one batch over files.
func (s *Service) Process(ctx context.Context, files []audio.File, modes processor.Modes, reprocess bool) (processor.Result, error) {
	outputDir, err := processor.EnsureOutputDir(s.config.Paths.OutputDir)
	if err != nil {
		return processor.Result{}, err
	}

	s.logger.Info("batch started",
		logging.Int("files", len(files)),
		logging.String("output_dir", outputDir),
		logging.Bool("reprocess", reprocess))

	res, err := s.processor.RunBatch(ctx, files, processor.Request{
		OutputDir: outputDir,
		Reprocess: reprocess,
		Modes:     modes,
	})

	s.logger.Info("batch finished",
		logging.Int("processed", res.Processed),
		logging.Int("skipped", res.Skipped),
		logging.Int("failed", res.Failed),
		logging.Bool("cancelled", errors.Is(err, processor.ErrCancelled)))
	return res, err
}

// Watch processes new recordings until ctx is cancelled. When a pidfile is
// configured it is held for the duration. A metrics endpoint is served if
// metrics.listen is set.
func (s *Service) Watch(ctx context.Context, override string, modes notes.ModeSet) (processor.Result, error) {
	dir, err := processor.ResolveInputDir(override, s.config.Paths.InputDir)
	if err != nil {
		return processor.Result{}, err
	}
	outputDir, err := processor.EnsureOutputDir(s.config.Paths.OutputDir)
	if err != nil {
		return processor.Result{}, err
	}

	if s.pid != nil {
		if err := s.pid.Acquire(); err != nil {
			return processor.Result{}, err
		}
		defer s.pid.Remove()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if addr := s.config.Metrics.Listen; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("serving metrics", logging.String("addr", addr))
			if err := metrics.Serve(ctx, addr); err != nil {
				s.logger.Error("metrics server failed", err, logging.String("addr", addr))
			}
		}()
	}

	w := watcher.New(s.processor, watcher.Config{
		Dir: dir,
		Request: processor.Request{
			OutputDir: outputDir,
			Reprocess: s.config.Processing.Reprocess,
			Modes:     processor.GlobalModes(modes),
		},
		PollInterval: s.config.PollInterval(),
		StableWindow: s.config.StableWindow(),
		MaxBytes:     s.config.MaxBytes(),
		QueueSize:    s.config.Processing.QueueSize,
		Workers:      s.config.Processing.Workers,
	}, watcher.WithLogger(s.logger.WithComponent("watcher")))

	err = w.Run(ctx)
	cancel()
	wg.Wait()
	return w.Totals(), err
}

// Close flushes and closes the log file.
func (s *Service) Close() error {
	return s.logger.Close()
}
