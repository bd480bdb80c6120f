package calendar

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
)

// Config controls event matching.
type Config struct {
	// Tolerance is the half-width of the search window around the file mtime.
	Tolerance time.Duration
	// MaxResults caps the number of events fetched per file.
	MaxResults int
	// GroupEventsOnly drops events with fewer than two attendees.
	GroupEventsOnly bool
}

// Linker matches audio files to calendar events.
type Linker struct {
	source  EventSource
	chooser EventChooser
	cfg     Config
	log     logging.Logger
}

// NewLinker creates a Linker. A nil chooser picks the closest event
// automatically.
func NewLinker(source EventSource, chooser EventChooser, cfg Config, log logging.Logger) *Linker {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 30 * time.Minute
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Linker{source: source, chooser: chooser, cfg: cfg, log: log}
}

// MatchFile links the file at path using its modification time. Source
// failures are logged and reported as NoMatch.
func (l *Linker) MatchFile(ctx context.Context, path string) Match {
	info, err := os.Stat(path)
	if err != nil {
		l.log.Warn("cannot stat file for calendar match", logging.String("file", path), logging.String("error", err.Error()))
		return Match{}
	}
	return l.MatchAt(ctx, filepath.Base(path), info.ModTime().Local())
}

// MatchAt links a recording named name that finished at t.
func (l *Linker) MatchAt(ctx context.Context, name string, t time.Time) Match {
	events, err := l.source.ListEvents(ctx, t.Add(-l.cfg.Tolerance), t.Add(l.cfg.Tolerance), l.cfg.MaxResults)
	if err != nil {
		l.log.Warn("failed to match file to calendar event", logging.String("file", name), logging.String("error", err.Error()))
		return Match{}
	}

	var valid []Event
	for _, ev := range events {
		if ev.Start.IsZero() {
			continue
		}
		if l.cfg.GroupEventsOnly && len(ev.Attendees) < 2 {
			continue
		}
		// Recordings are linked to meetings that had already started.
		if !ev.Start.Before(t) {
			l.log.Debug("skipping event that starts after file", logging.String("event", ev.Title), logging.String("file", name))
			continue
		}
		valid = append(valid, ev)
	}

	if len(valid) == 0 {
		l.log.Debug("no calendar events in window", logging.String("file", name))
		return Match{}
	}

	if l.chooser != nil {
		return l.choose(name, t, valid)
	}

	best := valid[0]
	bestDist := Distance(t, best)
	for _, ev := range valid[1:] {
		if d := Distance(t, ev); d < bestDist {
			best, bestDist = ev, d
		}
	}

	l.log.Info("matched file to calendar event",
		logging.String("file", name),
		logging.String("event", best.Title),
		logging.Duration("distance", bestDist))
	return MatchedEvent(best, bestDist)
}

func (l *Linker) choose(name string, t time.Time, valid []Event) Match {
	choice, err := l.chooser.ChooseEvent(name, valid)
	if err != nil || choice <= 0 || choice > len(valid) {
		l.log.Info("calendar event selection cancelled", logging.String("file", name))
		return Match{Outcome: Cancelled}
	}

	ev := valid[choice-1]
	l.log.Info("operator selected calendar event", logging.String("file", name), logging.String("event", ev.Title))
	return MatchedEvent(ev, Distance(t, ev))
}

// Distance is zero when t falls inside the event, otherwise the gap to
// the nearest edge.
func Distance(t time.Time, ev Event) time.Duration {
	end := ev.End
	if end.IsZero() {
		end = ev.Start
	}
	switch {
	case !t.Before(ev.Start) && !t.After(end):
		return 0
	case t.Before(ev.Start):
		return ev.Start.Sub(t)
	default:
		return t.Sub(end)
	}
}
