package processor

import (
	"context"
	"strings"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/audio"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/calendar"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/output"
)

// Target is where a file's transcript goes.
type Target struct {
	// Path is the primary transcript path.
	Path string
	// Metadata is prepended to the transcript. Empty without a calendar match.
	Metadata string
	// LegacyPath is the plain {stem}.{ext} path an earlier run may have written.
	// Empty when no calendar linker is configured.
	LegacyPath string
	// Cancelled means the operator declined to link; the file must be left alone.
	Cancelled bool
}

// link is the calendar half of target resolution. It is computed once per
// file so a retried placement never re-prompts the operator.
type link struct {
	stem      string
	metadata  string
	cancelled bool
}

// ResolveTarget computes the transcript path for f in outputDir.
func (p *Processor) ResolveTarget(ctx context.Context, f audio.File, outputDir string) (Target, error) {
	return p.place(f, outputDir, p.link(ctx, f))
}

func (p *Processor) link(ctx context.Context, f audio.File) link {
	if p.linker == nil {
		return link{}
	}

	m := p.linker.MatchFile(ctx, f.Path)
	switch m.Outcome {
	case calendar.Cancelled:
		return link{cancelled: true}
	case calendar.Matched:
		return link{
			stem:     p.linker.TargetStem(m.Event),
			metadata: p.linker.FormatMetadata(m.Event, f.Name),
		}
	default:
		p.log.Debug("no calendar match, using default name", logging.String("file", f.Name))
		return link{}
	}
}

func (p *Processor) place(f audio.File, outputDir string, l link) (Target, error) {
	defaultPath := output.ArtifactPath(outputDir, f.Stem(), p.opts.Ext)

	switch {
	case l.cancelled:
		return Target{Cancelled: true}, nil
	case p.linker == nil:
		return Target{Path: defaultPath}, nil
	case l.stem == "":
		return Target{Path: defaultPath, LegacyPath: defaultPath}, nil
	}

	path, err := output.FreePath(outputDir, l.stem, p.opts.Ext, ownedBy(l.metadata, f.Name))
	if err != nil {
		return Target{}, err
	}
	return Target{Path: path, Metadata: l.metadata, LegacyPath: defaultPath}, nil
}

// ownedBy reports whether an existing transcript was produced from the
// same recording: its content carries the metadata line naming the file.
func ownedBy(metadata, sourceName string) func(path string) bool {
	var marker string
	for _, line := range strings.Split(metadata, "\n") {
		if strings.Contains(line, sourceName) {
			marker = line
			break
		}
	}
	return func(path string) bool {
		if marker == "" {
			return false
		}
		content, err := output.ReadText(path)
		if err != nil {
			return false
		}
		for _, line := range strings.Split(content, "\n") {
			if line == marker {
				return true
			}
		}
		return false
	}
}
