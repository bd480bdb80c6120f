// Package processor turns discovered recordings into transcripts and notes.
package processor

import (
	"context"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/calendar"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/notes"
)

// Transcriber converts an audio file to transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// NotesGenerator produces one artifact per mode from transcript content.
// A failing mode is logged by the generator and left out of the result.
type NotesGenerator interface {
	GenerateForModes(ctx context.Context, content string, modes notes.ModeSet, stem, baseDir string, reprocess bool) map[notes.Mode]string
	ArtifactPath(mode notes.Mode, stem, baseDir string) string
}

// CalendarLinker links a recording to a calendar event.
type CalendarLinker interface {
	MatchFile(ctx context.Context, path string) calendar.Match
	TargetStem(ev calendar.Event) string
	FormatMetadata(ev calendar.Event, sourceFile string) string
}

// Archiver moves a successfully transcribed recording out of the input folder.
type Archiver interface {
	Archive(ctx context.Context, sourcePath string) (string, error)
}
