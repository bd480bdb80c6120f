package processor

import (
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/audio"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/output"
)

// Decision is the outcome of the selection policy.
type Decision int

const (
	// Batch processes every candidate without asking.
	Batch Decision = iota
	// PromptUser asks the operator whether to batch or pick files.
	PromptUser
	// ForceSelect always enters interactive selection.
	ForceSelect
)

func (d Decision) String() string {
	switch d {
	case Batch:
		return "batch"
	case PromptUser:
		return "prompt"
	case ForceSelect:
		return "select"
	default:
		return "unknown"
	}
}

// Decide compares a candidate count against the soft and hard limits.
func Decide(count, softLimit, hardLimit int) Decision {
	switch {
	case count > hardLimit:
		return ForceSelect
	case count > softLimit:
		return PromptUser
	default:
		return Batch
	}
}

// FilesToProcess drops files whose default transcript already exists,
// unless reprocess is set. Order is preserved.
func FilesToProcess(files []audio.File, reprocess bool, outputDir, ext string, log logging.Logger) []audio.File {
	if log == nil {
		log = logging.Nop()
	}
	candidates := make([]audio.File, 0, len(files))
	for _, f := range files {
		out := output.ArtifactPath(outputDir, f.Stem(), ext)
		if !reprocess && output.Exists(out) {
			log.Debug("skipping file, output already exists", logging.String("file", f.Name), logging.String("output", out))
			continue
		}
		candidates = append(candidates, f)
	}
	return candidates
}
