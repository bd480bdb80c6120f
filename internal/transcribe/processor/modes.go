package processor

import (
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/audio"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/notes"
)

type modesKind int

const (
	globalModes modesKind = iota
	perFileModes
)

// Modes is either one set for every file or a set per file.
// The zero value is GlobalModes of the empty set.
type Modes struct {
	kind    modesKind
	global  notes.ModeSet
	perFile map[string]notes.ModeSet
}

// GlobalModes applies set to every file in a run.
func GlobalModes(set notes.ModeSet) Modes {
	return Modes{kind: globalModes, global: set}
}

// PerFileModes maps a file path, or bare file name, to its own set.
func PerFileModes(byFile map[string]notes.ModeSet) Modes {
	return Modes{kind: perFileModes, perFile: byFile}
}

// Resolve returns the modes for f. Per-file lookups try the exact path
// first, then the file name. Unknown files get the empty set.
func (m Modes) Resolve(f audio.File) notes.ModeSet {
	switch m.kind {
	case perFileModes:
		if set, ok := m.perFile[f.Path]; ok {
			return set
		}
		if set, ok := m.perFile[f.Name]; ok {
			return set
		}
		return notes.ModeSet{}
	default:
		if m.global == nil {
			return notes.ModeSet{}
		}
		return m.global
	}
}

// IsPerFile reports whether m carries per-file sets.
func (m Modes) IsPerFile() bool {
	return m.kind == perFileModes
}
