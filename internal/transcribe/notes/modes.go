package notes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Mode selects a flavour of generated notes. It is a single uppercase letter.
type Mode string

const (
	Executive Mode = "Q"
	Holistic  Mode = "W"
	Tasks     Mode = "E"
)

// ErrUnknownMode is returned for mode letters that have no prompt, and for
// characters that are not letters at all.
var ErrUnknownMode = errors.New("unknown mode")

// ModeSet is a set of modes. The zero value is the empty set, meaning no notes.
type ModeSet map[Mode]struct{}

// NewModeSet builds a set from the given modes, uppercasing each.
func NewModeSet(modes ...Mode) ModeSet {
	set := make(ModeSet, len(modes))
	for _, m := range modes {
		set[Mode(strings.ToUpper(string(m)))] = struct{}{}
	}
	return set
}

// ParseModes parses a string of mode letters such as "qwe" or "Q,E".
// Spaces and commas are ignored.
func ParseModes(s string) (ModeSet, error) {
	set := ModeSet{}
	for _, r := range s {
		if r == ',' || unicode.IsSpace(r) {
			continue
		}
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, r)
		}
		set[Mode(strings.ToUpper(string(r)))] = struct{}{}
	}
	return set, nil
}

// Has reports whether m is in the set.
func (s ModeSet) Has(m Mode) bool {
	_, ok := s[m]
	return ok
}

// Sorted returns the modes in lexical order.
func (s ModeSet) Sorted() []Mode {
	out := make([]Mode, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the set as concatenated letters, e.g. "EQ".
func (s ModeSet) String() string {
	var sb strings.Builder
	for _, m := range s.Sorted() {
		sb.WriteString(string(m))
	}
	return sb.String()
}
