package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/audio"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/notes"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/processor"
)

// ErrSelectionCancelled is returned when the operator enters nothing.
var ErrSelectionCancelled = errors.New("selection cancelled")

// Selection is a parsed operator choice. Indices are 0-based and in
// list order; Modes holds per-file overrides keyed by index.
type Selection struct {
	Indices []int
	Modes   map[int]notes.ModeSet
}

// ParseSelection parses input such as "1,3-5", "2:QE" or "all" against a
// list of count entries numbered from 1.
func ParseSelection(input string, count int) (Selection, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Selection{}, ErrSelectionCancelled
	}

	chosen := make(map[int]bool)
	sel := Selection{Modes: make(map[int]notes.ModeSet)}

	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		rangePart, modePart, hasModes := strings.Cut(token, ":")
		lo, hi, err := parseRange(strings.TrimSpace(rangePart), count)
		if err != nil {
			return Selection{}, err
		}

		var modes notes.ModeSet
		if hasModes {
			if modes, err = notes.ParseModes(modePart); err != nil {
				return Selection{}, fmt.Errorf("%q: %w", token, err)
			}
		}

		for i := lo; i <= hi; i++ {
			chosen[i] = true
			if hasModes {
				if existing, ok := sel.Modes[i]; ok {
					for m := range modes {
						existing[m] = struct{}{}
					}
				} else {
					sel.Modes[i] = copyModes(modes)
				}
			}
		}
	}

	if len(chosen) == 0 {
		return Selection{}, ErrSelectionCancelled
	}
	for i := 0; i < count; i++ {
		if chosen[i] {
			sel.Indices = append(sel.Indices, i)
		}
	}
	return sel, nil
}

// parseRange returns 0-based inclusive bounds for "N", "N-M" or "all".
func parseRange(s string, count int) (int, int, error) {
	if strings.EqualFold(s, "all") || s == "*" {
		return 0, count - 1, nil
	}

	loStr, hiStr, isRange := strings.Cut(s, "-")
	lo, err := parseIndex(loStr, count)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := parseIndex(hiStr, count)
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("invalid range %q", s)
	}
	return lo, hi, nil
}

func parseIndex(s string, count int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("%d is out of range (1-%d)", n, count)
	}
	return n - 1, nil
}

func copyModes(s notes.ModeSet) notes.ModeSet {
	out := make(notes.ModeSet, len(s))
	for m := range s {
		out[m] = struct{}{}
	}
	return out
}

// Apply returns the chosen files and the modes to run them with. Per-file
// modes are used when any were given; files without their own set get
// defaults.
func (s Selection) Apply(files []audio.File, defaults notes.ModeSet) ([]audio.File, processor.Modes) {
	selected := make([]audio.File, 0, len(s.Indices))
	for _, i := range s.Indices {
		selected = append(selected, files[i])
	}

	if len(s.Modes) == 0 {
		return selected, processor.GlobalModes(defaults)
	}

	byFile := make(map[string]notes.ModeSet, len(s.Indices))
	for _, i := range s.Indices {
		if m, ok := s.Modes[i]; ok {
			byFile[files[i].Path] = m
		} else {
			byFile[files[i].Path] = defaults
		}
	}
	return selected, processor.PerFileModes(byFile)
}

// selectFiles lists files and asks which to process. Invalid input is
// reported and asked again; empty input or a read error cancels.
func selectFiles(p Prompter, out io.Writer, files []audio.File, defaults notes.ModeSet, now time.Time) ([]audio.File, processor.Modes, error) {
	printFileTable(out, files, now)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Enter files to process, e.g. 1,3-5 or all. Add :QE for per-file modes (2:QE).")
	fmt.Fprintln(out, "Press Enter on an empty line to cancel.")

	for {
		input, err := p.Prompt("Selection: ")
		if err != nil {
			return nil, processor.Modes{}, ErrSelectionCancelled
		}

		sel, err := ParseSelection(input, len(files))
		if err != nil {
			if errors.Is(err, ErrSelectionCancelled) {
				return nil, processor.Modes{}, err
			}
			fmt.Fprintf(out, "Invalid selection: %v\n", err)
			continue
		}

		selected, modes := sel.Apply(files, defaults)
		return selected, modes, nil
	}
}

func printFileTable(out io.Writer, files []audio.File, now time.Time) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFILE\tMODIFIED\tSIZE\tDURATION")
	for i, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s (%s)\t%s\t%s\n",
			i+1,
			f.Name,
			f.ModTime.Local().Format("2006-01-02 15:04"),
			formatAge(now.Sub(f.ModTime)),
			formatSize(f.Size),
			fileDuration(f))
	}
	tw.Flush()
}

func fileDuration(f audio.File) string {
	if f.Ext != ".m4a" {
		return "-"
	}
	rec, err := audio.ProbeM4A(f.Path)
	if err != nil || rec.Duration <= 0 {
		return "-"
	}
	return formatDuration(rec.Duration)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	size := float64(n)
	for _, suffix := range []string{"KB", "MB", "GB"} {
		size /= unit
		if size < unit || suffix == "GB" {
			return fmt.Sprintf("%.1f %s", size, suffix)
		}
	}
	return fmt.Sprintf("%d B", n)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
