package calendar

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MetadataHeader opens every block produced by FormatMetadata.
const MetadataHeader = "## Linked Calendar Event"

const (
	maxAttendees      = 5
	maxAttachments    = 3
	maxDescription    = 300
	maxTitleInStem    = 100
	untitled          = "Untitled Event"
	defaultCalendarID = "primary"
)

// TargetStem returns YYYY-MM-DD_Title for ev.
func (l *Linker) TargetStem(ev Event) string {
	return TargetStem(ev)
}

// FormatMetadata renders the markdown block prepended to transcripts.
func (l *Linker) FormatMetadata(ev Event, sourceFile string) string {
	return FormatMetadata(ev, sourceFile)
}

// TargetStem returns YYYY-MM-DD_Title for ev.
func TargetStem(ev Event) string {
	if ev.Start.IsZero() {
		return "unknown_date_untitled"
	}
	title := ev.Title
	if strings.TrimSpace(title) == "" {
		title = untitled
	}
	return ev.Start.Format("2006-01-02") + "_" + SanitizeFilename(title)
}

// SanitizeFilename makes s safe to use as a file name on common filesystems.
func SanitizeFilename(s string) string {
	var sb strings.Builder
	lastSpace := false
	for _, r := range s {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r) || unicode.IsControl(r):
			sb.WriteRune('_')
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				sb.WriteRune(' ')
			}
			lastSpace = true
		default:
			sb.WriteRune(r)
			lastSpace = false
		}
	}

	out := strings.Trim(sb.String(), " .")
	if utf8.RuneCountInString(out) > maxTitleInStem {
		out = strings.TrimRight(string([]rune(out)[:maxTitleInStem]), " .")
	}
	if out == "" {
		return "untitled"
	}
	return out
}

// FormatMetadata renders the markdown block prepended to transcripts.
func FormatMetadata(ev Event, sourceFile string) string {
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	lines = append(lines, MetadataHeader, "")

	title := ev.Title
	if strings.TrimSpace(title) == "" {
		title = untitled
	}
	add("**Title:** %s", title)
	add("**When:** %s", formatWhen(ev))
	add("**Attendees:** %s", capList(ev.AttendeeNames(), maxAttendees))
	add("**Attachments:** %s", capList(ev.Attachments, maxAttachments))
	if ev.Link != "" {
		add("**Event Link:** %s", ev.Link)
	}
	add("**Source Audio:** %s", sourceFile)

	cal := ev.Organizer
	if cal == "" {
		cal = ev.CalendarID
	}
	if cal == "" {
		cal = defaultCalendarID
	}
	add("**Calendar:** %s", cal)

	if desc := strings.TrimSpace(ev.Description); desc != "" {
		if utf8.RuneCountInString(desc) > maxDescription {
			desc = string([]rune(desc)[:maxDescription-3]) + "..."
		}
		lines = append(lines, "", "**Description:**", desc)
	}

	return strings.Join(lines, "\n")
}

func formatWhen(ev Event) string {
	switch {
	case ev.Start.IsZero():
		return "Unknown"
	case ev.AllDay:
		return ev.Start.Format("2006-01-02") + " (all-day)"
	case ev.End.IsZero():
		return ev.Start.Format("2006-01-02 15:04")
	default:
		return ev.Start.Format("2006-01-02 15:04") + " - " + ev.End.Format("15:04")
	}
}

func capList(items []string, limit int) string {
	if len(items) == 0 {
		return "None"
	}
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(items[:limit], ", "), len(items)-limit)
}
