package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/calendar"
)

// EventPrompter asks the operator which calendar event a recording
// belongs to. It implements calendar.EventChooser.
type EventPrompter struct {
	prompter Prompter
	out      io.Writer
}

// NewEventPrompter creates an EventPrompter.
func NewEventPrompter(p Prompter, out io.Writer) *EventPrompter {
	return &EventPrompter{prompter: p, out: out}
}

// ChooseEvent returns a 1-based choice, or 0 when the operator skips.
func (e *EventPrompter) ChooseEvent(file string, events []calendar.Event) (int, error) {
	if len(events) == 1 {
		fmt.Fprintf(e.out, "\nOne calendar event found for %s\n", file)
	} else {
		fmt.Fprintf(e.out, "\n%d calendar events found for %s\n", len(events), file)
	}
	fmt.Fprintln(e.out, "Select the event to link:")

	for i, ev := range events {
		title := ev.Title
		if title == "" {
			title = "Untitled Event"
		}
		fmt.Fprintf(e.out, "%d. %s\n", i+1, title)
		if n := len(ev.Attendees); n > 0 {
			fmt.Fprintf(e.out, "   Attendees: %d\n", n)
		}
		fmt.Fprintf(e.out, "   Time: %s\n", ev.Start.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(e.out, "0. Skip - don't link this file to any event")

	question := fmt.Sprintf("Enter your choice (1-%d, or 0 to skip): ", len(events))
	if len(events) == 1 {
		question = "Enter your choice (1 to link, or 0 to skip): "
	}

	for {
		answer, err := e.prompter.Prompt(question)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 0 && n <= len(events) {
			return n, nil
		}
		fmt.Fprintf(e.out, "Invalid choice %q\n", answer)
	}
}
