// Package calendar links recordings to the calendar events they were made in.
package calendar

import (
	"context"
	"time"
)

// Attendee is an event participant.
type Attendee struct {
	Name  string
	Email string
}

// Display prefers the display name and falls back to the email address.
func (a Attendee) Display() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// Event is a calendar entry with times in the local zone.
type Event struct {
	ID          string
	Title       string
	Description string
	Link        string
	Organizer   string
	CalendarID  string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Attendees   []Attendee
	Attachments []string
}

// AttendeeNames returns the non-empty display names in order.
func (e Event) AttendeeNames() []string {
	var names []string
	for _, a := range e.Attendees {
		if n := a.Display(); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// EventSource lists events overlapping a time window.
type EventSource interface {
	ListEvents(ctx context.Context, start, end time.Time, limit int) ([]Event, error)
}

// EventChooser asks the operator which candidate to link. It returns a
// 1-based index into events, or 0 to link nothing.
type EventChooser interface {
	ChooseEvent(file string, events []Event) (int, error)
}

// Outcome is the kind of a Match.
type Outcome int

const (
	NoMatch Outcome = iota
	Matched
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Cancelled:
		return "cancelled"
	default:
		return "no-match"
	}
}

// Match is the result of linking a file. Event and Distance are set only
// when Outcome is Matched.
type Match struct {
	Outcome  Outcome
	Event    Event
	Distance time.Duration
}

// MatchedEvent builds a Matched result.
func MatchedEvent(ev Event, distance time.Duration) Match {
	return Match{Outcome: Matched, Event: ev, Distance: distance}
}
