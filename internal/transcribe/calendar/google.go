package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ErrNoToken is returned when the OAuth token file is missing. Creating
// it is outside this tool; run the Google consent flow separately.
var ErrNoToken = errors.New("google calendar token not found")

// GoogleConfig locates credentials for GoogleSource.
type GoogleConfig struct {
	CredentialsFile string
	TokenFile       string
	CalendarID      string
}

// GoogleSource reads events from the Google Calendar API.
type GoogleSource struct {
	svc        *gcal.Service
	calendarID string
}

// storedToken accepts both the oauth2.Token layout and the
// authorized-user layout written by Google's Python client.
type storedToken struct {
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Expiry       string `json:"expiry"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// NewGoogleSource builds a read-only calendar client from an existing token.
func NewGoogleSource(ctx context.Context, cfg GoogleConfig) (*GoogleSource, error) {
	raw, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoToken, cfg.TokenFile)
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	conf, err := oauthConfig(cfg.CredentialsFile, st)
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken:  firstNonEmpty(st.AccessToken, st.Token),
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
		Expiry:       parseExpiry(st.Expiry),
	}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	calID := cfg.CalendarID
	if calID == "" {
		calID = defaultCalendarID
	}
	return &GoogleSource{svc: svc, calendarID: calID}, nil
}

func oauthConfig(credentialsFile string, st storedToken) (*oauth2.Config, error) {
	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err == nil {
			conf, err := google.ConfigFromJSON(data, gcal.CalendarReadonlyScope)
			if err != nil {
				return nil, fmt.Errorf("failed to parse credentials file: %w", err)
			}
			return conf, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
	}
	if st.ClientID == "" {
		return nil, errors.New("no OAuth client: set a credentials file or use a token with client_id")
	}
	return &oauth2.Config{
		ClientID:     st.ClientID,
		ClientSecret: st.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarReadonlyScope},
	}, nil
}

// ListEvents returns single (expanded) events overlapping [start, end].
func (g *GoogleSource) ListEvents(ctx context.Context, start, end time.Time, limit int) ([]Event, error) {
	call := g.svc.Events.List(g.calendarID).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if limit > 0 {
		call = call.MaxResults(int64(limit))
	}

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("calendar events.list: %w", err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, convertEvent(item, g.calendarID))
	}
	return events, nil
}

func convertEvent(item *gcal.Event, calendarID string) Event {
	ev := Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Link:        item.HtmlLink,
		CalendarID:  calendarID,
	}
	if item.Organizer != nil {
		ev.Organizer = item.Organizer.Email
	}

	ev.Start, ev.AllDay = parseEventTime(item.Start)
	ev.End, _ = parseEventTime(item.End)

	for _, a := range item.Attendees {
		if a == nil {
			continue
		}
		ev.Attendees = append(ev.Attendees, Attendee{Name: a.DisplayName, Email: a.Email})
	}
	for _, att := range item.Attachments {
		if att == nil {
			continue
		}
		title := att.Title
		if title == "" {
			if i := strings.LastIndex(att.FileUrl, "/"); i >= 0 {
				title = att.FileUrl[i+1:]
			}
		}
		if title != "" {
			ev.Attachments = append(ev.Attachments, title)
		}
	}
	return ev
}

func parseEventTime(dt *gcal.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t.Local(), false
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, time.Local)
		if err != nil {
			return time.Time{}, true
		}
		return t, true
	}
	return time.Time{}, false
}

func parseExpiry(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
