// Package calendar publishes booked classes to the user's calendar.
//
// Two outputs from the same event: a JSON POST to a per-user webhook (a
// Google Apps Script endpoint that inserts the event), and an ICS body
// attached to outcome emails so recipients without a webhook can still
// import the class.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	logx "classbot/pkg/logx"
)

// DefaultDuration is assumed when a class has no published end time.
const DefaultDuration = 60 * time.Minute

const webhookTimeout = 30 * time.Second

// Event is one booked class to publish.
type Event struct {
	Title       string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
}

func (e Event) end() time.Time {
	if e.End.After(e.Start) {
		return e.End
	}
	return e.Start.Add(DefaultDuration)
}

// webhookPayload matches the Apps Script contract.
type webhookPayload struct {
	Title       string `json:"title"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Publisher posts events to webhook URLs. The zero value is usable.
type Publisher struct {
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
	Log        logx.Logger
}

// Publish posts the event to url. Failures are returned for logging but
// callers treat them as non-fatal: a booked class with a missed calendar
// entry is still a booked class.
func (p *Publisher) Publish(ctx context.Context, url string, ev Event) error {
	if url == "" {
		return nil
	}

	payload := webhookPayload{
		Title:       ev.Title,
		StartTime:   ev.Start.Format(time.RFC3339),
		EndTime:     ev.end().Format(time.RFC3339),
		Description: ev.Description,
		Location:    ev.Location,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode calendar event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build calendar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post calendar event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calendar webhook returned %s", resp.Status)
	}
	p.Log.Debug("calendar event published", logx.String("title", ev.Title))
	return nil
}

// ICS renders the event as a single-VEVENT calendar suitable for an
// email attachment.
func ICS(ev Event) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)

	ve := cal.AddEvent(uuid.NewString() + "@classbot")
	ve.SetCreatedTime(time.Now())
	ve.SetDtStampTime(time.Now())
	ve.SetStartAt(ev.Start)
	ve.SetEndAt(ev.end())
	ve.SetSummary(ev.Title)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		ve.SetLocation(ev.Location)
	}
	return cal.Serialize()
}
