// Package notify delivers booking outcomes to users.
//
// Delivery is strictly fail-soft: a booking that succeeded but could not
// be announced is still a success, and one channel failing never blocks
// another. Failures are logged and dropped.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"classbot/internal/config"
	logx "classbot/pkg/logx"
)

// Message is one rendered notification.
type Message struct {
	Subject string
	Body    string

	// Attachment optionally carries a calendar invite.
	Attachment *Attachment
}

// Attachment is an inline file attached where the channel supports it.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Notifier is a single delivery channel (email, telegram).
type Notifier interface {
	Name() string
	Send(ctx context.Context, user config.User, msg Message) error
}

// Outcome is the booking result being announced. ActingUser and
// Beneficiary are config user keys; Beneficiary is empty for self
// bookings.
type Outcome struct {
	Class       string
	Start       time.Time
	Date        string
	ActingUser  string
	Beneficiary string
	Success     bool
	Seats       int
	Reason      string
	Detail      string
}

// Compose renders the outcome into a deterministic message.
func Compose(o Outcome) Message {
	var sb strings.Builder
	subject := fmt.Sprintf("Booked: %s on %s", o.Class, o.Date)
	if !o.Success {
		subject = fmt.Sprintf("Booking failed: %s on %s", o.Class, o.Date)
	}

	if o.Success {
		fmt.Fprintf(&sb, "%s on %s is booked.\n", o.Class, o.Date)
		if !o.Start.IsZero() {
			fmt.Fprintf(&sb, "Starts at %s.\n", o.Start.Format("3:04 PM"))
		}
		if o.Seats >= 0 {
			fmt.Fprintf(&sb, "%d spots were left when booked.\n", o.Seats)
		}
	} else {
		fmt.Fprintf(&sb, "Could not book %s on %s.\n", o.Class, o.Date)
		fmt.Fprintf(&sb, "Reason: %s.\n", o.Reason)
		if o.Detail != "" {
			fmt.Fprintf(&sb, "Detail: %s\n", o.Detail)
		}
	}
	if o.Beneficiary != "" {
		fmt.Fprintf(&sb, "Booked by %s for %s.\n", o.ActingUser, o.Beneficiary)
	}
	return Message{Subject: subject, Body: sb.String()}
}

// Recipient pairs a config user key with its resolved record.
type Recipient struct {
	Key  string
	User config.User
}

// Router fans one message out to every recipient on every channel.
type Router struct {
	channels []Notifier
	log      logx.Logger
}

func NewRouter(log logx.Logger, channels ...Notifier) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	active := make([]Notifier, 0, len(channels))
	for _, c := range channels {
		if c != nil {
			active = append(active, c)
		}
	}
	return &Router{channels: active, log: log}
}

// Deliver sends msg to each recipient over each channel. Duplicate
// recipients (self bookings list the user once, beneficiary bookings may
// share a notification address) collapse to one delivery. Errors are
// logged per channel and never returned.
func (r *Router) Deliver(ctx context.Context, recipients []Recipient, msg Message) {
	seen := map[string]bool{}
	for _, rcpt := range recipients {
		if seen[rcpt.Key] {
			continue
		}
		seen[rcpt.Key] = true

		for _, ch := range r.channels {
			if err := ch.Send(ctx, rcpt.User, msg); err != nil {
				r.log.Warn("notification failed",
					logx.String("channel", ch.Name()),
					logx.String("user", rcpt.Key),
					logx.Err(err))
			}
		}
	}
}
