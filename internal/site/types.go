// Package site defines the booking-site collaborator contract and a thin
// headless-browser implementation of it.
//
// The contract (login, schedule discovery, booking) is what the
// orchestrator programs against; the browser mechanics behind it are
// deliberately kept out of the core.
package site

import (
	"context"
	"time"
)

// Credentials authenticate one user against the booking site.
type Credentials struct {
	Email    string
	Password string
}

// Session is an authenticated site session. Sessions are never shared
// across booking targets, even for the same user.
type Session interface {
	Close()
}

// Candidate is one class discovered on the schedule page.
type Candidate struct {
	Title string
	// Start is the class start time as displayed (e.g. "4:30 PM").
	Start string
	// SpotsLeft is -1 when the site doesn't show a count.
	SpotsLeft int
	Full      bool
	URL       string
}

// Result reports a completed booking.
type Result struct {
	SeatsRemaining int
}

// Client is the Site Client contract. Every call must be bounded by the
// caller's context; implementations classify their failures via the
// Permanent marker in this package, and anything unclassified is treated
// as transient by the retry policy.
type Client interface {
	Login(ctx context.Context, creds Credentials) (Session, error)
	FindSchedule(ctx context.Context, sess Session, date time.Time) ([]Candidate, error)
	Book(ctx context.Context, sess Session, c Candidate) (Result, error)
}
