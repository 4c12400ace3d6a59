package booking

import (
	"time"
)

// Status is the terminal state of one booking attempt.
type Status string

const (
	// StatusSuccess means a seat was secured.
	StatusSuccess Status = "success"
	// StatusFailure means no seat was secured; Reason says why.
	StatusFailure Status = "failure"
	// StatusPlanned is a dry-run result: the target matched the date's
	// weekday; the site was never contacted.
	StatusPlanned Status = "planned"
)

// Reason classifies a failed attempt for notifications and the audit
// store.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNoMatch            Reason = "no_match"
	ReasonAmbiguousMatch     Reason = "ambiguous_match"
	ReasonClassFull          Reason = "class_full"
	ReasonAlreadyBooked      Reason = "already_booked"
	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonRetriesExhausted   Reason = "retries_exhausted"
	ReasonBookingFailed      Reason = "booking_failed"
	ReasonCanceled           Reason = "canceled"
)

// Attempt is the record of one target's booking run. Attempts live only
// for the duration of the process; the optional outcomes store keeps a
// copy for operators.
type Attempt struct {
	ID          string
	Identity    string
	User        string
	Beneficiary string
	Class       string
	Date        time.Time
	Status      Status
	Reason      Reason

	// Seats is the spot count observed at booking time, -1 when unknown.
	Seats int
	// Tries counts site interactions, including the successful one.
	Tries int
	// Err is the final error for failures, nil otherwise.
	Err error
}

// Failed reports whether the attempt ended without a booking. Planned
// attempts never count as failed.
func (a Attempt) Failed() bool { return a.Status == StatusFailure }

// AnyFailed reports whether at least one attempt failed. Callers use it
// to pick the process exit status after a partial-failure run.
func AnyFailed(attempts []Attempt) bool {
	for _, a := range attempts {
		if a.Failed() {
			return true
		}
	}
	return false
}
