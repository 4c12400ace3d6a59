// Package booking runs the booking flow for a day's configured classes:
// resolve each target against the live schedule, execute the booking with
// bounded retries, and report the outcome.
//
// Targets are strictly isolated: each gets its own site session and its
// own terminal Attempt, and one target failing never stops the others.
package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"classbot/internal/calendar"
	"classbot/internal/config"
	"classbot/internal/notify"
	"classbot/internal/outcomes"
	"classbot/internal/site"
	logx "classbot/pkg/logx"
)

// Orchestrator drives bookings against a site.Client and fans outcomes
// out to notifications, the calendar and the audit store.
type Orchestrator struct {
	client site.Client
	router *notify.Router
	cal    *calendar.Publisher
	audit  outcomes.Store
	log    logx.Logger

	policy  Policy
	limiter *rate.Limiter
	rng     *rand.Rand
	sleep   func(ctx context.Context, d time.Duration) error
}

// Options carries the optional collaborators; zero values disable them.
type Options struct {
	Calendar *calendar.Publisher
	Outcomes outcomes.Store
	Policy   Policy
	// Limiter paces site interactions across targets. Defaults to one
	// interaction per second with a small burst.
	Limiter *rate.Limiter
	Log     logx.Logger
}

func New(client site.Client, router *notify.Router, opts Options) *Orchestrator {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	policy := opts.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 3)
	}
	return &Orchestrator{
		client:  client,
		router:  router,
		cal:     opts.Calendar,
		audit:   opts.Outcomes,
		log:     log,
		policy:  policy,
		limiter: limiter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepCtx,
	}
}

// Run books every configured class falling on date's weekday. It returns
// one Attempt per target; the error is reserved for setup problems, not
// per-target failures (those live in the attempts).
func (o *Orchestrator) Run(ctx context.Context, cfg *config.Config, date time.Time) ([]Attempt, error) {
	loc := cfg.Location()
	day := date.In(loc).Weekday()
	targets := cfg.TargetsForWeekday(day)
	if len(targets) == 0 {
		o.log.Info("no classes configured for weekday",
			logx.String("weekday", day.String()),
			logx.String("date", date.In(loc).Format("2006-01-02")))
		return nil, nil
	}

	o.log.Info("booking run started",
		logx.String("date", date.In(loc).Format("2006-01-02")),
		logx.Int("targets", len(targets)))

	attempts := make([]Attempt, 0, len(targets))
	for _, t := range targets {
		attempts = append(attempts, o.RunTarget(ctx, cfg, t, date))
	}
	return attempts, nil
}

// RunTarget books a single target and reports its outcome. This is the
// isolation boundary: every failure in here ends up in the returned
// Attempt rather than aborting the caller.
func (o *Orchestrator) RunTarget(ctx context.Context, cfg *config.Config, target config.ClassTarget, date time.Time) Attempt {
	a := o.bookTarget(ctx, cfg, target, date)
	o.finish(ctx, cfg, target, a)
	return a
}

// DryRun reports the targets that would be booked on date. It stops at
// config resolution: no site session is opened and nothing is notified.
func (o *Orchestrator) DryRun(_ context.Context, cfg *config.Config, date time.Time) ([]Attempt, error) {
	loc := cfg.Location()
	targets := cfg.TargetsForWeekday(date.In(loc).Weekday())
	if len(targets) == 0 {
		return nil, nil
	}

	attempts := make([]Attempt, 0, len(targets))
	for _, t := range targets {
		a := newAttempt(t, date)
		a.Status = StatusPlanned
		o.log.Info("would book",
			logx.String("target", a.Identity),
			logx.String("time", t.Start.String()),
			logx.String("date", date.In(loc).Format("2006-01-02")))
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func newAttempt(target config.ClassTarget, date time.Time) Attempt {
	return Attempt{
		ID:          uuid.NewString(),
		Identity:    target.Identity(),
		User:        target.User,
		Beneficiary: target.For,
		Class:       target.Name,
		Date:        date,
		Seats:       -1,
	}
}

func (o *Orchestrator) bookTarget(ctx context.Context, cfg *config.Config, target config.ClassTarget, date time.Time) Attempt {
	a := newAttempt(target, date)
	tlog := o.log.With(logx.String("target", a.Identity), logx.String("attempt_id", a.ID))

	maxAttempts := 1 + o.policy.Max
	var lastErr error
	for try := 1; try <= maxAttempts; try++ {
		a.Tries = try

		res, err := o.tryOnce(ctx, cfg, target, date)
		if err == nil {
			a.Status = StatusSuccess
			a.Seats = res.SeatsRemaining
			tlog.Info("booked", logx.Int("seats_remaining", a.Seats), logx.Int("tries", try))
			return a
		}
		lastErr = err

		if site.IsPermanent(err) {
			a.Status = StatusFailure
			a.Reason = classify(err)
			a.Err = err
			tlog.Warn("permanent booking failure", logx.String("reason", string(a.Reason)), logx.Err(err))
			return a
		}
		if ctx.Err() != nil {
			a.Status = StatusFailure
			a.Reason = ReasonCanceled
			a.Err = ctx.Err()
			return a
		}
		if try >= maxAttempts {
			break
		}

		delay := o.policy.delay(try, o.rng)
		tlog.Warn("transient booking failure, will retry",
			logx.Int("try", try),
			logx.Duration("delay", delay),
			logx.Err(err))
		if err := o.sleep(ctx, delay); err != nil {
			a.Status = StatusFailure
			a.Reason = ReasonCanceled
			a.Err = err
			return a
		}
	}

	a.Status = StatusFailure
	a.Reason = ReasonRetriesExhausted
	a.Err = fmt.Errorf("after %d tries: %w", a.Tries, lastErr)
	tlog.Error("booking retries exhausted", logx.Int("tries", a.Tries), logx.Err(lastErr))
	return a
}

// tryOnce is one full site interaction: fresh login, schedule lookup,
// match, book. Sessions are deliberately not reused across tries; a
// half-broken session is the most likely cause of the transient failure
// being retried.
func (o *Orchestrator) tryOnce(ctx context.Context, cfg *config.Config, target config.ClassTarget, date time.Time) (site.Result, error) {
	c, sess, err := o.resolveWithSession(ctx, cfg, target, date)
	if err != nil {
		return site.Result{}, err
	}
	defer sess.Close()

	if c.Full {
		return site.Result{}, site.Permanent(site.ErrClassFull)
	}
	return o.client.Book(ctx, sess, c)
}

func (o *Orchestrator) resolveWithSession(ctx context.Context, cfg *config.Config, target config.ClassTarget, date time.Time) (site.Candidate, site.Session, error) {
	user, ok := cfg.UserByKey(target.User)
	if !ok {
		return site.Candidate{}, nil, site.Permanent(fmt.Errorf("unknown user %q", target.User))
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return site.Candidate{}, nil, err
	}
	sess, err := o.client.Login(ctx, site.Credentials{Email: user.SiteEmail, Password: user.SitePassword})
	if err != nil {
		return site.Candidate{}, nil, err
	}

	cands, err := o.client.FindSchedule(ctx, sess, date)
	if err != nil {
		sess.Close()
		return site.Candidate{}, nil, err
	}
	c, err := matchCandidate(target, cands)
	if err != nil {
		sess.Close()
		return site.Candidate{}, nil, err
	}
	return c, sess, nil
}

// finish records and announces a terminal attempt. Everything in here is
// fail-soft: the attempt's status is already decided and no reporting
// problem may change it.
func (o *Orchestrator) finish(ctx context.Context, cfg *config.Config, target config.ClassTarget, a Attempt) {
	loc := cfg.Location()
	local := a.Date.In(loc)
	dateStr := local.Format("2006-01-02")
	start := time.Date(local.Year(), local.Month(), local.Day(),
		target.Start.Hour, target.Start.Minute, 0, 0, loc)

	if o.audit != nil {
		rec := outcomes.Record{
			AttemptID: a.ID,
			Identity:  a.Identity,
			User:      a.User,
			Date:      dateStr,
			Class:     a.Class,
			Status:    string(a.Status),
			Reason:    string(a.Reason),
			Seats:     a.Seats,
			Attempts:  a.Tries,
		}
		if a.Err != nil {
			rec.Error = a.Err.Error()
		}
		if err := o.audit.Append(ctx, rec); err != nil {
			o.log.Warn("outcome audit append failed", logx.Err(err))
		}
	}

	msg := notify.Compose(notify.Outcome{
		Class:       a.Class,
		Start:       start,
		Date:        dateStr,
		ActingUser:  a.User,
		Beneficiary: a.Beneficiary,
		Success:     a.Status == StatusSuccess,
		Seats:       a.Seats,
		Reason:      string(a.Reason),
		Detail:      errDetail(a.Err),
	})

	var ev calendar.Event
	if a.Status == StatusSuccess {
		ev = calendar.Event{
			Title:       a.Class,
			Start:       start,
			Description: "Booked automatically",
		}
		ics := calendar.ICS(ev)
		msg.Attachment = &notify.Attachment{
			Filename:    "class.ics",
			ContentType: "text/calendar",
			Content:     []byte(ics),
		}
	}

	recipients := o.recipients(cfg, a)
	if o.router != nil {
		o.router.Deliver(ctx, recipients, msg)
	}

	if a.Status == StatusSuccess && o.cal != nil {
		published := map[string]bool{}
		for _, r := range recipients {
			url := r.User.CalendarWebhookURL
			if url == "" || published[url] {
				continue
			}
			published[url] = true
			if err := o.cal.Publish(ctx, url, ev); err != nil {
				o.log.Warn("calendar publish failed", logx.String("user", r.Key), logx.Err(err))
			}
		}
	}
}

// recipients lists who hears about the attempt: always the acting user,
// plus the beneficiary on for-bookings.
func (o *Orchestrator) recipients(cfg *config.Config, a Attempt) []notify.Recipient {
	out := make([]notify.Recipient, 0, 2)
	if u, ok := cfg.UserByKey(a.User); ok {
		out = append(out, notify.Recipient{Key: a.User, User: u})
	}
	if a.Beneficiary != "" {
		if u, ok := cfg.UserByKey(a.Beneficiary); ok {
			out = append(out, notify.Recipient{Key: a.Beneficiary, User: u})
		}
	}
	return out
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, site.ErrInvalidCredentials):
		return ReasonInvalidCredentials
	case errors.Is(err, site.ErrClassFull):
		return ReasonClassFull
	case errors.Is(err, site.ErrAlreadyBooked):
		return ReasonAlreadyBooked
	case errors.Is(err, errNoMatch):
		return ReasonNoMatch
	case errors.Is(err, errAmbiguous):
		return ReasonAmbiguousMatch
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonBookingFailed
	}
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}
