package site

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	logx "classbot/pkg/logx"
)

// DefaultCallTimeout bounds each site call when no timeout is configured.
const DefaultCallTimeout = 90 * time.Second

// Browser drives the booking site's web UI through headless Chromium.
// It is a plain I/O wrapper around the Client contract: selectors and
// page-flow knowledge live here and nowhere else.
type Browser struct {
	baseURL  string
	headless bool
	timeout  time.Duration
	log      logx.Logger
}

func NewBrowser(baseURL string, headless bool, timeout time.Duration, log logx.Logger) *Browser {
	if baseURL == "" {
		baseURL = "https://myaltea.app"
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Browser{baseURL: baseURL, headless: headless, timeout: timeout, log: log}
}

type browserSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

func (s *browserSession) Close() {
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
}

func (b *Browser) Login(ctx context.Context, creds Credentials) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	sess := &browserSession{ctx: browserCtx, cancels: []context.CancelFunc{cancelAlloc, cancelBrowser}}

	callCtx, cancel := b.callContext(ctx, sess)
	defer cancel()

	var pageText string
	err := chromedp.Run(callCtx,
		chromedp.Navigate(b.baseURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.SendKeys(`input[type="email"]`, creds.Email, chromedp.ByQuery),
		chromedp.SendKeys(`input[type="password"]`, creds.Password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		// Give the site a moment to process the sign-in redirect.
		chromedp.Sleep(3*time.Second),
		chromedp.Text("body", &pageText, chromedp.ByQuery),
	)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	if strings.Contains(pageText, "You must be logged in") {
		sess.Close()
		return nil, Permanent(ErrInvalidCredentials)
	}

	b.log.Debug("site login ok", logx.String("email", creds.Email))
	return sess, nil
}

// scrapedCard mirrors the fields extracted from one schedule card in-page.
type scrapedCard struct {
	Title string `json:"title"`
	Time  string `json:"time"`
	Spots int    `json:"spots"`
	Full  bool   `json:"full"`
	URL   string `json:"url"`
}

// collectCardsJS pulls every currently rendered schedule card. The page
// uses virtual scrolling, so FindSchedule calls this repeatedly while
// scrolling and dedupes by URL.
const collectCardsJS = `
(() => {
  const out = [];
  for (const a of document.querySelectorAll("a[href*='/booking/evt_']")) {
    const text = a.innerText || "";
    const m = text.match(/Spots Left:\s*(\d+)/i);
    out.push({
      title: (a.querySelector("span.rt-Text.rt-r-size-4.rt-r-weight-bold")?.innerText || "").trim(),
      time: (a.querySelector("span.rt-Text.rt-r-size-2.rt-r-weight-bold")?.innerText || "").trim(),
      spots: m ? parseInt(m[1], 10) : -1,
      full: text.includes("Full") || text.includes("Join Waitlist"),
      url: a.getAttribute("href"),
    });
  }
  return JSON.stringify({
    cards: out,
    atBottom: window.scrollY + window.innerHeight >= document.documentElement.scrollHeight - 10,
  });
})()`

func (b *Browser) FindSchedule(ctx context.Context, sess Session, date time.Time) ([]Candidate, error) {
	bs, err := ownSession(sess)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := b.callContext(ctx, bs)
	defer cancel()

	url := fmt.Sprintf("%s/booking?date=%s", b.baseURL, date.Format("02-01-2006"))
	if err := chromedp.Run(callCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(3*time.Second),
	); err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	var out []Candidate
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		var raw string
		if err := chromedp.Run(callCtx, chromedp.Evaluate(collectCardsJS, &raw)); err != nil {
			return nil, fmt.Errorf("scrape schedule: %w", err)
		}
		var page struct {
			Cards    []scrapedCard `json:"cards"`
			AtBottom bool          `json:"atBottom"`
		}
		if err := json.Unmarshal([]byte(raw), &page); err != nil {
			return nil, fmt.Errorf("scrape schedule: %w", err)
		}
		for _, c := range page.Cards {
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			out = append(out, Candidate{Title: c.Title, Start: c.Time, SpotsLeft: c.Spots, Full: c.Full, URL: c.URL})
		}
		if page.AtBottom {
			break
		}
		if err := chromedp.Run(callCtx,
			chromedp.Evaluate(`window.scrollBy(0, 400)`, nil),
			chromedp.Sleep(300*time.Millisecond),
		); err != nil {
			return nil, fmt.Errorf("scroll schedule: %w", err)
		}
	}

	b.log.Debug("schedule scraped", logx.String("date", date.Format("2006-01-02")), logx.Int("classes", len(out)))
	return out, nil
}

func (b *Browser) Book(ctx context.Context, sess Session, c Candidate) (Result, error) {
	if c.Full {
		return Result{}, Permanent(ErrClassFull)
	}
	bs, err := ownSession(sess)
	if err != nil {
		return Result{}, err
	}
	callCtx, cancel := b.callContext(ctx, bs)
	defer cancel()

	var pageText string
	err = chromedp.Run(callCtx,
		chromedp.Navigate(b.baseURL+c.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Text("body", &pageText, chromedp.ByQuery),
	)
	if err != nil {
		return Result{}, fmt.Errorf("load class page: %w", err)
	}
	if strings.Contains(pageText, "You're booked") || strings.Contains(pageText, "Cancel Booking") {
		return Result{}, Permanent(ErrAlreadyBooked)
	}

	err = chromedp.Run(callCtx,
		chromedp.Click(`//button[contains(., 'Book Now') or contains(., 'Book')]`, chromedp.BySearch),
		chromedp.Sleep(2*time.Second),
		chromedp.Click(`//button[contains(., 'Confirm')]`, chromedp.BySearch),
		chromedp.Sleep(3*time.Second),
		chromedp.Text("body", &pageText, chromedp.ByQuery),
	)
	if err != nil {
		return Result{}, fmt.Errorf("book class: %w", err)
	}
	if strings.Contains(pageText, "Full") || strings.Contains(pageText, "Join Waitlist") {
		return Result{}, Permanent(ErrClassFull)
	}

	b.log.Info("class booked", logx.String("class", c.Title), logx.String("url", c.URL))
	return Result{SeatsRemaining: c.SpotsLeft}, nil
}

func (b *Browser) callContext(ctx context.Context, sess *browserSession) (context.Context, context.CancelFunc) {
	// The chromedp context carries the browser; the caller's context only
	// contributes cancellation, merged via timeout below.
	callCtx, cancel := context.WithTimeout(sess.ctx, b.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return callCtx, func() { stop(); cancel() }
}

func ownSession(sess Session) (*browserSession, error) {
	bs, ok := sess.(*browserSession)
	if !ok || bs == nil {
		return nil, fmt.Errorf("session does not belong to this client")
	}
	return bs, nil
}
