package config

import (
	"fmt"
	"time"
)

// Config is the full declarative input: who can book (users) and what to
// book every week (classes), plus process-level settings.
//
// Loaded from YAML or JSON with unknown fields rejected.
type Config struct {
	Users   map[string]User `json:"users"`
	Classes []ClassTarget   `json:"classes"`

	Settings Settings       `json:"settings,omitempty"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
	Notify   NotifyConfig   `json:"notify,omitempty"`
	Store    StoreConfig    `json:"trigger_store,omitempty"`
	Outcomes OutcomesConfig `json:"outcomes,omitempty"`
	Retry    RetryConfig    `json:"retry,omitempty"`
	Site     SiteConfig     `json:"site,omitempty"`
}

// User holds one account's site credentials and notification targets.
// Immutable once loaded; lookups go through Config.UserByKey.
type User struct {
	SiteEmail          string `json:"site_email"`
	SitePassword       string `json:"site_password"`
	NotificationEmail  string `json:"notification_email"`
	CalendarWebhookURL string `json:"calendar_webhook_url,omitempty"`
	TelegramChatID     int64  `json:"telegram_chat_id,omitempty"`
}

// ClassTarget is one configured desire to book a specific class on a
// specific weekday/time for a specific user.
//
// Day and Time are the authored strings ("Monday", "4:30 PM" or "16:30");
// Weekday and Start are filled by Validate and are the only fields the
// rest of the system reads.
type ClassTarget struct {
	Day  string `json:"day"`
	Time string `json:"time"`
	Name string `json:"name"`
	User string `json:"user"`

	// For optionally names a beneficiary user. The booking is made with
	// User's credentials; both users are notified of the outcome.
	For string `json:"for,omitempty"`

	// BookingWindowOffset overrides how long before class time the booking
	// window opens. Default: 7 days + 1 hour.
	BookingWindowOffset *Offset `json:"booking_window_offset,omitempty"`

	Weekday time.Weekday `json:"-"`
	Start   TimeOfDay    `json:"-"`
}

// Identity is the stable (day, name, user) tuple used to match a target's
// trigger across reconciliations. Renaming or retiming a class changes the
// line content but the identity keeps install() from leaving duplicates
// only when all three parts match; a changed part is a new identity and the
// old line simply falls out of the desired set.
func (c ClassTarget) Identity() string {
	return fmt.Sprintf("%s/%s/%s", c.Weekday, c.Name, c.User)
}

// Offset returns the effective booking-window offset.
func (c ClassTarget) Offset() Offset {
	if c.BookingWindowOffset != nil {
		return *c.BookingWindowOffset
	}
	return DefaultOffset
}

// Offset is a civil-time subtraction: whole days plus clock hours.
// It is applied on wall-clock fields, never on absolute instants, so DST
// transitions cannot shift the resulting trigger time.
type Offset struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// DefaultOffset is the site's booking rule: windows open 7 days and 1 hour
// before class time.
var DefaultOffset = Offset{Days: 7, Hours: 1}

func (o Offset) String() string {
	return fmt.Sprintf("%dd%dh", o.Days, o.Hours)
}

// TimeOfDay is a local wall-clock time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the offset from midnight, for clock arithmetic.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

type Settings struct {
	// Timezone is an IANA zone name; empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`
	// Headless controls the browser client. Default true.
	Headless *bool `json:"headless,omitempty"`
	// BookerPath is the orchestrator binary installed into trigger lines.
	BookerPath string `json:"booker_path,omitempty"`
	// LogDir receives the per-weekday booking logs.
	LogDir string `json:"log_dir,omitempty"`
}

func (s Settings) HeadlessEnabled() bool {
	return s.Headless == nil || *s.Headless
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"`
}

func (l LoggingConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

type NotifyConfig struct {
	Email    EmailConfig    `json:"email,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
}

type EmailConfig struct {
	Enabled    bool   `json:"enabled"`
	From       string `json:"from,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
}

// StoreConfig selects the trigger-store backend.
//
// Driver values:
//   - "file": plain crontab-format file, replaced atomically (default)
//   - "crontab": the user crontab via crontab(1)
type StoreConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

// OutcomesConfig controls the optional booking-outcome audit store.
//
// Driver values: "file" (JSONL), "sqlite", "" or "none" (disabled).
type OutcomesConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

// RetryConfig bounds the orchestrator's transient-failure retry loop.
// Base and MaxDelay are Go duration strings (e.g. "2s", "1m").
type RetryConfig struct {
	Max      int    `json:"max,omitempty"`
	Base     string `json:"base,omitempty"`
	MaxDelay string `json:"max_delay,omitempty"`
}

// SiteConfig points the site client at the booking site.
// Timeout is a Go duration string bounding each site call.
type SiteConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}
