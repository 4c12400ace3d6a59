package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks the whole config and fills the parsed fields on each
// ClassTarget. It is fail-fast: the first problem is returned as a
// *ConfigError and nothing downstream runs. Unresolved user references
// are a load-time error, never a per-target failure.
func (c *Config) Validate() error {
	if len(c.Users) == 0 {
		return configErrf("users", "at least one user is required")
	}
	for key, u := range c.Users {
		path := "users." + key
		if strings.TrimSpace(u.SiteEmail) == "" {
			return configErrf(path+".site_email", "required")
		}
		if u.SitePassword == "" {
			return configErrf(path+".site_password", "required")
		}
		if strings.TrimSpace(u.NotificationEmail) == "" {
			return configErrf(path+".notification_email", "required")
		}
	}

	// Identity collisions are rejected here rather than silently collapsed
	// during trigger reconciliation: the (day, name, user) tuple is how
	// triggers are matched across installs, so a duplicate would make one
	// of the two entries unreachable.
	identities := make(map[string]int, len(c.Classes))

	for i := range c.Classes {
		t := &c.Classes[i]
		path := fmt.Sprintf("classes[%d]", i)

		day, err := ParseWeekday(t.Day)
		if err != nil {
			return configErrf(path+".day", "%v", err)
		}
		t.Weekday = day

		start, err := ParseClockTime(t.Time)
		if err != nil {
			return configErrf(path+".time", "%v", err)
		}
		t.Start = start

		if strings.TrimSpace(t.Name) == "" {
			return configErrf(path+".name", "required")
		}
		if _, ok := c.Users[t.User]; !ok {
			return configErrf(path+".user", "unknown user %q", t.User)
		}
		if t.For != "" {
			if _, ok := c.Users[t.For]; !ok {
				return configErrf(path+".for", "unknown user %q", t.For)
			}
		}
		if o := t.BookingWindowOffset; o != nil {
			if o.Days < 0 || o.Hours < 0 {
				return configErrf(path+".booking_window_offset", "days and hours must be >= 0")
			}
			if o.Days == 0 && o.Hours == 0 {
				return configErrf(path+".booking_window_offset", "offset must not be zero")
			}
		}

		id := t.Identity()
		if prev, dup := identities[id]; dup {
			return configErrf(path, "duplicate class identity %q (already defined at classes[%d])", id, prev)
		}
		identities[id] = i
	}

	if c.Settings.Timezone != "" {
		if _, err := time.LoadLocation(c.Settings.Timezone); err != nil {
			return configErrf("settings.timezone", "unknown timezone %q", c.Settings.Timezone)
		}
	}
	if _, err := ParseDurationField("retry.base", c.Retry.Base); err != nil {
		return err
	}
	if _, err := ParseDurationField("retry.max_delay", c.Retry.MaxDelay); err != nil {
		return err
	}
	if _, err := ParseDurationField("site.timeout", c.Site.Timeout); err != nil {
		return err
	}
	return nil
}

// UserByKey returns the user for key. The bool is false only for keys that
// never passed validation (direct-booking CLI input).
func (c *Config) UserByKey(key string) (User, bool) {
	u, ok := c.Users[key]
	return u, ok
}

// TargetsForWeekday selects every ClassTarget whose weekday matches day,
// preserving authored order.
func (c *Config) TargetsForWeekday(day time.Weekday) []ClassTarget {
	var out []ClassTarget
	for _, t := range c.Classes {
		if t.Weekday == day {
			out = append(out, t)
		}
	}
	return out
}

// Location resolves the configured timezone, falling back to the process
// local zone. Validate has already checked the name.
func (c *Config) Location() *time.Location {
	if c.Settings.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Settings.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
