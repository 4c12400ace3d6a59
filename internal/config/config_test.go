package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseClockTimeVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw    string
		hour   int
		minute int
	}{
		{raw: "16:30", hour: 16, minute: 30},
		{raw: "4:30 PM", hour: 16, minute: 30},
		{raw: "04:30pm", hour: 16, minute: 30},
		{raw: "12:00 AM", hour: 0, minute: 0},
		{raw: "12:15 PM", hour: 12, minute: 15},
		{raw: "00:30", hour: 0, minute: 30},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseClockTime(tt.raw)
			if err != nil {
				t.Fatalf("ParseClockTime(%q) error: %v", tt.raw, err)
			}
			if got.Hour != tt.hour || got.Minute != tt.minute {
				t.Fatalf("ParseClockTime(%q) = %v, want %02d:%02d", tt.raw, got, tt.hour, tt.minute)
			}
		})
	}
}

func TestParseClockTimeInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "25:00", "13:00 PM", "4:60 PM", "noon", "0:00 AM"} {
		if _, err := ParseClockTime(raw); err == nil {
			t.Fatalf("ParseClockTime(%q): expected error", raw)
		}
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()
	d, err := ParseWeekday("monday")
	if err != nil {
		t.Fatalf("ParseWeekday error: %v", err)
	}
	if d != time.Monday {
		t.Fatalf("ParseWeekday = %v, want Monday", d)
	}
	if _, err := ParseWeekday("Moonday"); err == nil {
		t.Fatal("expected error for invalid weekday")
	}
}

func validTestConfig() *Config {
	return &Config{
		Users: map[string]User{
			"alice": {SiteEmail: "a@example.com", SitePassword: "pw", NotificationEmail: "alice@example.com"},
			"bob":   {SiteEmail: "b@example.com", SitePassword: "pw", NotificationEmail: "bob@example.com"},
		},
		Classes: []ClassTarget{
			{Day: "Monday", Time: "4:30 PM", Name: "LF3 Strong", User: "alice"},
		},
	}
}

func TestValidateFillsParsedFields(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	got := cfg.Classes[0]
	if got.Weekday != time.Monday {
		t.Fatalf("Weekday = %v, want Monday", got.Weekday)
	}
	if got.Start != (TimeOfDay{Hour: 16, Minute: 30}) {
		t.Fatalf("Start = %v, want 16:30", got.Start)
	}
	if got.Offset() != DefaultOffset {
		t.Fatalf("Offset = %v, want default", got.Offset())
	}
}

func TestValidateUnresolvedUserIsFatal(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.Classes[0].User = "mallory"
	err := cfg.Validate()
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
}

func TestValidateBeneficiaryMustResolve(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.Classes[0].For = "nobody"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unresolved beneficiary")
	}
	cfg.Classes[0].For = "bob"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestValidateRejectsBadDayAndTime(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.Classes[0].Day = "Funday"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad day")
	}

	cfg = validTestConfig()
	cfg.Classes[0].Time = "26:00"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad time")
	}
}

func TestValidateOffsetOverride(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.Classes[0].BookingWindowOffset = &Offset{Days: 2, Hours: 0}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if got := cfg.Classes[0].Offset(); got != (Offset{Days: 2}) {
		t.Fatalf("Offset = %v, want 2d0h", got)
	}

	cfg.Classes[0].BookingWindowOffset = &Offset{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero offset")
	}
}

func TestValidateRejectsDuplicateIdentity(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	// Same (day, name, user) at a different time: the identity tuple is
	// what matches triggers across installs, so this must not load.
	cfg.Classes = append(cfg.Classes,
		ClassTarget{Day: "Monday", Time: "6:00 PM", Name: "LF3 Strong", User: "alice"})
	err := cfg.Validate()
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConfigError for duplicate identity, got %v", err)
	}

	// Same class for a different user is a distinct identity and loads fine.
	cfg = validTestConfig()
	cfg.Classes = append(cfg.Classes,
		ClassTarget{Day: "Monday", Time: "4:30 PM", Name: "LF3 Strong", User: "bob"})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestManagerLoadYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.yaml")
	data := `
users:
  alice:
    site_email: a@example.com
    site_password: pw
    notification_email: alice@example.com
classes:
  - day: Monday
    time: "16:30"
    name: LF3 Strong
    user: alice
settings:
  headless: false
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.Classes) != 1 || cfg.Classes[0].Weekday != time.Monday {
		t.Fatalf("unexpected classes: %+v", cfg.Classes)
	}
	if cfg.Settings.HeadlessEnabled() {
		t.Fatal("headless should be disabled")
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.yaml")
	data := `
users:
  alice:
    site_email: a@example.com
    site_password: pw
    notification_email: alice@example.com
    shoe_size: 42
classes: []
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestTargetsForWeekday(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.Classes = append(cfg.Classes,
		ClassTarget{Day: "Monday", Time: "6:00 PM", Name: "Spin", User: "bob"},
		ClassTarget{Day: "Tuesday", Time: "7:00 AM", Name: "Yoga", User: "alice"},
	)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	mon := cfg.TargetsForWeekday(time.Monday)
	if len(mon) != 2 {
		t.Fatalf("got %d Monday targets, want 2", len(mon))
	}
	if mon[0].Name != "LF3 Strong" || mon[1].Name != "Spin" {
		t.Fatalf("order not preserved: %+v", mon)
	}
	if got := cfg.TargetsForWeekday(time.Friday); len(got) != 0 {
		t.Fatalf("expected no Friday targets, got %+v", got)
	}
}
