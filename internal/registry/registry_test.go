package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"classbot/internal/config"
	logx "classbot/pkg/logx"
)

func testRenderer() Renderer {
	return Renderer{
		BookerPath: "/usr/local/bin/booker",
		ConfigPath: "/etc/classbot/classes.yaml",
		LogDir:     "/var/log/classbot",
		GOOS:       "linux",
	}
}

func testConfig(t *testing.T, classes ...config.ClassTarget) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Users: map[string]config.User{
			"alice": {SiteEmail: "a@example.com", SitePassword: "pw", NotificationEmail: "alice@example.com"},
			"bob":   {SiteEmail: "b@example.com", SitePassword: "pw", NotificationEmail: "bob@example.com"},
		},
		Classes: classes,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func mondayStrong() config.ClassTarget {
	return config.ClassTarget{Day: "Monday", Time: "4:30 PM", Name: "LF3 Strong", User: "alice"}
}

func openTestStore(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triggers")
	st, err := OpenStore(config.StoreConfig{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("OpenStore error: %v", err)
	}
	return st, path
}

func TestRenderLine(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, mondayStrong())
	line := testRenderer().Render(FromTarget(cfg.Classes[0]))

	if !strings.HasPrefix(line, "30 15 * * 1 ") {
		t.Fatalf("unexpected schedule fields: %q", line)
	}
	if !strings.Contains(line, `--date $(date -d "+7 days" +\%Y-\%m-\%d)`) {
		t.Fatalf("missing date substitution: %q", line)
	}
	if !strings.Contains(line, ">> /var/log/classbot/booking_monday.log 2>&1") {
		t.Fatalf("missing log redirection: %q", line)
	}
	if !strings.HasSuffix(line, "# classbot:v1 id=Monday/LF3 Strong/alice") {
		t.Fatalf("missing ownership tag: %q", line)
	}
	if !IsOwned(line) {
		t.Fatal("rendered line should be owned")
	}
	if got := OwnedIdentity(line); got != "Monday/LF3 Strong/alice" {
		t.Fatalf("OwnedIdentity = %q", got)
	}
}

func TestRenderDarwinDateExpr(t *testing.T) {
	t.Parallel()
	r := testRenderer()
	r.GOOS = "darwin"
	cfg := testConfig(t, mondayStrong())
	line := r.Render(FromTarget(cfg.Classes[0]))
	if !strings.Contains(line, `$(date -v+7d +\%Y-\%m-\%d)`) {
		t.Fatalf("missing darwin date substitution: %q", line)
	}
}

func TestMidnightWrapRendersShiftedWeekday(t *testing.T) {
	t.Parallel()
	target := config.ClassTarget{
		Day: "Monday", Time: "00:30", Name: "Sunrise", User: "alice",
		BookingWindowOffset: &config.Offset{Hours: 1},
	}
	cfg := testConfig(t, target)
	line := testRenderer().Render(FromTarget(cfg.Classes[0]))
	// Sunday 23:30, cron weekday 0.
	if !strings.HasPrefix(line, "30 23 * * 0 ") {
		t.Fatalf("unexpected schedule fields: %q", line)
	}
	if !strings.Contains(line, `+1 days`) {
		t.Fatalf("class date should be one day ahead: %q", line)
	}
}

func TestInstallIdempotent(t *testing.T) {
	t.Parallel()
	st, path := openTestStore(t)
	ctx := context.Background()

	foreign := []string{
		"SHELL=/bin/bash",
		"0 3 * * * /usr/bin/certbot renew",
	}
	if err := st.Write(ctx, foreign); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, mondayStrong(),
		config.ClassTarget{Day: "Tuesday", Time: "7:00 AM", Name: "Yoga", User: "bob"})
	reg := New(st, testRenderer(), logx.Nop())
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := reg.Install(ctx, cfg, now); err != nil {
		t.Fatalf("Install error: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := reg.Install(ctx, cfg, now); err != nil {
		t.Fatalf("second Install error: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Fatalf("install not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}

	lines := strings.Split(strings.TrimRight(string(first), "\n"), "\n")
	if lines[0] != foreign[0] || lines[1] != foreign[1] {
		t.Fatalf("foreign lines disturbed: %q", lines[:2])
	}
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
}

func TestInstallSupersedesRetimedTarget(t *testing.T) {
	t.Parallel()
	st, path := openTestStore(t)
	ctx := context.Background()
	reg := New(st, testRenderer(), logx.Nop())
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	other := config.ClassTarget{Day: "Friday", Time: "6:00 PM", Name: "Spin", User: "bob"}
	cfg := testConfig(t, mondayStrong(), other)
	if err := reg.Install(ctx, cfg, now); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	// Retime Monday's class; its single owned line must be replaced, not
	// duplicated, and Friday's line must be byte-identical.
	retimed := mondayStrong()
	retimed.Time = "5:30 PM"
	cfg = testConfig(t, retimed, other)
	if err := reg.Install(ctx, cfg, now); err != nil {
		t.Fatal(err)
	}
	after, _ := os.ReadFile(path)

	beforeLines := strings.Split(strings.TrimRight(string(before), "\n"), "\n")
	afterLines := strings.Split(strings.TrimRight(string(after), "\n"), "\n")
	if len(beforeLines) != 2 || len(afterLines) != 2 {
		t.Fatalf("unexpected line counts: before=%d after=%d", len(beforeLines), len(afterLines))
	}

	changed := 0
	for i := range beforeLines {
		if beforeLines[i] != afterLines[i] {
			changed++
		}
	}
	if changed != 1 {
		t.Fatalf("got %d changed lines, want exactly 1\nbefore:\n%s\nafter:\n%s", changed, before, after)
	}
	if !strings.Contains(string(after), "30 16 * * 1 ") {
		t.Fatalf("retimed trigger not present: %s", after)
	}
	if strings.Contains(string(after), "30 15 * * 1 ") {
		t.Fatalf("stale trigger survived: %s", after)
	}
}

func TestRemoveKeepsForeignLinesInOrder(t *testing.T) {
	t.Parallel()
	st, path := openTestStore(t)
	ctx := context.Background()
	reg := New(st, testRenderer(), logx.Nop())
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	foreign := []string{
		"# backups",
		"0 2 * * * /usr/local/bin/backup.sh",
		"MAILTO=ops@example.com",
	}
	if err := st.Write(ctx, foreign); err != nil {
		t.Fatal(err)
	}
	if err := reg.Install(ctx, testConfig(t, mondayStrong()), now); err != nil {
		t.Fatal(err)
	}

	if err := reg.Remove(ctx); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	got, _ := os.ReadFile(path)
	want := strings.Join(foreign, "\n") + "\n"
	if string(got) != want {
		t.Fatalf("foreign lines not preserved:\ngot:\n%s\nwant:\n%s", got, want)
	}

	// Removing again is a no-op, not an error.
	if err := reg.Remove(ctx); err != nil {
		t.Fatalf("second Remove error: %v", err)
	}
}

func TestRemoveOnEmptyStore(t *testing.T) {
	t.Parallel()
	st, _ := openTestStore(t)
	reg := New(st, testRenderer(), logx.Nop())
	if err := reg.Remove(context.Background()); err != nil {
		t.Fatalf("Remove on empty store: %v", err)
	}
}

func TestPlanFlagsCollisions(t *testing.T) {
	t.Parallel()
	// Two targets whose windows open at the same instant: both stay
	// independent triggers, both flagged.
	a := mondayStrong()
	b := config.ClassTarget{Day: "Monday", Time: "4:30 PM", Name: "Spin", User: "bob"}
	cfg := testConfig(t, a, b)

	reg := New(nil, testRenderer(), logx.Nop())
	planned, err := reg.Plan(cfg, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if len(planned) != 2 {
		t.Fatalf("got %d planned, want 2", len(planned))
	}
	for _, p := range planned {
		if !p.Collides {
			t.Fatalf("expected collision flag on %q", p.Line)
		}
	}
	if planned[0].Line == planned[1].Line {
		t.Fatal("colliding triggers must remain independent lines")
	}
}

func TestPlanNextFire(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, mondayStrong())
	reg := New(nil, testRenderer(), logx.Nop())

	// Sunday June 1st 2025; next Monday 15:30 is June 2nd.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	planned, err := reg.Plan(cfg, now)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	next := planned[0].NextFire
	if next.Day() != 2 || next.Hour() != 15 || next.Minute() != 30 {
		t.Fatalf("NextFire = %v, want June 2 15:30", next)
	}
}

// failingStore reads fine but refuses every write.
type failingStore struct {
	lines []string
}

func (s *failingStore) Read(context.Context) ([]string, error) { return s.lines, nil }

func (s *failingStore) Write(context.Context, []string) error {
	return fmt.Errorf("%w: disk full", ErrStoreWrite)
}

func TestInstallSurfacesStoreWriteFailure(t *testing.T) {
	t.Parallel()
	foreign := "0 3 * * * /usr/bin/certbot renew"
	st := &failingStore{lines: []string{foreign}}
	reg := New(st, testRenderer(), logx.Nop())
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	err := reg.Install(context.Background(), testConfig(t, mondayStrong()), now)
	if !errors.Is(err, ErrStoreWrite) {
		t.Fatalf("Install error = %v, want ErrStoreWrite", err)
	}

	// The failed write left the persisted content exactly as it was.
	got, readErr := st.Read(context.Background())
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(got) != 1 || got[0] != foreign {
		t.Fatalf("store disturbed by failed write: %q", got)
	}
}

func TestFileStoreWriteFailureIsStoreWriteError(t *testing.T) {
	t.Parallel()
	// The store path's parent is a regular file, so the write can never
	// reach the rename step. Permission-based setups don't work here:
	// the tests may run as root.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := OpenStore(config.StoreConfig{Path: filepath.Join(blocker, "triggers")}, logx.Nop())
	if err != nil {
		t.Fatalf("OpenStore error: %v", err)
	}

	err = st.Write(context.Background(), []string{"30 15 * * 1 true"})
	if !errors.Is(err, ErrStoreWrite) {
		t.Fatalf("Write error = %v, want ErrStoreWrite", err)
	}
}

func TestFileStoreReadMissing(t *testing.T) {
	t.Parallel()
	st, err := OpenStore(config.StoreConfig{Path: filepath.Join(t.TempDir(), "nope")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	lines, err := st.Read(context.Background())
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if lines != nil {
		t.Fatalf("expected empty store, got %q", lines)
	}
}
