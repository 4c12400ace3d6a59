package registry

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"classbot/internal/config"
	"classbot/internal/window"
	logx "classbot/pkg/logx"
)

// OwnerTag marks trigger-store lines created by this system. The trailing
// comment is load-bearing: it is the only thing separating owned lines
// from foreign ones, and it carries the ClassTarget identity used to match
// entries across reconciliations.
const OwnerTag = "classbot:v1"

// Trigger is one derived store entry: a weekly fire slot plus the command
// that books the right calendar date when it fires.
type Trigger struct {
	Spec     window.FireSpec
	Identity string
	Target   config.ClassTarget
}

// Renderer turns Triggers into store lines.
type Renderer struct {
	// BookerPath is the orchestrator binary to invoke at fire time.
	BookerPath string
	// ConfigPath is passed through so the fired process re-reads fresh config.
	ConfigPath string
	// LogDir receives per-weekday booking logs; empty disables redirection.
	LogDir string
	// GOOS selects the date(1) dialect; empty means runtime.GOOS.
	GOOS string
}

// Render emits a five-field cron line with the tagged trailing comment:
//
//	30 15 * * 1 /usr/local/bin/booker --date $(date -d "+7 days" +\%Y-\%m-\%d) ... # classbot:v1 id=Monday/LF3 Strong/alice
//
// Cron weekday numbering (0=Sunday) matches Go's time.Weekday values.
func (r Renderer) Render(t Trigger) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d * * %d %s --config %s --date %s",
		t.Spec.Time.Minute, t.Spec.Time.Hour, int(t.Spec.Weekday),
		r.BookerPath, r.ConfigPath, r.dateExpr(t.Spec.DaysAhead))

	if r.LogDir != "" {
		fmt.Fprintf(&b, " >> %s 2>&1", logx.WeekdayLogPath(r.LogDir, t.Target.Weekday))
	}
	fmt.Fprintf(&b, " # %s id=%s", OwnerTag, t.Identity)
	return b.String()
}

// dateExpr builds the shell substitution that resolves the class date at
// fire time. Percent signs are escaped because cron treats bare % as a
// newline. macOS date(1) has no -d.
func (r Renderer) dateExpr(daysAhead int) string {
	goos := r.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	if goos == "darwin" {
		return fmt.Sprintf(`$(date -v+%dd +\%%Y-\%%m-\%%d)`, daysAhead)
	}
	return fmt.Sprintf(`$(date -d "+%d days" +\%%Y-\%%m-\%%d)`, daysAhead)
}

// FromTarget derives the Trigger for one validated ClassTarget.
func FromTarget(t config.ClassTarget) Trigger {
	return Trigger{
		Spec:     window.Compute(t),
		Identity: t.Identity(),
		Target:   t,
	}
}

// IsOwned reports whether a store line carries our ownership tag.
func IsOwned(line string) bool {
	return strings.Contains(line, "# "+OwnerTag+" ")
}

// OwnedIdentity extracts the ClassTarget identity from an owned line, or ""
// if the line is foreign.
func OwnedIdentity(line string) string {
	marker := "# " + OwnerTag + " id="
	i := strings.Index(line, marker)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[i+len(marker):])
}

// cronParser validates the schedule fields we emit and previews fire times
// for plan output. Standard 5-field cron, no descriptors needed.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// scheduleOf parses the leading five fields of a rendered line.
func scheduleOf(line string) (cron.Schedule, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return nil, fmt.Errorf("short cron line %q", line)
	}
	return cronParser.Parse(strings.Join(fields[:5], " "))
}

// NextFire previews when a rendered line would next run after now.
func NextFire(line string, now time.Time) (time.Time, error) {
	sched, err := scheduleOf(line)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now), nil
}
