// Package app wires configuration into runnable components for the CLI
// entry points. Each command picks only the pieces it needs: the
// scheduler builds a Registry, the bookers build an Orchestrator.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"classbot/internal/booking"
	"classbot/internal/calendar"
	"classbot/internal/config"
	"classbot/internal/notify"
	"classbot/internal/outcomes"
	"classbot/internal/registry"
	"classbot/internal/site"
	logx "classbot/pkg/logx"
)

// LoadConfig parses, validates and commits the config at path.
func LoadConfig(path string) (*config.Manager, *config.Config, error) {
	mgr := config.NewManager(path)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config %q: %w", path, err)
	}
	return mgr, cfg, nil
}

// NewRegistry builds the trigger registry for the scheduler command.
func NewRegistry(cfg *config.Config, cfgPath string, log logx.Logger) (*registry.Registry, error) {
	store, err := registry.OpenStore(cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("open trigger store: %w", err)
	}

	absCfg, err := filepath.Abs(cfgPath)
	if err != nil {
		absCfg = cfgPath
	}
	renderer := registry.Renderer{
		BookerPath: bookerPath(cfg),
		ConfigPath: absCfg,
		LogDir:     cfg.Settings.LogDir,
		GOOS:       runtime.GOOS,
	}
	return registry.New(store, renderer, log), nil
}

// bookerPath resolves the binary installed into trigger lines: the
// configured path, or a "booker" sibling of the running executable.
func bookerPath(cfg *config.Config) string {
	if p := cfg.Settings.BookerPath; p != "" {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return "booker"
	}
	return filepath.Join(filepath.Dir(exe), "booker")
}

// NewOrchestrator assembles the booking pipeline: browser site client,
// notification router, calendar publisher and the optional outcomes
// store. The returned closer flushes and closes the store.
func NewOrchestrator(cfg *config.Config, log logx.Logger) (*booking.Orchestrator, func(), error) {
	timeout, err := config.ParseDurationOrDefault("site.timeout", cfg.Site.Timeout, site.DefaultCallTimeout)
	if err != nil {
		return nil, nil, err
	}
	client := site.NewBrowser(cfg.Site.BaseURL, cfg.Settings.HeadlessEnabled(), timeout, log)

	var channels []notify.Notifier
	email, err := notify.NewEmail(cfg.Notify.Email, log)
	if err != nil {
		return nil, nil, err
	}
	if email != nil {
		channels = append(channels, email)
	}
	telegram, err := notify.NewTelegram(cfg.Notify.Telegram, log)
	if err != nil {
		return nil, nil, err
	}
	if telegram != nil {
		channels = append(channels, telegram)
	}
	router := notify.NewRouter(log, channels...)

	audit, err := outcomes.Open(cfg.Outcomes, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open outcomes store: %w", err)
	}
	closer := func() {
		if audit != nil {
			_ = audit.Close()
		}
	}

	orch := booking.New(client, router, booking.Options{
		Calendar: &calendar.Publisher{Log: log},
		Outcomes: audit,
		Policy:   booking.PolicyFromConfig(cfg.Retry),
		Log:      log,
	})
	return orch, closer, nil
}

// OpenBookerLog builds the booker's logger: console plus the per-weekday
// file under settings.log_dir when one is configured.
func OpenBookerLog(cfg *config.Config, date time.Time) (logx.Logger, func(), error) {
	lc := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
	}
	if dir := cfg.Settings.LogDir; dir != "" {
		lc.File = logx.FileConfig{
			Enabled: true,
			Path:    logx.WeekdayLogPath(dir, date.In(cfg.Location()).Weekday()),
		}
	}
	return logx.Open(lc)
}
