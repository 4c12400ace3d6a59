// Command booker is the one-shot process a fired trigger runs: it books
// every configured class for the given date, then exits.
//
// Exit status: 0 when every target booked (or nothing was due), 1 when
// any target failed. Failed targets never abort the run; each outcome is
// reported independently.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classbot/internal/app"
	"classbot/internal/booking"
	logx "classbot/pkg/logx"
)

func main() {
	var (
		cfgPath string
		dateStr string
		dryRun  bool
	)
	flag.StringVar(&cfgPath, "config", "./classes.yaml", "path to config yaml/json")
	flag.StringVar(&dateStr, "date", "", "class date to book, YYYY-MM-DD (required)")
	flag.BoolVar(&dryRun, "dry-run", false, "resolve classes without booking")
	flag.Parse()

	if dateStr == "" {
		fmt.Println("fatal: --date is required")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_, cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	date, err := time.ParseInLocation("2006-01-02", dateStr, cfg.Location())
	if err != nil {
		fmt.Println("fatal: invalid --date:", err)
		os.Exit(2)
	}

	log, closeLog, err := app.OpenBookerLog(cfg, date)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer closeLog()

	orch, closeOrch, err := app.NewOrchestrator(cfg, log)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer closeOrch()

	var attempts []booking.Attempt
	if dryRun {
		attempts, err = orch.DryRun(ctx, cfg, date)
	} else {
		attempts, err = orch.Run(ctx, cfg, date)
	}
	if err != nil {
		log.Error("booking run failed", logx.Err(err))
		os.Exit(1)
	}

	for _, a := range attempts {
		if a.Failed() {
			fmt.Printf("%s: %s (%s)\n", a.Identity, a.Status, a.Reason)
		} else {
			fmt.Printf("%s: %s\n", a.Identity, a.Status)
		}
	}
	if booking.AnyFailed(attempts) {
		os.Exit(1)
	}
}
