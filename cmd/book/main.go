// Command book makes a single ad-hoc booking outside the weekly
// schedule: one class, one date, one user, straight away.
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
	"classbot/internal/config"
)

func main() {
	var (
		cfgPath string
		dateStr string
		timeStr string
		class   string
		userKey string
		forKey  string
	)
	flag.StringVar(&cfgPath, "config", "./classes.yaml", "path to config yaml/json")
	flag.StringVar(&dateStr, "date", "", "class date, YYYY-MM-DD (required)")
	flag.StringVar(&timeStr, "time", "", "class start time, e.g. \"4:30 PM\" (required)")
	flag.StringVar(&class, "class", "", "class name to match (required)")
	flag.StringVar(&userKey, "user", "", "config user key booking the class (required)")
	flag.StringVar(&forKey, "for", "", "optional beneficiary user key")
	flag.Parse()

	if dateStr == "" || timeStr == "" || class == "" || userKey == "" {
		fmt.Println("fatal: --date, --time, --class and --user are required")
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
	start, err := config.ParseClockTime(timeStr)
	if err != nil {
		fmt.Println("fatal: invalid --time:", err)
		os.Exit(2)
	}
	if _, ok := cfg.UserByKey(userKey); !ok {
		fmt.Printf("fatal: unknown user %q\n", userKey)
		os.Exit(2)
	}
	if forKey != "" {
		if _, ok := cfg.UserByKey(forKey); !ok {
			fmt.Printf("fatal: unknown beneficiary %q\n", forKey)
			os.Exit(2)
		}
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

	target := config.ClassTarget{
		Day:     date.Weekday().String(),
		Time:    timeStr,
		Name:    class,
		User:    userKey,
		For:     forKey,
		Weekday: date.Weekday(),
		Start:   start,
	}

	a := orch.RunTarget(ctx, cfg, target, date)
	if a.Failed() {
		fmt.Printf("%s: %s (%s)\n", a.Identity, a.Status, a.Reason)
		os.Exit(1)
	}
	fmt.Printf("%s: %s\n", a.Identity, a.Status)
}
