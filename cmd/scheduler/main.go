// Command scheduler reconciles the weekly booking triggers with the
// trigger store (a crontab file or the user crontab).
//
// With no mode flag it previews the desired trigger set. --install
// replaces the owned lines, --remove deletes them, and --watch keeps the
// process alive reinstalling whenever the config file changes.
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
	"classbot/internal/registry"
	logx "classbot/pkg/logx"
)

func main() {
	var (
		cfgPath string
		install bool
		remove  bool
		dryRun  bool
		watch   bool
	)
	flag.StringVar(&cfgPath, "config", "./classes.yaml", "path to config yaml/json")
	flag.BoolVar(&install, "install", false, "install triggers into the store")
	flag.BoolVar(&remove, "remove", false, "remove all owned triggers")
	flag.BoolVar(&dryRun, "dry-run", false, "preview the trigger set without writing")
	flag.BoolVar(&watch, "watch", false, "with --install: keep running and reinstall on config change")
	flag.Parse()

	if install && remove {
		fmt.Println("fatal: --install and --remove are mutually exclusive")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr, cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	log := logx.NewConsole(cfg.Logging.Level)

	reg, err := app.NewRegistry(cfg, cfgPath, log)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	switch {
	case remove:
		if err := reg.Remove(ctx); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}

	case install && !dryRun:
		if err := reg.Install(ctx, cfg, time.Now()); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		if watch {
			runWatch(ctx, mgr, reg, log)
		}

	default:
		printPlan(reg, cfg)
	}
}

func printPlan(reg *registry.Registry, cfg *config.Config) {
	planned, err := reg.Plan(cfg, time.Now())
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if len(planned) == 0 {
		fmt.Println("no classes configured")
		return
	}
	loc := cfg.Location()
	for _, p := range planned {
		fmt.Println(p.Line)
		fmt.Printf("  next fire: %s\n", p.NextFire.In(loc).Format("Mon 2006-01-02 15:04 MST"))
		if p.Collides {
			fmt.Println("  warning: shares a fire slot with another trigger")
		}
	}
}

// runWatch blocks until ctx cancellation, reinstalling triggers whenever
// the config manager publishes a changed, valid config.
func runWatch(ctx context.Context, mgr *config.Manager, reg *registry.Registry, log logx.Logger) {
	mgr.SetLogger(log)
	sub := mgr.Subscribe(1)
	defer mgr.Unsubscribe(sub)

	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Error("config watch stopped", logx.Err(err))
		}
	}()
	log.Info("watching config for changes", logx.String("path", mgr.Path()))

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			if err := reg.Install(ctx, cfg, time.Now()); err != nil {
				log.Error("reinstall after config change failed", logx.Err(err))
			}
		}
	}
}
