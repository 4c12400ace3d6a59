package registry

import (
	"context"
	"fmt"
	"time"

	"classbot/internal/config"
	logx "classbot/pkg/logx"
)

// Registry reconciles the desired trigger set (derived from config) with
// the persisted store.
type Registry struct {
	store    Store
	renderer Renderer
	log      logx.Logger
}

func New(store Store, renderer Renderer, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{store: store, renderer: renderer, log: log}
}

// Planned is one entry of a dry-run preview.
type Planned struct {
	Trigger  Trigger
	Line     string
	NextFire time.Time
	// Collides is set when another planned trigger shares the same fire
	// slot. Such triggers stay independent lines; operators may stagger
	// them by a few minutes, but nothing assumes they did.
	Collides bool
}

// Plan computes the desired owned set without touching the store.
func (r *Registry) Plan(cfg *config.Config, now time.Time) ([]Planned, error) {
	desired := desiredTriggers(cfg)

	slots := map[string]int{}
	for _, t := range desired {
		slots[t.Spec.String()]++
	}

	out := make([]Planned, 0, len(desired))
	for _, t := range desired {
		line := r.renderer.Render(t)
		next, err := NextFire(line, now)
		if err != nil {
			// We rendered this line ourselves; a parse failure is a bug.
			return nil, fmt.Errorf("rendered line does not parse: %w", err)
		}
		out = append(out, Planned{
			Trigger:  t,
			Line:     line,
			NextFire: next,
			Collides: slots[t.Spec.String()] > 1,
		})
	}
	return out, nil
}

// Install replaces the owned partition of the store with the desired set.
// Foreign lines keep their original relative order; owned lines are
// appended after them in config order. Running Install twice with the same
// config yields byte-identical store content.
func (r *Registry) Install(ctx context.Context, cfg *config.Config, now time.Time) error {
	planned, err := r.Plan(cfg, now)
	if err != nil {
		return err
	}

	existing, err := r.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("read trigger store: %w", err)
	}
	foreign, owned := partition(existing)

	lines := make([]string, 0, len(foreign)+len(planned))
	lines = append(lines, foreign...)
	seen := map[string]bool{}
	for _, p := range planned {
		// Validation rejects duplicate identities at load time; this guard
		// only keeps a hand-built config from installing ambiguous lines.
		// Distinct identities sharing a fire slot stay separate lines.
		if seen[p.Trigger.Identity] {
			continue
		}
		seen[p.Trigger.Identity] = true
		lines = append(lines, p.Line)
	}

	if err := r.store.Write(ctx, lines); err != nil {
		return err
	}
	r.log.Info("triggers installed",
		logx.Int("owned", len(planned)),
		logx.Int("replaced", len(owned)),
		logx.Int("foreign", len(foreign)))
	return nil
}

// Remove deletes owned lines only. Calling it when none exist is a no-op.
func (r *Registry) Remove(ctx context.Context) error {
	existing, err := r.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("read trigger store: %w", err)
	}
	foreign, owned := partition(existing)
	if len(owned) == 0 {
		r.log.Info("no owned triggers to remove")
		return nil
	}

	if err := r.store.Write(ctx, foreign); err != nil {
		return err
	}
	r.log.Info("triggers removed", logx.Int("removed", len(owned)), logx.Int("foreign", len(foreign)))
	return nil
}

func desiredTriggers(cfg *config.Config) []Trigger {
	out := make([]Trigger, 0, len(cfg.Classes))
	for _, t := range cfg.Classes {
		out = append(out, FromTarget(t))
	}
	return out
}

func partition(lines []string) (foreign, owned []string) {
	for _, line := range lines {
		if IsOwned(line) {
			owned = append(owned, line)
		} else {
			foreign = append(foreign, line)
		}
	}
	return foreign, owned
}
