// Package registry reconciles the weekly wishlist into a shared cron-format
// trigger store without disturbing entries it does not own.
//
// Owned lines carry a trailing ownership tag; everything else in the store
// is foreign and is preserved byte-for-byte, in its original order.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"classbot/internal/config"
	logx "classbot/pkg/logx"
)

// Store is a line-oriented trigger store. Write replaces the whole store
// atomically: a failed write leaves the previous content untouched.
type Store interface {
	// Read returns all lines. A store that does not exist yet reads as empty.
	Read(ctx context.Context) ([]string, error)
	Write(ctx context.Context, lines []string) error
}

// ErrStoreWrite wraps trigger-store write failures so callers can map them
// to a non-zero exit without inspecting driver details.
var ErrStoreWrite = errors.New("trigger store write failed")

// OpenStore selects the configured backend. Driver values:
//   - "file" (default): a crontab-format file replaced via temp+rename
//   - "crontab": the invoking user's crontab through crontab(1)
func OpenStore(cfg config.StoreConfig, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			return nil, errors.New("trigger_store.path is required for the file driver")
		}
		return &fileStore{path: path, log: log}, nil
	case "crontab":
		return &crontabStore{log: log}, nil
	default:
		return nil, fmt.Errorf("unknown trigger_store driver %q", cfg.Driver)
	}
}

type fileStore struct {
	path string
	log  logx.Logger
}

func (s *fileStore) Read(ctx context.Context) ([]string, error) {
	_ = ctx
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return splitLines(b), nil
}

func (s *fileStore) Write(ctx context.Context, lines []string) error {
	_ = ctx
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	// Write-to-temp-then-rename: concurrent installs may race, but each
	// swap is all-or-nothing so the store is never half-written.
	tmp, err := os.CreateTemp(dir, ".triggers-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(joinLines(lines)); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	s.log.Debug("trigger store written", logx.String("path", s.path), logx.Int("lines", len(lines)))
	return nil
}

// crontabStore talks to crontab(1). "crontab -" replaces the whole table in
// one step, which gives us the atomic swap without temp files of our own.
type crontabStore struct {
	log logx.Logger
}

func (s *crontabStore) Read(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "crontab", "-l")
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		// "no crontab for <user>" exits non-zero; treat as empty.
		if strings.Contains(errb.String(), "no crontab") {
			return nil, nil
		}
		return nil, fmt.Errorf("crontab -l: %v: %s", err, strings.TrimSpace(errb.String()))
	}
	return splitLines(out.Bytes()), nil
}

func (s *crontabStore) Write(ctx context.Context, lines []string) error {
	cmd := exec.CommandContext(ctx, "crontab", "-")
	cmd.Stdin = strings.NewReader(joinLines(lines))
	var errb bytes.Buffer
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: crontab -: %v: %s", ErrStoreWrite, err, strings.TrimSpace(errb.String()))
	}
	s.log.Debug("crontab replaced", logx.Int("lines", len(lines)))
	return nil
}

func splitLines(b []byte) []string {
	s := strings.TrimRight(string(b), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
